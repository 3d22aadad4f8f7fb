package provider

import (
	"context"
	"fmt"
)

// Gemini serves text transform jobs (prompt rewriting, captioning, style
// transfer of copy). Its task states are SCREAMING_SNAKE with a STATE_
// prefix and the output is a single stored document URI.
type Gemini struct {
	client
}

func NewGemini(opts Options) *Gemini {
	return &Gemini{client: newClient(opts)}
}

func (g *Gemini) Name() string { return g.name }

type geminiSubmitResponse struct {
	TaskID string `json:"taskId"`
}

func (g *Gemini) Submit(ctx context.Context, spec []byte) (string, error) {
	var resp geminiSubmitResponse
	if err := g.postRaw(ctx, "/v1beta/textTasks", spec, &resp); err != nil {
		return "", g.submitErr(err)
	}
	if resp.TaskID == "" {
		return "", g.submitErr(fmt.Errorf("response carried no taskId"))
	}
	return resp.TaskID, nil
}

type geminiPollResponse struct {
	TaskID    string `json:"taskId"`
	State     string `json:"state"`
	OutputURI string `json:"outputUri"`
	Error     string `json:"error"`
}

func (g *Gemini) Poll(ctx context.Context, ref string) (Status, error) {
	var resp geminiPollResponse
	if err := g.getJSON(ctx, "/v1beta/textTasks/"+ref, &resp); err != nil {
		return Status{}, g.pollErr(err)
	}

	switch resp.State {
	case "STATE_SUCCEEDED":
		if resp.OutputURI == "" {
			return Status{State: StateFailed, Reason: "task succeeded but no outputUri returned"}, nil
		}
		return Status{State: StateSucceeded, Result: newResult([]string{resp.OutputURI}, resp.OutputURI, map[string]string{
			"provider": g.name,
			"task_id":  resp.TaskID,
		})}, nil
	case "STATE_FAILED", "STATE_CANCELLED":
		reason := resp.Error
		if reason == "" {
			reason = "task reported " + resp.State
		}
		return Status{State: StateFailed, Reason: reason}, nil
	default:
		return Status{State: StatePending}, nil
	}
}

var _ Adapter = (*Gemini)(nil)
