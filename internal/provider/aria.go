package provider

import (
	"context"
	"fmt"
	"net/url"
)

// Aria serves audio generation. Its status endpoint takes the task id as a
// query parameter and reports lowercase lifecycle strings, several of which
// ("streaming", "mastering") are intermediate states the core never models.
type Aria struct {
	client
}

func NewAria(opts Options) *Aria {
	return &Aria{client: newClient(opts)}
}

func (a *Aria) Name() string { return a.name }

type ariaSubmitResponse struct {
	TaskID string `json:"task_id"`
}

func (a *Aria) Submit(ctx context.Context, spec []byte) (string, error) {
	var resp ariaSubmitResponse
	if err := a.postRaw(ctx, "/generate", spec, &resp); err != nil {
		return "", a.submitErr(err)
	}
	if resp.TaskID == "" {
		return "", a.submitErr(fmt.Errorf("response carried no task_id"))
	}
	return resp.TaskID, nil
}

type ariaPollResponse struct {
	TaskID      string `json:"task_id"`
	State       string `json:"state"`
	AudioURL    string `json:"audio_url"`
	ErrorDetail string `json:"error_detail"`
}

func (a *Aria) Poll(ctx context.Context, ref string) (Status, error) {
	var resp ariaPollResponse
	if err := a.getJSON(ctx, "/status?task_id="+url.QueryEscape(ref), &resp); err != nil {
		return Status{}, a.pollErr(err)
	}

	switch resp.State {
	case "complete", "succeeded":
		if resp.AudioURL == "" {
			return Status{State: StateFailed, Reason: "task complete but no audio_url returned"}, nil
		}
		return Status{State: StateSucceeded, Result: newResult([]string{resp.AudioURL}, resp.AudioURL, map[string]string{
			"provider": a.name,
			"task_id":  resp.TaskID,
		})}, nil
	case "error", "failed":
		reason := resp.ErrorDetail
		if reason == "" {
			reason = "task reported " + resp.State
		}
		return Status{State: StateFailed, Reason: reason}, nil
	default:
		return Status{State: StatePending}, nil
	}
}

var _ Adapter = (*Aria)(nil)
