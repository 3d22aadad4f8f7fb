package provider

import (
	"context"
	"fmt"
)

// Flux serves image generation. The API uses a flat task envelope and
// returns either a single sample URL or an array, depending on quantity.
type Flux struct {
	client
}

func NewFlux(opts Options) *Flux {
	return &Flux{client: newClient(opts)}
}

func (f *Flux) Name() string { return f.name }

type fluxSubmitResponse struct {
	ID string `json:"id"`
}

func (f *Flux) Submit(ctx context.Context, spec []byte) (string, error) {
	var resp fluxSubmitResponse
	if err := f.postRaw(ctx, "/v1/tasks", spec, &resp); err != nil {
		return "", f.submitErr(err)
	}
	if resp.ID == "" {
		return "", f.submitErr(fmt.Errorf("response carried no task id"))
	}
	return resp.ID, nil
}

type fluxPollResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample  string   `json:"sample"`
		Samples []string `json:"samples"`
	} `json:"result"`
	Detail string `json:"detail"`
}

func (f *Flux) Poll(ctx context.Context, ref string) (Status, error) {
	var resp fluxPollResponse
	if err := f.getJSON(ctx, "/v1/tasks/"+ref, &resp); err != nil {
		return Status{}, f.pollErr(err)
	}

	switch resp.Status {
	case "Ready":
		artifacts := resp.Result.Samples
		if len(artifacts) == 0 && resp.Result.Sample != "" {
			artifacts = []string{resp.Result.Sample}
		}
		if len(artifacts) == 0 {
			return Status{State: StateFailed, Reason: "task ready but no samples returned"}, nil
		}
		return Status{State: StateSucceeded, Result: newResult(artifacts, artifacts[len(artifacts)-1], map[string]string{
			"provider": f.name,
			"task_id":  resp.ID,
		})}, nil
	case "Error", "Failed", "Content Moderated", "Request Moderated":
		reason := resp.Detail
		if reason == "" {
			reason = "task reported " + resp.Status
		}
		return Status{State: StateFailed, Reason: reason}, nil
	default:
		// Pending, Queued, Processing and anything unmodeled: the task is
		// treated as still running rather than failed.
		return Status{State: StatePending}, nil
	}
}

var _ Adapter = (*Flux)(nil)
