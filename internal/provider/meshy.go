package provider

import (
	"context"
	"fmt"
)

// Meshy serves 3D model generation. Its submit endpoint returns the task id
// under a "result" key and its status strings are uppercase, with more
// intermediate states than the core models.
type Meshy struct {
	client
}

func NewMeshy(opts Options) *Meshy {
	return &Meshy{client: newClient(opts)}
}

func (m *Meshy) Name() string { return m.name }

type meshySubmitResponse struct {
	Result string `json:"result"`
}

func (m *Meshy) Submit(ctx context.Context, spec []byte) (string, error) {
	var resp meshySubmitResponse
	if err := m.postRaw(ctx, "/v2/tasks", spec, &resp); err != nil {
		return "", m.submitErr(err)
	}
	if resp.Result == "" {
		return "", m.submitErr(fmt.Errorf("response carried no task id"))
	}
	return resp.Result, nil
}

type meshyPollResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	ModelURLs map[string]string `json:"model_urls"`
	Thumbnail string            `json:"thumbnail_url"`
	TaskError *struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

func (m *Meshy) Poll(ctx context.Context, ref string) (Status, error) {
	var resp meshyPollResponse
	if err := m.getJSON(ctx, "/v2/tasks/"+ref, &resp); err != nil {
		return Status{}, m.pollErr(err)
	}

	switch resp.Status {
	case "SUCCEEDED":
		artifacts := make([]string, 0, len(resp.ModelURLs)+1)
		for _, format := range []string{"glb", "obj", "usdz", "fbx"} {
			if u := resp.ModelURLs[format]; u != "" {
				artifacts = append(artifacts, u)
			}
		}
		if len(artifacts) == 0 {
			return Status{State: StateFailed, Reason: "task succeeded but no model urls returned"}, nil
		}
		meta := map[string]string{"provider": m.name, "task_id": resp.ID}
		if resp.Thumbnail != "" {
			meta["thumbnail_url"] = resp.Thumbnail
		}
		return Status{State: StateSucceeded, Result: newResult(artifacts, artifacts[0], meta)}, nil
	case "FAILED", "CANCELED", "EXPIRED":
		reason := "task reported " + resp.Status
		if resp.TaskError != nil && resp.TaskError.Message != "" {
			reason = resp.TaskError.Message
		}
		return Status{State: StateFailed, Reason: reason}, nil
	default:
		// PENDING, IN_PROGRESS and any vocabulary added upstream later.
		return Status{State: StatePending}, nil
	}
}

var _ Adapter = (*Meshy)(nil)
