package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// Veo serves video generation, including composite timeline segments. The
// API exposes long-running operations: a nested envelope with a done flag,
// and per-video first/last frame extraction used for segment chaining.
type Veo struct {
	client
}

func NewVeo(opts Options) *Veo {
	return &Veo{client: newClient(opts)}
}

func (v *Veo) Name() string { return v.name }

type veoSubmitResponse struct {
	Name string `json:"name"`
}

func (v *Veo) Submit(ctx context.Context, spec []byte) (string, error) {
	var resp veoSubmitResponse
	if err := v.postRaw(ctx, "/v1/video:generate", spec, &resp); err != nil {
		return "", v.submitErr(err)
	}
	if resp.Name == "" {
		return "", v.submitErr(fmt.Errorf("response carried no operation name"))
	}
	return resp.Name, nil
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		Videos []struct {
			URI          string `json:"uri"`
			LastFrameURI string `json:"lastFrameUri"`
			Duration     int    `json:"durationSeconds"`
		} `json:"videos"`
	} `json:"response"`
	Metadata json.RawMessage `json:"metadata"`
}

func (v *Veo) Poll(ctx context.Context, ref string) (Status, error) {
	var op veoOperation
	if err := v.getJSON(ctx, "/v1/operations/"+ref, &op); err != nil {
		return Status{}, v.pollErr(err)
	}

	// Whatever intermediate state the metadata reports, an operation that is
	// not done is pending.
	if !op.Done {
		return Status{State: StatePending}, nil
	}
	if op.Error != nil {
		return Status{State: StateFailed, Reason: op.Error.Message}, nil
	}
	if op.Response == nil || len(op.Response.Videos) == 0 {
		return Status{State: StateFailed, Reason: "operation done without videos"}, nil
	}

	artifacts := make([]string, 0, len(op.Response.Videos))
	lastFrame := ""
	for _, video := range op.Response.Videos {
		artifacts = append(artifacts, video.URI)
		if video.LastFrameURI != "" {
			lastFrame = video.LastFrameURI
		}
	}
	if lastFrame == "" {
		// No extracted frame; the video itself is the best continuation
		// handle available.
		lastFrame = artifacts[len(artifacts)-1]
	}
	return Status{State: StateSucceeded, Result: newResult(artifacts, lastFrame, map[string]string{
		"provider":  v.name,
		"operation": op.Name,
	})}, nil
}

var _ Adapter = (*Veo)(nil)
