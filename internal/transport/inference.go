package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fieldsync/internal/services"
)

// Reupload names the dependencies the server wants sent again.
type Reupload struct {
	Video  bool `json:"video"`
	Params bool `json:"params"`
}

// Any reports whether at least one dependency is flagged.
func (r *Reupload) Any() bool {
	return r != nil && (r.Video || r.Params)
}

// InferenceResult is the server's answer to an inference status request.
type InferenceResult struct {
	// Status is the lower-cased status field; empty when absent or unparsable.
	Status     string
	Reupload   *Reupload
	HTTPStatus int
	Raw        json.RawMessage
}

type inferenceEnvelope struct {
	Status   string    `json:"status"`
	Reupload *Reupload `json:"reupload,omitempty"`
}

// Inference asks the server for the inference state of key. A non-2xx response
// is returned as an error marked services.ErrServer.
func (c *Client) Inference(ctx context.Context, key string) (InferenceResult, error) {
	if strings.TrimSpace(key) == "" {
		return InferenceResult{}, services.Wrap(services.ErrValidation, "transport", "inference", "empty key", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, inferenceEndpoint(c.baseURL, key), nil)
	if err != nil {
		return InferenceResult{}, err
	}

	code, raw, err := c.do(req, "inference")
	if err != nil {
		return InferenceResult{}, err
	}
	result := InferenceResult{HTTPStatus: code, Raw: raw}
	if !isSuccessCode(code) {
		return result, services.Wrap(services.ErrServer, "transport", "inference", fmt.Sprintf("status %d", code), nil)
	}

	var envelope inferenceEnvelope
	if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil {
		result.Status = strings.ToLower(strings.TrimSpace(envelope.Status))
		result.Reupload = envelope.Reupload
	}
	return result, nil
}
