package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"fieldsync/internal/entry"
	"fieldsync/internal/services"
)

const statusSuccess = "success"

// UploadResult is the server's answer to an upload request.
type UploadResult struct {
	// Accepted is true only for a 2xx response whose status field is "success".
	Accepted   bool
	Status     string
	HTTPStatus int
	Raw        json.RawMessage
}

type uploadEnvelope struct {
	Status string `json:"status"`
}

type paramsBody struct {
	ID     string       `json:"id"`
	Params entry.Params `json:"params"`
}

// UploadVideo streams the video at mediaPath as a multipart form with the
// entry id and the JSON-encoded params alongside it.
func (c *Client) UploadVideo(ctx context.Context, id, mediaPath string, params entry.Params) (UploadResult, error) {
	file, err := os.Open(mediaPath)
	if err != nil {
		marker := services.ErrValidation
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return UploadResult{}, services.Wrap(marker, "transport", "open video", mediaPath, err)
	}
	defer file.Close()

	encodedParams, err := json.Marshal(nonNilParams(params))
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrValidation, "transport", "encode params", id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeVideoForm(writer, id, encodedParams, file))
	}()
	defer pr.Close()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(pathSendVideo), pr)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	code, raw, err := c.do(req, "send video")
	if err != nil {
		return UploadResult{}, err
	}
	return uploadResult(code, raw), nil
}

func writeVideoForm(writer *multipart.Writer, id string, params []byte, video io.Reader) error {
	if err := writer.WriteField("id", id); err != nil {
		return fmt.Errorf("write id field: %w", err)
	}
	if err := writer.WriteField("params", string(params)); err != nil {
		return fmt.Errorf("write params field: %w", err)
	}
	part, err := writer.CreateFormFile("video", id)
	if err != nil {
		return fmt.Errorf("create video field: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	return writer.Close()
}

// UploadParams sends the parameter payload as JSON.
func (c *Client) UploadParams(ctx context.Context, id string, params entry.Params) (UploadResult, error) {
	body, err := json.Marshal(paramsBody{ID: id, Params: nonNilParams(params)})
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrValidation, "transport", "encode params", id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint(pathSendParams), strings.NewReader(string(body)))
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	code, raw, err := c.do(req, "send params")
	if err != nil {
		return UploadResult{}, err
	}
	return uploadResult(code, raw), nil
}

func uploadResult(code int, raw json.RawMessage) UploadResult {
	result := UploadResult{HTTPStatus: code, Raw: raw}
	var envelope uploadEnvelope
	if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil {
		result.Status = strings.TrimSpace(envelope.Status)
	}
	result.Accepted = isSuccessCode(code) && strings.EqualFold(result.Status, statusSuccess)
	return result
}

func nonNilParams(p entry.Params) entry.Params {
	if p == nil {
		return entry.Params{}
	}
	return p
}
