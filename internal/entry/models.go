package entry

import (
	"encoding/json"
	"maps"
	"strings"
	"time"
)

// UploadStatus represents the lifecycle of one payload transfer.
type UploadStatus string

const (
	UploadNew       UploadStatus = "new"
	UploadUploading UploadStatus = "uploading"
	UploadUploaded  UploadStatus = "uploaded"
	UploadFailed    UploadStatus = "failed"
)

// InferenceStatus represents the lifecycle of the remote analysis step.
type InferenceStatus string

const (
	InferenceNew       InferenceStatus = "new"
	InferenceWaiting   InferenceStatus = "waiting"
	InferenceRunning   InferenceStatus = "running"
	InferenceCompleted InferenceStatus = "completed"
	InferenceFailed    InferenceStatus = "failed"
)

var allUploadStatuses = []UploadStatus{UploadNew, UploadUploading, UploadUploaded, UploadFailed}

var allInferenceStatuses = []InferenceStatus{
	InferenceNew,
	InferenceWaiting,
	InferenceRunning,
	InferenceCompleted,
	InferenceFailed,
}

// AllUploadStatuses returns the ordered list of known upload statuses.
func AllUploadStatuses() []UploadStatus {
	cp := make([]UploadStatus, len(allUploadStatuses))
	copy(cp, allUploadStatuses)
	return cp
}

// AllInferenceStatuses returns the ordered list of known inference statuses.
func AllInferenceStatuses() []InferenceStatus {
	cp := make([]InferenceStatus, len(allInferenceStatuses))
	copy(cp, allInferenceStatuses)
	return cp
}

// ParseUploadStatus converts a string into a known UploadStatus.
func ParseUploadStatus(value string) (UploadStatus, bool) {
	normalized := UploadStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allUploadStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseInferenceStatus converts a string into a known InferenceStatus.
func ParseInferenceStatus(value string) (InferenceStatus, bool) {
	normalized := InferenceStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allInferenceStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Payload names one of the two uploads an entry depends on.
type Payload string

const (
	PayloadVideo  Payload = "video"
	PayloadParams Payload = "params"
)

// Params is the opaque parameter payload attached to a media item.
type Params map[string]any

// Entry is the persisted record tracking one media item.
type Entry struct {
	ID                  string          `json:"id"`
	MediaPath           string          `json:"mediaPath"`
	Params              Params          `json:"params"`
	VideoUploadStatus   UploadStatus    `json:"videoUploadStatus"`
	VideoUploadResponse json.RawMessage `json:"videoUploadResponse,omitempty"`
	ParamUploadStatus   UploadStatus    `json:"paramUploadStatus"`
	ParamUploadResponse json.RawMessage `json:"paramUploadResponse,omitempty"`
	InferenceStatus     InferenceStatus `json:"inferenceStatus"`
	InferenceResponse   json.RawMessage `json:"inferenceResponse,omitempty"`
	UpdatedAt           time.Time       `json:"updatedAt,omitzero"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (e Entry) Clone() Entry {
	out := e
	out.Params = cloneParams(e.Params)
	out.VideoUploadResponse = cloneRaw(e.VideoUploadResponse)
	out.ParamUploadResponse = cloneRaw(e.ParamUploadResponse)
	out.InferenceResponse = cloneRaw(e.InferenceResponse)
	return out
}

// UploadStatusOf returns the status of the given payload.
func (e Entry) UploadStatusOf(p Payload) UploadStatus {
	if p == PayloadVideo {
		return e.VideoUploadStatus
	}
	return e.ParamUploadStatus
}

// UploadsComplete reports whether both payloads reached uploaded, the gate for
// requesting inference.
func (e Entry) UploadsComplete() bool {
	return e.VideoUploadStatus == UploadUploaded && e.ParamUploadStatus == UploadUploaded
}

// UploadInFlight reports whether either payload is mid-transfer.
func (e Entry) UploadInFlight() bool {
	return e.VideoUploadStatus == UploadUploading || e.ParamUploadStatus == UploadUploading
}

// NeedsUpload reports whether either payload still has to be sent.
func (e Entry) NeedsUpload() bool {
	return e.VideoUploadStatus != UploadUploaded || e.ParamUploadStatus != UploadUploaded
}

func cloneParams(p Params) Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for key, value := range p {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return map[string]any(cloneParams(Params(typed)))
	case Params:
		return cloneParams(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// MergeParams returns a copy of base with extra layered on top.
func MergeParams(base Params, extra map[string]any) Params {
	out := cloneParams(base)
	if out == nil {
		out = Params{}
	}
	maps.Copy(out, extra)
	return out
}
