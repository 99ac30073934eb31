package entry

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Patch lists the inputs a caller wants to change. Nil fields are left alone;
// a non-nil empty Params replaces the payload with an empty one.
type Patch struct {
	MediaPath *string
	Params    Params
}

// New builds a fresh entry for a media item with every status at new.
func New(mediaPath string, params Params) Entry {
	if params == nil {
		params = Params{}
	}
	return Entry{
		ID:                IDFromPath(mediaPath),
		MediaPath:         mediaPath,
		Params:            cloneParams(params),
		VideoUploadStatus: UploadNew,
		ParamUploadStatus: UploadNew,
		InferenceStatus:   InferenceNew,
	}
}

// Apply merges patch into e and reports whether a reset-triggering change
// occurred. A new media path re-derives the id and resets the video upload and
// inference; new params (compared by value) reset the params upload and
// inference. The input entry is never modified.
func Apply(e Entry, patch Patch) (Entry, bool) {
	out := e.Clone()
	changed := false

	if patch.MediaPath != nil && *patch.MediaPath != e.MediaPath {
		out.MediaPath = *patch.MediaPath
		out.ID = IDFromPath(out.MediaPath)
		out = resetUpload(out, PayloadVideo)
		out = resetInference(out)
		changed = true
	}

	if patch.Params != nil && !ParamsEqual(e.Params, patch.Params) {
		out.Params = cloneParams(patch.Params)
		out = resetUpload(out, PayloadParams)
		out = resetInference(out)
		changed = true
	}

	return out, changed
}

// ParamsEqual compares two payloads by value. Both sides are compared through
// their JSON encoding so numbers decoded from the snapshot (float64) match the
// integers a manifest produces.
func ParamsEqual(a, b Params) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(left, right)
}

// MarkUploading moves one payload to uploading.
func MarkUploading(e Entry, p Payload) Entry {
	return setUpload(e.Clone(), p, UploadUploading)
}

// RecordUpload stores the server's response for one payload and sets the
// status to uploaded when the server accepted it, failed otherwise.
func RecordUpload(e Entry, p Payload, accepted bool, response json.RawMessage) Entry {
	out := e.Clone()
	status := UploadFailed
	if accepted {
		status = UploadUploaded
	}
	out = setUpload(out, p, status)
	if p == PayloadVideo {
		out.VideoUploadResponse = cloneRaw(response)
	} else {
		out.ParamUploadResponse = cloneRaw(response)
	}
	return out
}

// FailUpload marks one payload failed and keeps whatever response it held
// before the attempt.
func FailUpload(e Entry, p Payload) Entry {
	return setUpload(e.Clone(), p, UploadFailed)
}

// Invalidate downgrades the flagged payloads to failed and clears their
// responses so the next cycle sends them again.
func Invalidate(e Entry, video, params bool) Entry {
	out := e.Clone()
	if video {
		out.VideoUploadStatus = UploadFailed
		out.VideoUploadResponse = nil
	}
	if params {
		out.ParamUploadStatus = UploadFailed
		out.ParamUploadResponse = nil
	}
	return out
}

// SetInference sets the inference status and, when response is non-nil,
// replaces the stored inference response.
func SetInference(e Entry, status InferenceStatus, response json.RawMessage) Entry {
	out := e.Clone()
	out.InferenceStatus = status
	if response != nil {
		out.InferenceResponse = cloneRaw(response)
	}
	return out
}

// Recover rewrites statuses left mid-flight by an interrupted process: an
// upload that was in progress becomes failed and a running inference goes back
// to new. The second result reports whether anything changed.
func Recover(e Entry) (Entry, bool) {
	out := e.Clone()
	changed := false
	if out.VideoUploadStatus == UploadUploading {
		out.VideoUploadStatus = UploadFailed
		changed = true
	}
	if out.ParamUploadStatus == UploadUploading {
		out.ParamUploadStatus = UploadFailed
		changed = true
	}
	if out.InferenceStatus == InferenceRunning {
		out.InferenceStatus = InferenceNew
		changed = true
	}
	return out, changed
}

func setUpload(e Entry, p Payload, status UploadStatus) Entry {
	if p == PayloadVideo {
		e.VideoUploadStatus = status
	} else {
		e.ParamUploadStatus = status
	}
	return e
}

func resetUpload(e Entry, p Payload) Entry {
	if p == PayloadVideo {
		e.VideoUploadStatus = UploadNew
		e.VideoUploadResponse = nil
	} else {
		e.ParamUploadStatus = UploadNew
		e.ParamUploadResponse = nil
	}
	return e
}

func resetInference(e Entry) Entry {
	e.InferenceStatus = InferenceNew
	e.InferenceResponse = nil
	return e
}
