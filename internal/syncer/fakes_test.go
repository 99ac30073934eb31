package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldsync/internal/entry"
	"fieldsync/internal/store"
	"fieldsync/internal/testsupport"
	"fieldsync/internal/transport"
)

var errBoom = errors.New("connection reset")

// fakeClient scripts Sender and Inquirer answers per entry id / inference key.
type fakeClient struct {
	mu         sync.Mutex
	videoErr   map[string]error
	paramsErr  map[string]error
	rejected   map[string]bool
	inference  map[string]transport.InferenceResult
	inferErr   map[string]error
	videoCalls []string
	paramCalls []string
	keys       []string

	delay     time.Duration
	active    int
	maxActive int

	beforeVideo func(ctx context.Context, id string)
	duringPoll  func(key string)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		videoErr:  make(map[string]error),
		paramsErr: make(map[string]error),
		rejected:  make(map[string]bool),
		inference: make(map[string]transport.InferenceResult),
		inferErr:  make(map[string]error),
	}
}

func (f *fakeClient) UploadVideo(ctx context.Context, id, _ string, _ entry.Params) (transport.UploadResult, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, id)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	hook := f.beforeVideo
	err := f.videoErr[id]
	rejected := f.rejected[id]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	if hook != nil {
		hook(ctx, id)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return transport.UploadResult{}, err
	}
	return uploadAnswer(rejected), nil
}

func (f *fakeClient) UploadParams(_ context.Context, id string, _ entry.Params) (transport.UploadResult, error) {
	f.mu.Lock()
	f.paramCalls = append(f.paramCalls, id)
	err := f.paramsErr[id]
	rejected := f.rejected[id]
	f.mu.Unlock()
	if err != nil {
		return transport.UploadResult{}, err
	}
	return uploadAnswer(rejected), nil
}

func (f *fakeClient) Inference(_ context.Context, key string) (transport.InferenceResult, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	hook := f.duringPoll
	err := f.inferErr[key]
	result, ok := f.inference[key]
	f.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	if err != nil {
		return transport.InferenceResult{}, err
	}
	if !ok {
		result = inferenceAnswer(`{"status":"running"}`)
	}
	return result, nil
}

func (f *fakeClient) calls() (video, params, keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.videoCalls...), append([]string(nil), f.paramCalls...), append([]string(nil), f.keys...)
}

func uploadAnswer(rejected bool) transport.UploadResult {
	if rejected {
		return transport.UploadResult{Status: "error", HTTPStatus: 200, Raw: json.RawMessage(`{"status":"error"}`)}
	}
	return transport.UploadResult{Accepted: true, Status: "success", HTTPStatus: 200, Raw: json.RawMessage(`{"status":"success"}`)}
}

// inferenceAnswer builds a result the way the transport would parse body.
func inferenceAnswer(body string) transport.InferenceResult {
	var envelope struct {
		Status   string              `json:"status"`
		Reupload *transport.Reupload `json:"reupload"`
	}
	_ = json.Unmarshal([]byte(body), &envelope)
	return transport.InferenceResult{
		Status:     envelope.Status,
		Reupload:   envelope.Reupload,
		HTTPStatus: 200,
		Raw:        json.RawMessage(body),
	}
}

// seedUploaded adds an entry for path with both payloads already uploaded.
func seedUploaded(t *testing.T, st *store.Store, path string, params entry.Params) entry.Entry {
	t.Helper()
	created, ok, _ := st.Add(context.Background(), path, params)
	if !ok {
		t.Fatalf("seed %s: entry already exists", path)
	}
	updated, ok := st.Modify(context.Background(), created.ID, func(e entry.Entry) entry.Entry {
		e = entry.RecordUpload(e, entry.PayloadVideo, true, json.RawMessage(`{"status":"success"}`))
		return entry.RecordUpload(e, entry.PayloadParams, true, json.RawMessage(`{"status":"success"}`))
	})
	if !ok {
		t.Fatalf("seed %s: modify failed", path)
	}
	return updated
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, _ := testsupport.NewMemoryStore(t)
	return st
}

func mustGet(t *testing.T, st *store.Store, id string) entry.Entry {
	t.Helper()
	e, ok := st.Get(id)
	if !ok {
		t.Fatalf("entry %s not found", id)
	}
	return e
}

// collector gathers Reporter messages from any goroutine.
type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) report(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}
