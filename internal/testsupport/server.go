package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Request records one call received by a FakeServer.
type Request struct {
	Method    string
	Path      string
	ID        string
	RequestID string
	Params    map[string]any
}

type scriptedResponse struct {
	code int
	body string
}

// FakeServer is a scripted inference server. Uploads succeed and inference
// reports "running" unless a test scripts otherwise.
type FakeServer struct {
	*httptest.Server

	mu        sync.Mutex
	video     map[string]scriptedResponse
	params    map[string]scriptedResponse
	inference map[string][]scriptedResponse
	dropVideo map[string]bool
	requests  []Request
	onRequest func(Request)
}

// NewFakeServer starts a FakeServer and closes it when the test ends.
func NewFakeServer(t testing.TB) *FakeServer {
	t.Helper()

	f := &FakeServer{
		video:     make(map[string]scriptedResponse),
		params:    make(map[string]scriptedResponse),
		inference: make(map[string][]scriptedResponse),
		dropVideo: make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send/video", f.handleVideo)
	mux.HandleFunc("POST /send/params", f.handleParams)
	mux.HandleFunc("GET /inference/{key}", f.handleInference)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// SetVideoResponse scripts the /send/video answer for id.
func (f *FakeServer) SetVideoResponse(id string, code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video[id] = scriptedResponse{code: code, body: body}
}

// SetParamsResponse scripts the /send/params answer for id.
func (f *FakeServer) SetParamsResponse(id string, code int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[id] = scriptedResponse{code: code, body: body}
}

// DropVideoConnection makes video uploads for id fail at the network level.
func (f *FakeServer) DropVideoConnection(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropVideo[id] = true
}

// SetInference queues inference bodies for key; the last one repeats.
func (f *FakeServer) SetInference(key string, bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := make([]scriptedResponse, 0, len(bodies))
	for _, body := range bodies {
		queue = append(queue, scriptedResponse{code: http.StatusOK, body: body})
	}
	f.inference[key] = queue
}

// OnRequest registers a hook called for every request after it is recorded.
func (f *FakeServer) OnRequest(fn func(Request)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRequest = fn
}

// Requests returns a copy of every recorded request.
func (f *FakeServer) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Count returns how many recorded requests have a path starting with prefix.
func (f *FakeServer) Count(prefix string) int {
	n := 0
	for _, req := range f.Requests() {
		if strings.HasPrefix(req.Path, prefix) {
			n++
		}
	}
	return n
}

func (f *FakeServer) record(req Request) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.onRequest
	f.mu.Unlock()
	if hook != nil {
		hook(req)
	}
}

func (f *FakeServer) handleVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.FormValue("id")
	var params map[string]any
	_ = json.Unmarshal([]byte(r.FormValue("params")), &params)
	f.record(Request{Method: r.Method, Path: r.URL.Path, ID: id, RequestID: r.Header.Get("X-Request-ID"), Params: params})

	f.mu.Lock()
	drop := f.dropVideo[id]
	resp, ok := f.video[id]
	f.mu.Unlock()
	if drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
	}
	writeScripted(w, resp, ok)
}

func (f *FakeServer) handleParams(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID     string         `json:"id"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.record(Request{Method: r.Method, Path: r.URL.Path, ID: body.ID, RequestID: r.Header.Get("X-Request-ID"), Params: body.Params})

	f.mu.Lock()
	resp, ok := f.params[body.ID]
	f.mu.Unlock()
	writeScripted(w, resp, ok)
}

func (f *FakeServer) handleInference(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	f.record(Request{Method: r.Method, Path: r.URL.Path, ID: key, RequestID: r.Header.Get("X-Request-ID")})

	f.mu.Lock()
	queue := f.inference[key]
	resp := scriptedResponse{code: http.StatusOK, body: `{"status":"running"}`}
	if len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.inference[key] = queue[1:]
		}
	}
	f.mu.Unlock()
	writeScripted(w, resp, true)
}

func writeScripted(w http.ResponseWriter, resp scriptedResponse, ok bool) {
	if !ok {
		resp = scriptedResponse{code: http.StatusOK, body: `{"status":"success"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.code)
	_, _ = w.Write([]byte(resp.body))
}
