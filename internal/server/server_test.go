package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/offlinefirst/taskrecorder/pkg/recorder"
	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

type fakeController struct {
	startID  string
	startErr error
	stopSum  recorder.Summary
	stopErr  error
	status   recorder.Status

	startedWith string
}

func (f *fakeController) Start(output string) (string, error) {
	f.startedWith = output
	return f.startID, f.startErr
}

func (f *fakeController) Stop() (recorder.Summary, error) {
	return f.stopSum, f.stopErr
}

func (f *fakeController) Status() recorder.Status {
	return f.status
}

type fakeLister struct {
	records []registry.Record
	err     error
}

func (f *fakeLister) List(_ context.Context, _ int) ([]registry.Record, error) {
	return f.records, f.err
}

func testServer(controller Controller, lister SessionLister) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("127.0.0.1:0", logger, controller, lister)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{}, nil), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestStartSession(t *testing.T) {
	controller := &fakeController{startID: "sess-1"}
	rec := doRequest(t, testServer(controller, nil), http.MethodPost, "/v1/sessions", `{"path":"out.csv"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if controller.startedWith != "out.csv" {
		t.Fatalf("controller received %q", controller.startedWith)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["session_id"] != "sess-1" {
		t.Fatalf("unexpected body %v", resp)
	}
}

func TestStartConflictsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"already recording", recorder.ErrAlreadyRecording, http.StatusConflict},
		{"output unavailable", recorder.ErrOutputUnavailable, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, testServer(&fakeController{startErr: tc.err}, nil),
				http.MethodPost, "/v1/sessions", `{"path":"out.csv"}`)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
		})
	}
}

func TestStartRejectsMissingPath(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{}, nil), http.MethodPost, "/v1/sessions", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStopSession(t *testing.T) {
	controller := &fakeController{stopSum: recorder.Summary{
		SessionID:     "sess-1",
		EventsWritten: 3,
		Duration:      2 * time.Second,
	}}
	rec := doRequest(t, testServer(controller, nil), http.MethodPost, "/v1/sessions/stop", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["events_written"].(float64) != 3 {
		t.Fatalf("unexpected body %v", resp)
	}
	if resp["duration_ms"].(float64) != 2000 {
		t.Fatalf("unexpected duration %v", resp["duration_ms"])
	}
}

func TestStopWhileIdle(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{stopErr: recorder.ErrNotRecording}, nil),
		http.MethodPost, "/v1/sessions/stop", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStatusWhileRecording(t *testing.T) {
	controller := &fakeController{status: recorder.Status{
		State:     recorder.StateRecording,
		SessionID: "sess-9",
		Elapsed:   1500 * time.Millisecond,
	}}
	rec := doRequest(t, testServer(controller, nil), http.MethodGet, "/v1/status", "")

	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "recording" || resp.SessionID != "sess-9" || resp.ElapsedMS != 1500 {
		t.Fatalf("unexpected status %+v", resp)
	}
}

func TestStatusWhileIdleOmitsSession(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{status: recorder.Status{State: recorder.StateIdle}}, nil),
		http.MethodGet, "/v1/status", "")
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "idle" || resp.SessionID != "" {
		t.Fatalf("unexpected status %+v", resp)
	}
}

func TestListSessions(t *testing.T) {
	lister := &fakeLister{records: []registry.Record{{SessionID: "a"}, {SessionID: "b"}}}
	rec := doRequest(t, testServer(&fakeController{}, lister), http.MethodGet, "/v1/sessions?limit=5", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []registry.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestListSessionsWithoutRegistry(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{}, nil), http.MethodGet, "/v1/sessions", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListSessionsRejectsBadLimit(t *testing.T) {
	rec := doRequest(t, testServer(&fakeController{}, &fakeLister{}), http.MethodGet, "/v1/sessions?limit=-2", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
