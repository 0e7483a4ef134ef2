package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoggingHandler(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	h := LoggingHandler(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTeapot)
		rw.Write([]byte("short and stout")) // nolint
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/seed?password=hunter2", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != log.WarnLevel {
		t.Errorf("expected warn level, got %s", entry.Level)
	}
	if entry.Data["status"] != http.StatusTeapot {
		t.Errorf("expected status %d, got %v", http.StatusTeapot, entry.Data["status"])
	}
	if entry.Data["size"] != len("short and stout") {
		t.Errorf("unexpected size %v", entry.Data["size"])
	}
	if entry.Data["path"] != "/v1/seed" {
		t.Errorf("expected query string to be dropped, got %v", entry.Data["path"])
	}
}

func TestLoggingHandlerKeepsRequestID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	h := LoggingHandler(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("expected request id abc, got %q", got)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.InfoLevel {
		t.Fatalf("expected an info entry, got %+v", entry)
	}
}
