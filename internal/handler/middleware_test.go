package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pdf-annotator/internal/domain"
)

type recordingLogger struct {
	MockHandlerLogger
	infos  []string
	fields [][]interface{}
	errors int
}

func (l *recordingLogger) Info(msg string, fields ...interface{}) {
	l.infos = append(l.infos, msg)
	l.fields = append(l.fields, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields ...interface{}) {
	l.errors++
}

var _ domain.Logger = (*recordingLogger)(nil)

func TestRequestLogger_RecordsStatus(t *testing.T) {
	logger := &recordingLogger{}
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(logger.infos) != 1 || logger.infos[0] != "HTTP request" {
		t.Fatalf("expected one request log line, got %v", logger.infos)
	}

	fields := logger.fields[0]
	found := false
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == "status" && fields[i+1] == http.StatusAccepted {
			found = true
		}
	}
	if !found {
		t.Fatalf("status not logged: %v", fields)
	}
}

func TestRecoverer(t *testing.T) {
	logger := &recordingLogger{}
	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if logger.errors != 1 {
		t.Fatalf("expected panic to be logged once, got %d", logger.errors)
	}
}
