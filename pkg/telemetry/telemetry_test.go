package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewLoggerWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{ServiceName: "ledgerctl", Out: &buf, LogLevel: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug().Str("contract", "MyToken").Msg("resolved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "ledgerctl" || entry["contract"] != "MyToken" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(Options{ServiceName: "x", LogLevel: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestInitWithoutEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without service name")
	}

	var buf bytes.Buffer
	tel, err := Init(context.Background(), Options{ServiceName: "ledger-api", Out: &buf})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	handler := tel.Middleware("ledger-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("access log is not JSON: %v (%q)", err, buf.String())
	}
	if entry["path"] != "/healthz" || entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected access log %v", entry)
	}
}
