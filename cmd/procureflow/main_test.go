package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"procureflow/internal/config"
	"procureflow/internal/core"
)

// execute runs the root command against an isolated working directory with
// a sqlite snapshot at dbPath.
func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PROCUREFLOW_STORAGE_DRIVER", "sqlite")
	t.Setenv("PROCUREFLOW_STORAGE_SQLITE_PATH", dbPath)
	t.Setenv("PROCUREFLOW_LOGGING_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeData(t *testing.T, raw string) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return resp.Data
}

func TestRequestPersistsAcrossInvocations(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "state.db")

	out, err := execute(t, db, "request", "POST", "/requirements", `{"title":"Office chairs","quantity":"50","unit":"pcs"}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id := decodeData(t, out)["id"]; id != float64(1) {
		t.Fatalf("expected id 1, got %v", id)
	}

	out, err = execute(t, db, "request", "get", "/requirements/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data := decodeData(t, out)
	if data["title"] != "Office chairs" || data["status"] != "scouting" {
		t.Fatalf("unexpected requirement %v", data)
	}

	if out, err = execute(t, db, "reset"); err != nil || !strings.Contains(out, "snapshot cleared") {
		t.Fatalf("reset: %q %v", out, err)
	}
	if _, err = execute(t, db, "request", "GET", "/requirements/1"); err == nil || !strings.HasPrefix(err.Error(), "404") {
		t.Fatalf("expected 404 after reset, got %v", err)
	}
}

func TestRequestErrorsCarryStatus(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "state.db")

	if _, err := execute(t, db, "request", "DELETE", "/requirements/1"); err == nil || !strings.HasPrefix(err.Error(), "501") {
		t.Fatalf("expected 501, got %v", err)
	}
	if _, err := execute(t, db, "request", "POST", "/requirements", `{"quantity":`); err == nil || !strings.HasPrefix(err.Error(), "400") {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRoutesAndVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	db := filepath.Join(t.TempDir(), "state.db")

	out, err := execute(t, db, "routes")
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 11 {
		t.Fatalf("expected 11 routes, got %d: %q", len(lines), out)
	}

	out, err = execute(t, db, "version")
	if err != nil || !strings.HasPrefix(out, "procureflow ") {
		t.Fatalf("version: %q %v", out, err)
	}
}

func TestInvalidConfigurationFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROCUREFLOW_METRICS_BACKEND", "statsd")
	if _, err := execute(t, filepath.Join(t.TempDir(), "state.db"), "routes"); err == nil || !strings.Contains(err.Error(), "metrics.backend") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, err := setupLogging(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", buf.String())
	}
	if _, err := setupLogging(&buf, config.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := setupLogging(&buf, config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestMuxServesAPIHealthAndMetrics(t *testing.T) {
	svc := core.NewInMemoryService(nil)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "metrics")
	})
	logger, err := setupLogging(io.Discard, config.LoggingConfig{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("setup logging: %v", err)
	}
	srv := httptest.NewServer(newMux(svc, metrics, logger))
	defer srv.Close()

	for path, want := range map[string]string{"/healthz": "ok\n", "/metrics": "metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if string(body) != want {
			t.Fatalf("%s: expected %q, got %q", path, want, body)
		}
	}

	resp, err := http.Post(srv.URL+"/api/requirements", "application/json", strings.NewReader(`{"title":"Desks"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	logger, _ := setupLogging(io.Discard, config.LoggingConfig{Level: "error", Format: "console"})
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := listenAndServe(ctx, srv, logger); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestOpenTraceWriter(t *testing.T) {
	var stderr bytes.Buffer
	w, closeFn, err := openTraceWriter("-", &stderr)
	if err != nil || w != &stderr {
		t.Fatalf("expected stderr writer, got %v %v", w, err)
	}
	closeFn()

	path := filepath.Join(t.TempDir(), "spans.jsonl")
	w, closeFn, err = openTraceWriter(path, &stderr)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tracer := core.NewJSONTracer(w, 0)
	_, span := tracer.Start(context.Background(), core.OpListRequirements)
	span.End(nil)
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"operation":"list_requirements"`) {
		t.Fatalf("unexpected trace file %q %v", data, err)
	}

	if _, _, err := openTraceWriter(filepath.Join(t.TempDir(), "missing", "spans.jsonl"), &stderr); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
