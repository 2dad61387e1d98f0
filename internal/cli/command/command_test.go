package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/yndnr/aggregator/internal/infra/buildinfo"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// runApp runs the CLI with args and returns what it wrote.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{buildinfo.Name}, args...))
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aggregator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "aggregator" {
		t.Errorf("Name = %q, want aggregator", app.Name)
	}

	commands := make(map[string]bool)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = true
	}
	for _, name := range []string{"run-aggregator", "status", "checkpoints", "config", "version"} {
		if !commands[name] {
			t.Errorf("missing command: %s", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "log-level", "output"} {
		if !flags[name] {
			t.Errorf("missing global flag: %s", name)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warning\nshutdown:\n  timeout: 5s\n")

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Log.Level != "warning" || cfg.Shutdown.Timeout != 5*time.Second {
		t.Errorf("cfg = %+v", cfg.Shutdown)
	}

	cfg, err = LoadConfig(path, "debug")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level override = %q, want debug", cfg.Log.Level)
	}

	if _, err := LoadConfig(path, "chatty"); err == nil {
		t.Error("LoadConfig() with invalid level should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "aggregator "+buildinfo.Version) {
		t.Errorf("output = %q", out)
	}

	out, err = runApp(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version -o json error = %v", err)
	}
	var info buildinfo.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.GoVersion == "" {
		t.Error("go_version missing")
	}

	if _, err := runApp(t, "-o", "xml", "version"); err == nil {
		t.Error("unknown output format should fail")
	}
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	path := writeConfig(t, "api_key: supersecretbrokertoken\n")

	out, err := runApp(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "supersecretbrokertoken") {
		t.Error("api_key printed in clear")
	}
	for _, want := range []string{"api_key: sup...ken", "consumer_prefix: consumer", "timeout: 30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	good := writeConfig(t, "exchange:\n  partitions: 2\n")
	if out, err := runApp(t, "--config", good, "config", "validate"); err != nil {
		t.Fatalf("validate error = %v", err)
	} else if !strings.Contains(out, "configuration is valid") {
		t.Errorf("output = %q", out)
	}

	bad := writeConfig(t, "exchange:\n  partitions: 0\n")
	_, err := runApp(t, "--config", bad, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "partitions") {
		t.Errorf("validate error = %v, want partitions failure", err)
	}
}

func TestStatusCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"shutting_down"}`))
		case "/checkpoints":
			json.NewEncoder(w).Encode([]checkpoint.Checkpoint{
				{Stream: "bybit/1", Symbol: "ETHUSDT", TradeID: "x-1", Seq: 12},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	out, err := runApp(t, "status", "--addr", server.URL)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"shutting_down", "STREAM", "bybit/1", "ETHUSDT", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runApp(t, "-o", "yaml", "status", "--addr", server.URL)
	if err != nil {
		t.Fatalf("status -o yaml error = %v", err)
	}
	if !strings.Contains(out, "status: shutting_down") || !strings.Contains(out, "trade_id: x-1") {
		t.Errorf("yaml output = %s", out)
	}
}

func TestCheckpointsCommand(t *testing.T) {
	dir := t.TempDir()
	store, err := checkpoint.Open(checkpoint.Options{Dir: dir})
	if err != nil {
		t.Fatalf("checkpoint.Open() error = %v", err)
	}
	if err := store.Save(context.Background(), "bybit/0", checkpoint.Checkpoint{Symbol: "BTCUSDT", Seq: 5}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "-o", "json", "checkpoints", "--data-dir", dir)
	if err != nil {
		t.Fatalf("checkpoints error = %v", err)
	}
	var got []checkpoint.Checkpoint
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0].Stream != "bybit/0" || got[0].Seq != 5 {
		t.Errorf("checkpoints = %+v", got)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, io.ErrUnexpectedEOF)
	if !strings.Contains(buf.String(), "error:") || !strings.Contains(buf.String(), "unexpected EOF") {
		t.Errorf("PrintError() = %q", buf.String())
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServe_StopsOnSignal(t *testing.T) {
	cfg := config.Default()
	cfg.Exchange.Endpoint = "ws://127.0.0.1:1/unreachable"
	cfg.Exchange.ReconnectDelay = 50 * time.Millisecond
	cfg.Sink.Driver = "memory"
	cfg.Storage.InMemory = true
	cfg.Metrics.Addr = freeAddr(t)
	cfg.Shutdown.Timeout = 5 * time.Second

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(context.Background(), cfg, &GlobalFlags{}, log)
	}()

	// Signal handlers are installed before the metrics listener comes up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + cfg.Metrics.Addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve() did not return after SIGHUP")
	}
}
