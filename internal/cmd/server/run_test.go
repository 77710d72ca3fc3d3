package serverrun

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/tideline/internal/config"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

func TestStoreDir(t *testing.T) {
	if got := storeDir("/custom/data"); got != filepath.Join("/custom/data", "store") {
		t.Errorf("unexpected store dir %s", got)
	}
	got := storeDir("")
	if got == "store" || !strings.HasSuffix(got, "store") {
		t.Errorf("empty data dir should fall back to the default, got %s", got)
	}
}

func TestBuildLoggerFallsBack(t *testing.T) {
	if l := buildLogger(cfgpkg.LogConfig{Level: "debug", Format: "json"}); l == nil {
		t.Fatal("expected logger")
	}
	// unknown format falls back to text instead of failing startup
	if l := buildLogger(cfgpkg.LogConfig{Level: "warn", Format: "xml"}); l == nil {
		t.Fatal("expected fallback logger")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// TestRunIntegration starts both servers, probes the HTTP health endpoint and
// shuts down on cancel.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "never"
	cfg.HTTP.Addr = freeAddr(t)
	cfg.GRPC.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Config: cfg, Logger: logpkg.Nop()}) }()

	var status string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + cfg.HTTP.Addr + "/v1/healthz")
		if err == nil {
			var body map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			status = body["status"]
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != "ok" {
		t.Fatalf("expected healthy server, got %q", status)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Backend = "mongo"
	if err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.Nop()}); err == nil {
		t.Fatal("expected invalid backend to fail")
	}
}
