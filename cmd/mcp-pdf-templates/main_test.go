package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-pdf-templates/internal/config"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
)

const testVersion = "1.2.3"

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	tests := []struct {
		name      string
		version   string
		buildTime string
		gitCommit string
	}{
		{name: "release build", version: testVersion, buildTime: "2023-12-01_10:30:00", gitCommit: "abc123"},
		{name: "defaults", version: "dev", buildTime: "unknown", gitCommit: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, buildTime, gitCommit = tt.version, tt.buildTime, tt.gitCommit
			output := captureStdout(t, printVersion)

			for _, expected := range []string{
				"MCP PDF Templates",
				"Version: " + tt.version,
				"Build Time: " + tt.buildTime,
				"Git Commit: " + tt.gitCommit,
				"Built with:",
			} {
				if !strings.Contains(output, expected) {
					t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
				}
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDirectory = dir
	cfg.DBDSN = filepath.Join(dir, "templates.db")
	cfg.DownloadDirectory = filepath.Join(dir, "downloads")
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

func TestNewLogger(t *testing.T) {
	for _, mode := range []string{config.ModeStdio, config.ModeServer} {
		cfg := testConfig(t)
		cfg.Mode = mode
		log, err := newLogger(cfg)
		if err != nil {
			t.Fatalf("newLogger(%s) error = %v", mode, err)
		}
		log.Debug("logger ready", "mode", mode)
	}

	cfg := testConfig(t)
	cfg.LogLevel = "loud"
	if _, err := newLogger(cfg); err == nil {
		t.Error("expected error for an unknown level")
	}
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	a, err := build(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	if _, err := os.Stat(cfg.ObjectRoot()); err != nil {
		t.Errorf("object root not created: %v", err)
	}
	if _, err := os.Stat(cfg.DownloadDirectory); err != nil {
		t.Errorf("download directory not created: %v", err)
	}

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	a.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/templates = %d, body %s", w.Code, w.Body.String())
	}
}

func TestBuild_RemoteGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.RemoteGenerator = "http://127.0.0.1:1"
	a, err := build(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	a.close()

	cfg = testConfig(t)
	cfg.RemoteGenerator = "::bad"
	if _, err := build(context.Background(), cfg, logger.Nop()); err == nil {
		t.Error("expected error for a malformed remote generator URL")
	}
}

func TestRunServerMode_StopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = config.ModeServer
	a, err := build(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.runServerMode(ctx); err != nil {
		t.Errorf("runServerMode() error = %v", err)
	}
}
