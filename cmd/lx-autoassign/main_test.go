package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// isolateEnv clears every variable the config layer reads so the host
// environment cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LX_CONFIG_FILE", "LOG_LEVEL",
		"SNOW_BASE_URL", "SNOW_TABLE", "SNOW_API_USER", "SNOW_API_PASSWORD",
		"DIRECTORY_BASE_URL", "DEFAULT_ASSIGNEE", "REDIS_ADDR", "POSTGRES_DSN",
		"KAFKA_BROKERS", "STATUS_ADDR", "STATUS_JWT_SECRET",
		"TEAM_RHLS_SUPPORT_ASSIGNEES", "TEAM_RHLS_SUPPORT_DEFAULT_ASSIGNEE",
		"TEAM_LX_FEEDBACK_ASSIGNEES", "TEAM_LX_FEEDBACK_DEFAULT_ASSIGNEE", "TEAM_LX_FEEDBACK_ROUND_ROBIN_URL",
	} {
		t.Setenv(key, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageAndUnknownCommand(t *testing.T) {
	isolateEnv(t)
	code, out, _ := runCLI()
	if code != apperrors.ExitOK || !strings.Contains(out, "list-tickets") {
		t.Errorf("usage: code=%d out=%q", code, out)
	}
	code, _, errOut := runCLI("frobnicate")
	if code != apperrors.ExitConfiguration || !strings.Contains(errOut, "unknown command") {
		t.Errorf("unknown command: code=%d err=%q", code, errOut)
	}
}

func TestTeamsCommand(t *testing.T) {
	isolateEnv(t)
	code, out, _ := runCLI("teams", "--log-level", "error")
	if code != apperrors.ExitOK {
		t.Fatalf("code = %d", code)
	}
	for _, key := range []string{"lx-feedback", "rhls-support", "certification"} {
		if !strings.Contains(out, key) {
			t.Errorf("teams output missing %s:\n%s", key, out)
		}
	}
}

func TestAssignConfigurationErrors(t *testing.T) {
	isolateEnv(t)
	cfg := writeConfig(t, "servicenow:\n  base_url: http://127.0.0.1:1\n  username: u\n  password: p\n")

	cases := map[string][]string{
		"unknown team":        {"assign", "nope", "--config", cfg},
		"missing team arg":    {"assign", "--config", cfg},
		"no assignee":         {"assign", "rhls-support", "--config", cfg},
		"missing credentials": {"assign", "rhls-support", "--assignee", "bob", "--config", writeConfig(t, "")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, errOut := runCLI(args...)
			if code != apperrors.ExitConfiguration {
				t.Errorf("code = %d, want %d (stderr %q)", code, apperrors.ExitConfiguration, errOut)
			}
		})
	}
}

type fakeServiceNow struct {
	mu      sync.Mutex
	patched []string
}

func (f *fakeServiceNow) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{
				{"sys_id": "s1", "number": "TR1", "state": "1", "sys_created_on": "2024-05-01 09:00:00", "contact_source": "Jane Doe"},
				{"sys_id": "s2", "number": "TR2", "state": "1", "sys_created_on": "2024-05-01 10:00:00"},
				{"sys_id": "s3", "number": "TR3", "state": "1", "sys_created_on": "2024-05-01 11:00:00"},
			}})
		case http.MethodPatch:
			id := filepath.Base(r.URL.Path)
			if id == "s2" {
				http.Error(w, `{"error":{"message":"invalid"}}`, http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.patched = append(f.patched, id)
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"result":{}}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}
}

func TestAssignRunOnceReportsSummary(t *testing.T) {
	isolateEnv(t)
	snow := &fakeServiceNow{}
	server := httptest.NewServer(snow.handler(t))
	defer server.Close()
	cfg := writeConfig(t, "logger:\n  level: error\nservicenow:\n  base_url: "+server.URL+"\n  username: u\n  password: p\n")

	code, out, errOut := runCLI("assign", "rhls-support", "--assignee", "Bob", "--config", cfg)
	if code != apperrors.ExitOK {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
	if !strings.Contains(out, "processed 3, succeeded 2, failed 1") {
		t.Errorf("summary missing:\n%s", out)
	}
	if len(snow.patched) != 2 || snow.patched[0] != "s1" || snow.patched[1] != "s3" {
		t.Errorf("patched = %v", snow.patched)
	}
}

func TestListTicketsAndTest(t *testing.T) {
	isolateEnv(t)
	server := httptest.NewServer((&fakeServiceNow{}).handler(t))
	defer server.Close()
	cfg := writeConfig(t, "logger:\n  level: error\nservicenow:\n  base_url: "+server.URL+"\n  username: u\n  password: p\n")

	code, out, errOut := runCLI("list-tickets", "lx-feedback", "--limit", "2", "--config", cfg)
	if code != apperrors.ExitOK {
		t.Fatalf("list-tickets code = %d, stderr = %q", code, errOut)
	}
	if !strings.Contains(out, "TR1") || !strings.Contains(out, "TR2") || strings.Contains(out, "TR3") {
		t.Errorf("list-tickets output:\n%s", out)
	}

	code, out, _ = runCLI("test", "--config", cfg)
	if code != apperrors.ExitOK || !strings.Contains(out, "servicenow") {
		t.Errorf("test: code=%d out=%q", code, out)
	}
}

func TestSourceUnavailableExitCode(t *testing.T) {
	isolateEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()
	cfg := writeConfig(t, "logger:\n  level: error\nservicenow:\n  base_url: "+server.URL+"\n  username: u\n  password: p\n")

	code, _, _ := runCLI("assign", "rhls-support", "--assignee", "Bob", "--config", cfg)
	if code != apperrors.ExitSourceUnavailable {
		t.Errorf("assign code = %d", code)
	}
	code, _, _ = runCLI("test", "--config", cfg)
	if code != apperrors.ExitSourceUnavailable {
		t.Errorf("test code = %d", code)
	}
}

func TestTokenCommand(t *testing.T) {
	isolateEnv(t)
	code, _, _ := runCLI("token", "--subject", "ops")
	if code != apperrors.ExitConfiguration {
		t.Errorf("token without secret: code = %d", code)
	}
	t.Setenv("STATUS_JWT_SECRET", "s3cret")
	code, out, _ := runCLI("token", "--subject", "ops", "--log-level", "error")
	if code != apperrors.ExitOK || strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Errorf("token: code=%d out=%q", code, out)
	}
}

func TestAssignRejectsSharedRotationWithoutDefaultBeforeDialing(t *testing.T) {
	isolateEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var dials atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			dials.Add(1)
			_ = conn.Close()
		}
	}()
	var snowHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snowHits.Add(1)
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	cfg := writeConfig(t, "logger:\n  level: error\n"+
		"servicenow:\n  base_url: "+server.URL+"\n  username: u\n  password: p\n"+
		"redis:\n  addr: "+ln.Addr().String()+"\n"+
		"teams:\n  lx-feedback:\n    assignees: [alice, bob]\n")

	code, _, errOut := runCLI("assign", "lx-feedback", "--config", cfg)
	_ = ln.Close()
	if code != apperrors.ExitConfiguration {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}
	if n := dials.Load(); n != 0 {
		t.Errorf("redis dialed %d times before the configuration check", n)
	}
	if n := snowHits.Load(); n != 0 {
		t.Errorf("servicenow called %d times", n)
	}
}
