package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/config"
)

func testConfig(backend string) config.Config {
	return config.Config{
		ListenAddr:     "127.0.0.1:0",
		SessionBackend: backend,
		SessionTTL:     time.Hour,
		SweepInterval:  time.Hour,
		RequestTimeout: 5 * time.Second,
		DefinitionsDir: "testdata/defs",
		Language:       "en",
	}
}

func startModule(t *testing.T, cfg config.Config) *Module {
	t.Helper()
	m, err := New(context.Background(), cfg, WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx, "test"); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return m
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func playOnePrompt(t *testing.T, base string) {
	t.Helper()
	resp := postJSON(t, base+"/api/v1/sessions", map[string]string{"definition": "lighthouse", "player": "kai"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var created struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		function string
		args     []any
	}{
		{"getPromptCount", nil},
		{"getPrompt", []any{0}},
		{"getActions", []any{0, 0}},
		{"getGameOverContent", nil},
	}
	for _, step := range steps {
		resp := postJSON(t, base+"/api/v1/sessions/"+created.Token+"/invoke", map[string]any{"function": step.function, "args": step.args})
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d body %s", step.function, resp.StatusCode, body)
		}
	}
}

func TestMemoryBackendServes(t *testing.T) {
	m := startModule(t, testConfig(config.BackendMemory))
	base := "http://" + m.Addr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	playOnePrompt(t, base)
}

func TestSQLiteBackendImportsAndArchives(t *testing.T) {
	cfg := testConfig(config.BackendSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "mapgame.db")
	m := startModule(t, cfg)
	base := "http://" + m.Addr()

	playOnePrompt(t, base)

	resp, err := http.Get(base + "/api/v1/definitions")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"lighthouse"`) {
		t.Errorf("definitions listing missing lighthouse: %s", body)
	}

	resp, err = http.Get(base + "/api/v1/definitions/lighthouse/results")
	if err != nil {
		t.Fatal(err)
	}
	var results struct {
		Results []json.RawMessage `json:"results"`
	}
	err = json.NewDecoder(resp.Body).Decode(&results)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(results.Results) != 1 {
		t.Errorf("expected 1 archived result, got %d", len(results.Results))
	}
}

func TestSQLiteToleratesMissingDefinitionsDir(t *testing.T) {
	cfg := testConfig(config.BackendSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "mapgame.db")
	cfg.DefinitionsDir = filepath.Join(t.TempDir(), "absent")

	m, err := New(context.Background(), cfg, WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestMemoryBackendNeedsDefinitions(t *testing.T) {
	cfg := testConfig(config.BackendMemory)
	cfg.DefinitionsDir = filepath.Join(t.TempDir(), "absent")

	_, err := New(context.Background(), cfg, WithLogOutput(io.Discard))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
