package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/karigpt-broker/internal/config"
)

type fixedBackend struct{ answer string }

func (b fixedBackend) Generate(context.Context, string, string) (string, error) {
	return b.answer, nil
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "karigpt.db"))
	t.Setenv("GIN_MODE", "test")
	t.Setenv("PORT", "0")
	t.Setenv("DISCORD_TOKEN", "")
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestNew_IngressEndToEnd(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"CACHE_DRIVER": "memory"})
	a, err := New(context.Background(), cfg, fixedBackend{answer: "stars align"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	h := a.Handler()
	if h == nil {
		t.Fatalf("expected admin API handler")
	}

	body, _ := json.Marshal(map[string]any{
		"message_id": "evt-1",
		"channel_id": "general",
		"author_id":  "u1",
		"text":       "oracle: will it rain?",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /messages = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Outcome string   `json:"outcome"`
		Replies []string `json:"replies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != "answered" || len(resp.Replies) < 1 || !strings.Contains(resp.Replies[0], "stars align") {
		t.Fatalf("unexpected response %+v", resp)
	}

	a.ingress.Wait()
	sum, err := a.Metrics.Summarize(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 1 {
		t.Fatalf("Total = %d; want 1", sum.Total)
	}
}

func TestNew_HTTPDisabled(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"HTTP_ENABLED": "false"})
	a, err := New(context.Background(), cfg, fixedBackend{answer: "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()
	if a.Handler() != nil {
		t.Fatalf("handler should be nil with HTTP disabled")
	}
	if a.Stores() == nil || a.Stores().Stats == nil {
		t.Fatalf("sqlite driver should expose stats")
	}
}

func TestNew_BadPersonalitiesFile(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"PERSONALITIES_FILE": filepath.Join(t.TempDir(), "missing.yaml")})
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing personalities file")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := loadConfig(t, nil)
	a, err := New(context.Background(), cfg, fixedBackend{answer: "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestOpenStores_SupabaseNeedsCredentials(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"STORE_DRIVER": "supabase",
		"SUPABASE_URL": "https://example.supabase.co",
		"SUPABASE_KEY": "anon",
	})
	cfg.Store.SupabaseKey = ""
	if _, err := OpenStores(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without supabase key")
	}
}
