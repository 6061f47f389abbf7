package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]any{
			{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestGenerate_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion("  hello there \n"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", APIKey: "k"})
	ans, err := c.Generate(context.Background(), "be nice", "why?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ans != "hello there" {
		t.Fatalf("answer = %q", ans)
	}
	if got["model"] != DefaultModel || got["max_tokens"] != float64(DefaultMaxTokens) {
		t.Fatalf("unexpected request %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
	sys := msgs[0].(map[string]any)
	user := msgs[1].(map[string]any)
	if sys["role"] != "system" || sys["content"] != "be nice" || user["content"] != "Question: why?" {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestGenerate_EmptyResponses(t *testing.T) {
	for _, body := range []string{completion("   "), `{"id":"x","object":"chat.completion","choices":[]}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}))
		c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", Model: "m"})
		_, err := c.Generate(context.Background(), "s", "q")
		srv.Close()
		if !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("expected ErrEmptyResponse for %s, got %v", body, err)
		}
	}
}

func TestGenerate_OverloadErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"The model is overloaded","type":"UNAVAILABLE","code":503}}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Generate(context.Background(), "s", "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !NewClassifier(nil).IsTransientOverload(err.Error()) {
		t.Fatalf("expected overload classification for %q", err.Error())
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{})
	if c.Model() != DefaultModel || c.maxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected defaults model=%q max=%d", c.Model(), c.maxTokens)
	}
}

func TestClassifier(t *testing.T) {
	def := NewClassifier([]string{" ", ""})
	for _, msg := range []string{"429 RESOURCE_EXHAUSTED", "Quota exceeded", "model overloaded", "status 503", "UNAVAILABLE"} {
		if !def.IsTransientOverload(msg) {
			t.Fatalf("expected overload for %q", msg)
		}
	}
	for _, msg := range []string{"invalid api key", "quota", "unavailable", ""} {
		if def.IsTransientOverload(msg) {
			t.Fatalf("unexpected overload for %q", msg)
		}
	}
	custom := NewClassifier([]string{"slow down"})
	if !custom.IsTransientOverload("please slow down") || custom.IsTransientOverload("503") {
		t.Fatalf("custom signals not honored")
	}
	if !strings.Contains(strings.Join(DefaultOverloadSignals, ","), "RESOURCE_EXHAUSTED") {
		t.Fatalf("defaults missing")
	}
}
