package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/karigpt-broker/internal/app"
	"github.com/tbourn/karigpt-broker/internal/config"
	"github.com/tbourn/karigpt-broker/internal/domain"
	"github.com/tbourn/karigpt-broker/internal/services"
)

func testConfig(t *testing.T) LoadFunc {
	t.Helper()
	prev := log.Logger
	lvl := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(lvl)
	})
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LOG_LEVEL", "error")
	return config.Load
}

func run(t *testing.T, load LoadFunc, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != Version {
		t.Fatalf("version output = %q", out)
	}
}

func TestPersonalities_ListsDefaultsWithMarker(t *testing.T) {
	out, err := run(t, testConfig(t), "personalities")
	if err != nil {
		t.Fatalf("personalities: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 personalities, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "* karigpt") {
		t.Fatalf("default should be marked first: %q", lines[0])
	}
	if !strings.Contains(out, "oracle") || !strings.Contains(out, "tag") {
		t.Fatalf("missing personalities: %q", out)
	}
}

func TestMetrics_EmptyAndPopulated(t *testing.T) {
	load := testConfig(t)

	out, err := run(t, load, "metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if strings.TrimSpace(out) != services.EmptySummaryText {
		t.Fatalf("empty store output = %q", out)
	}

	cfg, _ := load()
	stores, err := app.OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	rec := &domain.RequestRecord{
		UserID:       "u1",
		Username:     "ann",
		Question:     "willitrain",
		AIResponse:   "maybe",
		Timestamp:    domain.FormatTimestamp(time.Now()),
		DailyLimit:   20,
		CurrentCount: 1,
	}
	if err := stores.Records.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_ = stores.Close()

	out, err = run(t, load, "metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if !strings.Contains(out, "Total requests: **1**") || !strings.Contains(out, "ann") {
		t.Fatalf("rendered summary = %q", out)
	}

	out, err = run(t, load, "metrics", "--json")
	if err != nil {
		t.Fatalf("metrics --json: %v", err)
	}
	var sum services.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if sum.Total != 1 || sum.Today.Total != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestLoadError_Propagates(t *testing.T) {
	boom := errors.New("bad env")
	_, err := run(t, func() (config.Config, error) { return config.Config{}, boom }, "metrics")
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
}
