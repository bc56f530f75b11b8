package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"budgetdash/internal/config"
	"budgetdash/internal/log"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		RateLimitPerMinute:   60,
		DataBackend:          config.BackendMemory,
		Timezone:             "UTC",
		CacheCleanupInterval: time.Minute,
	}
}

func TestRunStopsCleanlyAndClosesBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, logger, testConfig()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	if !strings.Contains(buf.String(), "Backend closed") {
		t.Errorf("backend was not closed before run returned; logs:\n%s", buf.String())
	}
}

func TestRunReturnsBackendErrors(t *testing.T) {
	cfg := testConfig()
	cfg.DataBackend = "nosuchbackend"
	if err := run(context.Background(), log.Discard(), cfg); err == nil {
		t.Fatal("run accepted an unknown backend")
	}
}
