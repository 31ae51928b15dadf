package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/config"
	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/store"
)

func TestOpenStoreDrivers(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cases := []config.StorageConfig{
		{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "duochat.db")},
		{Driver: config.DriverBadger, Path: t.TempDir()},
		{Driver: config.DriverBadger},
	}
	for _, sc := range cases {
		live, err := OpenStore(ctx, sc, &logger)
		if err != nil {
			t.Fatalf("OpenStore(%+v): %v", sc, err)
		}
		if err := live.Insert(ctx, store.Message{ID: "1", Content: "Hello", Timestamp: time.UnixMilli(1)}); err != nil {
			t.Fatalf("insert via %s: %v", sc.Driver, err)
		}
		all, err := live.QueryAll(ctx)
		if err != nil || len(all) != 1 {
			t.Fatalf("query via %s: %v %+v", sc.Driver, err, all)
		}
		if err := live.Close(); err != nil {
			t.Fatalf("close %s: %v", sc.Driver, err)
		}
	}

	if _, err := OpenStore(ctx, config.StorageConfig{Driver: "etcd"}, &logger); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Storage.Driver = "etcd"

	if _, err := New(context.Background(), &cfg, &logger); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.Storage = config.StorageConfig{Driver: config.DriverBadger}

	ctx, cancel := context.WithCancel(context.Background())
	application, err := New(ctx, &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop")
	}

	if err := application.store.Insert(context.Background(), store.Message{ID: "late"}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("store should be closed after run, got %v", err)
	}
}

func TestRunStopsLoopWhenServerFails(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "256.0.0.1:bad"
	cfg.Storage = config.StorageConfig{Driver: config.DriverBadger}

	application, err := New(context.Background(), &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- application.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not return after listen failure")
	}

	if err := application.conv.SendMessage("late"); !errors.Is(err, core.ErrStopped) {
		t.Fatalf("conversation loop should be stopped, got %v", err)
	}
}
