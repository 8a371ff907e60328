package config

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"reincarnation/internal/store"
	"reincarnation/pkg/logx"
)

func newFileStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(store.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "reincarnation.yaml"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("store.Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLoadMissingRecordDefaults(t *testing.T) {
	t.Parallel()
	mgr := NewManager(newFileStore(t))

	cfg, err := mgr.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.CronRestartEnabled() || cfg.TriggerRestartEnabled() || cfg.RestartUnchangedEnabled() {
		t.Fatal("defaults must have every restart mode disabled")
	}
	if cfg.MaxRetryDepth() != 0 {
		t.Fatalf("default depth = %d, want 0", cfg.MaxRetryDepth())
	}
}

func TestApplyLoadRoundTrip(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)

	sub := Submission{
		ActiveTrigger: "true",
		MaxDepth:      "4",
		ActiveCron:    "false",
		CronTime:      "0 3 * * *",
		RegExprs: []RegexRule{
			{Value: "OutOfMemoryError"},
			{Value: "hudson.*Exception", CronTime: "*/15 * * * *", NodeAction: "reboot.sh"},
		},
		NoChange: "true",
	}

	mgr := NewManager(st)
	applied, err := mgr.Apply(context.Background(), sub)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	// a fresh manager over the same store must see the identical record
	fresh := NewManager(st)
	loaded, err := fresh.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(applied, loaded) {
		t.Fatalf("round-trip mismatch:\napplied: %+v\nloaded:  %+v", applied, loaded)
	}
	if !loaded.TriggerRestartEnabled() || loaded.CronRestartEnabled() {
		t.Fatal("flags did not survive the round trip")
	}
	if loaded.MaxRetryDepth() != 4 {
		t.Fatalf("depth = %d, want 4", loaded.MaxRetryDepth())
	}
	if len(loaded.RegExprs) != 2 || loaded.RegExprs[1].NodeAction != "reboot.sh" {
		t.Fatalf("rules did not survive the round trip: %+v", loaded.RegExprs)
	}
}

func TestApplySanitizesDepth(t *testing.T) {
	t.Parallel()
	mgr := NewManager(newFileStore(t))

	cfg, err := mgr.Apply(context.Background(), Submission{MaxDepth: "over 9000"})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if cfg.MaxDepth != "0" {
		t.Fatalf("persisted depth = %q, want \"0\"", cfg.MaxDepth)
	}

	loaded, err := NewManager(mgr.st).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.MaxDepth != "0" {
		t.Fatalf("stored depth = %q, want \"0\"", loaded.MaxDepth)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()
	mgr := NewManager(nil)
	ctx := context.Background()

	first, err := mgr.Apply(ctx, Submission{ActiveCron: "true", CronTime: "0 0 * * *"})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if _, err := mgr.Apply(ctx, Submission{ActiveCron: "false", CronTime: "@hourly"}); err != nil {
		t.Fatalf("second Apply error: %v", err)
	}

	if !first.CronRestartEnabled() || first.CronTime != "0 0 * * *" {
		t.Fatalf("earlier snapshot mutated by later submission: %+v", first)
	}
	if mgr.Get().CronRestartEnabled() {
		t.Fatal("current snapshot should reflect the latest submission")
	}
}

func TestSubscribeReceivesApply(t *testing.T) {
	t.Parallel()
	mgr := NewManager(nil)

	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)

	if _, err := mgr.Apply(context.Background(), Submission{NoChange: "true"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	select {
	case cfg := <-updates:
		if !cfg.RestartUnchangedEnabled() {
			t.Fatalf("published snapshot = %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published to subscriber")
	}
}

func TestSlowSubscriberKeepsLatest(t *testing.T) {
	t.Parallel()
	mgr := NewManager(nil)
	ctx := context.Background()

	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)

	if _, err := mgr.Apply(ctx, Submission{MaxDepth: "1"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if _, err := mgr.Apply(ctx, Submission{MaxDepth: "2"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	// the older snapshot was dropped; the latest must be waiting
	select {
	case cfg := <-updates:
		if cfg.MaxRetryDepth() != 2 {
			t.Fatalf("depth = %d, want latest (2)", cfg.MaxRetryDepth())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot available")
	}
}

func TestWatchRequiresFileStore(t *testing.T) {
	t.Parallel()
	mgr := NewManager(nil)
	if err := mgr.Watch(context.Background()); err != ErrNotWatchable {
		t.Fatalf("Watch error = %v, want ErrNotWatchable", err)
	}
}
