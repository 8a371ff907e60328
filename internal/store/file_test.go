package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reincarnation/pkg/logx"
)

func TestOpenDriverDispatch(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: ""}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled store: got (%v, %v), want (nil, nil)", st, err)
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("none driver: got (%v, %v), want (nil, nil)", st, err)
	}
	if _, err := Open(Config{Driver: "etcd", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for file driver without a path")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := st.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save: err = %v, want ErrNotFound", err)
	}

	record := []byte("activeCron: \"true\"\n")
	if err := st.Save(ctx, record); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !bytes.Equal(got, record) {
		t.Fatalf("Load = %q, want %q", got, record)
	}

	// a save overwrites the whole record
	next := []byte("activeCron: \"false\"\n")
	if err := st.Save(ctx, next); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("second Load error: %v", err)
	}
	if !bytes.Equal(got, next) {
		t.Fatalf("Load = %q, want %q", got, next)
	}
}

func TestFileStoreReportsPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = st.Close() }()

	p, ok := st.(Path)
	if !ok {
		t.Fatal("file store must expose its backing path")
	}
	if p.Path() != path {
		t.Fatalf("Path() = %q, want %q", p.Path(), path)
	}
}

func TestFileStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.Save(ctx, []byte("x")); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if _, err := st.Load(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
