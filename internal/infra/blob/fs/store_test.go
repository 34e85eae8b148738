package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"procureflow/internal/blob/core"
)

func newTempStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, root
}

func TestStoreWriteReadRemove(t *testing.T) {
	ctx := context.Background()
	store, root := newTempStore(t)
	const key = "state/snapshot.json"

	first, err := store.Write(ctx, key, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if first.Key != key || first.Size != 7 || first.ETag != core.ETag([]byte(`{"a":1}`)) {
		t.Fatalf("unexpected object %+v", first)
	}
	second, err := store.Write(ctx, key, []byte(`{"a":22}`))
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if second.ETag == first.ETag {
		t.Fatalf("expected etag to change on overwrite")
	}

	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.Data) != `{"a":22}` || got.ETag != second.ETag || got.ModTime.IsZero() {
		t.Fatalf("unexpected object %+v", got)
	}
	entries, err := os.ReadDir(filepath.Join(root, "state"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}

	if ok, err := store.Remove(ctx, key); err != nil || !ok {
		t.Fatalf("remove: %v %v", ok, err)
	}
	if ok, err := store.Remove(ctx, key); err != nil || ok {
		t.Fatalf("second remove should report false, got %v %v", ok, err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape.txt", "a/../../b", "/abs.txt"} {
		if _, err := store.Write(ctx, key, []byte("x")); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("write %q: expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := store.Read(ctx, key); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("read %q: expected ErrInvalidKey, got %v", key, err)
		}
		if _, err := store.Remove(ctx, key); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("remove %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestReadSurfacesDirectoryError(t *testing.T) {
	ctx := context.Background()
	store, root := newTempStore(t)
	if err := os.MkdirAll(filepath.Join(root, "dir"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := store.Read(ctx, "dir"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected read error for a directory, got %v", err)
	}
}

func TestNewDefaultsRootAndDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("expected fs driver")
	}
	if _, err := os.Stat("blobdata"); err != nil {
		t.Fatalf("expected default root to be created: %v", err)
	}
}
