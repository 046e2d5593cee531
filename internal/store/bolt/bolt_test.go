package bolt

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"vanillastore/internal/env"
	"vanillastore/internal/store"
	"vanillastore/internal/store/storetest"

	bolt "go.etcd.io/bbolt"
)

func newStore(t *testing.T, dir, name, version string) *Store {
	t.Helper()
	s := New(Options{
		Identity: store.Identity{Name: name, Version: version},
		Probe:    env.Host{DataDir: dir},
		Dir:      dir,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	s := newStore(t, t.TempDir(), "test", "1.0")
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return tempStore(t) })
}

func TestInitCreatesFile(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir, "s1", "1.0")
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("db file should exist: %v", err)
	}
}

func TestInitInvalidPath(t *testing.T) {
	s := newStore(t, "/nonexistent/dir", "s1", "1.0")
	if s.IsValid() {
		t.Error("missing data dir should fail the capability probe")
	}
	if err := s.Init(context.Background()); err == nil {
		t.Fatal("opening db in nonexistent dir should fail")
	}
	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, store.ErrNotInitialized) {
		t.Fatalf("Get after failed init: got %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	s := newStore(t, t.TempDir(), "s1", "1.0")
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Get: got %v", err)
	}
	if _, err := s.Save(ctx, "k", 1); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Save: got %v", err)
	}
	if err := s.Drop(ctx, "k"); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Drop: got %v", err)
	}
	if err := s.Nuke(ctx); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Nuke: got %v", err)
	}
	if _, err := s.GetAll(ctx); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("GetAll: got %v", err)
	}
}

func TestIsValid(t *testing.T) {
	if !New(Options{Probe: env.Static{env.ObjectStore: true}}).IsValid() {
		t.Error("probe reporting object store should be valid")
	}
	if New(Options{Probe: env.Static{env.SQL: true}}).IsValid() {
		t.Error("probe without object store should be invalid")
	}
	if New(Options{}).IsValid() {
		t.Error("nil probe should be invalid")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1 := newStore(t, dir, "s1", "1.0")
	if err := s1.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Save(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := newStore(t, dir, "s1", "1.0")
	if err := s2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	v, err := s2.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Fatalf("expected v after reopen, got %#v", v)
	}
}

func TestVersionChangeRecreatesBucket(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	old := newStore(t, dir, "s1", "1.0")
	if err := old.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := old.Save(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	old.Close()

	upgraded := newStore(t, dir, "s1", "2.0")
	if err := upgraded.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := upgraded.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("version change should drop old records, got %v", err)
	}
}

func TestUnversionedBucketRecreated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newStore(t, dir, "s1", "1.0")

	// a bucket written by something else, with no recorded version
	db, err := bolt.Open(s.Path(), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucket([]byte("s1__data"))
		if err != nil {
			return err
		}
		return b.Put([]byte("foreign"), []byte("not a document"))
	})
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("foreign bucket should have been recreated, got %d entries", len(all))
	}
}

func TestStoresAreIsolated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := newStore(t, dir, "a", "1.0")
	b := newStore(t, dir, "b", "1.0")
	for _, s := range []*Store{a, b} {
		if err := s.Init(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := a.Save(ctx, "k", "from-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("store b should not see store a's record, got %v", err)
	}
}

func TestSharedFileHandle(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newStore(t, dir, "shared", "1.0")
	second := newStore(t, dir, "shared", "1.0")

	start := time.Now()
	if err := first.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second instance on the same file: %v", err)
	}
	if time.Since(start) >= openTimeout {
		t.Fatal("second open should reuse the handle, not wait on the file lock")
	}

	if _, err := first.Save(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, err := second.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("second instance: got %#v, %v", v, err)
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if v, err := second.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("handle closed too early: got %#v, %v", v, err)
	}
	if _, err := first.Get(ctx, "k"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("closed instance: got %v", err)
	}
}

func TestEmptyKeyIsEngineError(t *testing.T) {
	s := tempStore(t)
	_, err := s.Save(context.Background(), "/:.", "v")
	if err == nil {
		t.Fatal("bbolt rejects empty keys; save should fail")
	}
	if errors.Is(err, store.ErrSerialization) {
		t.Fatal("empty key failure is an engine error, not a serialization error")
	}
}

func TestCorruptDocument(t *testing.T) {
	s := tempStore(t)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte("bad"), []byte{0xff, 0xff, 0xff})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "bad"); !errors.Is(err, errCorruptDoc) {
		t.Fatalf("expected corrupt document error, got %v", err)
	}
	if _, err := s.GetAll(context.Background()); !errors.Is(err, errCorruptDoc) {
		t.Fatalf("GetAll: expected corrupt document error, got %v", err)
	}
}

func TestDocumentTimestamp(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	raw, err := encodeDoc("k", map[string]any{"a": 1}, now)
	if err != nil {
		t.Fatal(err)
	}
	id, data, err := decodeDoc(raw)
	if err != nil {
		t.Fatal(err)
	}
	if id != "k" {
		t.Errorf("id: got %q", id)
	}
	if m, ok := data.(map[string]any); !ok || m["a"] != float64(1) {
		t.Errorf("data: got %#v", data)
	}
}

func TestEncodeDocRejectsUnencodable(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m
	tests := []struct {
		name  string
		value any
	}{
		{"cyclic map", m},
		{"nan", math.NaN()},
		{"func", func() {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := encodeDoc("k", tt.value, time.Now()); !errors.Is(err, store.ErrSerialization) {
				t.Fatalf("expected ErrSerialization, got %v", err)
			}
		})
	}
}
