// Package storetest is the conformance suite for store.Backend
// implementations. Each backend's tests call Run with a factory.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"vanillastore/internal/store"
)

// Factory returns a fresh, initialized, empty backend. It should register
// cleanup on t.
type Factory func(t *testing.T) store.Backend

// Run executes the conformance suite.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Backend)
	}{
		{"SaveGetDrop", testSaveGetDrop},
		{"GetMissing", testGetMissing},
		{"SaveReturnsOriginal", testSaveReturnsOriginal},
		{"SaveIdempotent", testSaveIdempotent},
		{"Overwrite", testOverwrite},
		{"DropAbsent", testDropAbsent},
		{"Nuke", testNuke},
		{"KeyCollision", testKeyCollision},
		{"Unserializable", testUnserializable},
		{"UnserializableKeepsPrior", testUnserializableKeepsPrior},
		{"Cycle", testCycle},
		{"Primitives", testPrimitives},
		{"StructValue", testStructValue},
		{"UTF8", testUTF8},
		{"GetAll", testGetAll},
		{"ConcurrentDistinctKeys", testConcurrentDistinctKeys},
		{"CanceledContext", testCanceledContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func mustSave(t *testing.T, b store.Backend, key string, v any) {
	t.Helper()
	if _, err := b.Save(context.Background(), key, v); err != nil {
		t.Fatalf("Save(%q): %v", key, err)
	}
}

func mustGet(t *testing.T, b store.Backend, key string) any {
	t.Helper()
	v, err := b.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v
}

func wantNotFound(t *testing.T, b store.Backend, key string) {
	t.Helper()
	v, err := b.Get(context.Background(), key)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(%q): expected ErrNotFound, got value %#v err %v", key, v, err)
	}
	if v != nil {
		t.Fatalf("Get(%q): expected nil value with not found, got %#v", key, v)
	}
}

func testSaveGetDrop(t *testing.T, b store.Backend) {
	ctx := context.Background()

	saved, err := b.Save(ctx, "foo", map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(saved, map[string]any{"a": 1}) {
		t.Fatalf("Save returned %#v", saved)
	}

	got := mustGet(t, b, "foo")
	if !reflect.DeepEqual(got, map[string]any{"a": float64(1)}) {
		t.Fatalf("Get returned %#v", got)
	}

	if err := b.Drop(ctx, "foo"); err != nil {
		t.Fatal(err)
	}
	wantNotFound(t, b, "foo")
}

func testGetMissing(t *testing.T, b store.Backend) {
	wantNotFound(t, b, "never-saved")
}

func testSaveReturnsOriginal(t *testing.T, b store.Backend) {
	type payload struct {
		Name string
		fn   func()
	}
	in := payload{Name: "x", fn: func() {}}
	out, err := b.Save(context.Background(), "orig", in)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := out.(payload)
	if !ok {
		t.Fatalf("Save should return the caller's value, got %T", out)
	}
	if p.fn == nil {
		t.Fatal("returned value should be the in-memory original, not a decoded copy")
	}
}

func testSaveIdempotent(t *testing.T, b store.Backend) {
	v := map[string]any{"list": []any{"a", "b"}, "n": 2}
	mustSave(t, b, "k", v)
	first := mustGet(t, b, "k")
	mustSave(t, b, "k", v)
	second := mustGet(t, b, "k")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replayed save changed state: %#v vs %#v", first, second)
	}
}

func testOverwrite(t *testing.T, b store.Backend) {
	mustSave(t, b, "k", map[string]any{"v": 1})
	mustSave(t, b, "k", map[string]any{"v": 2})
	got := mustGet(t, b, "k")
	if !reflect.DeepEqual(got, map[string]any{"v": float64(2)}) {
		t.Fatalf("expected second value, got %#v", got)
	}
}

func testDropAbsent(t *testing.T, b store.Backend) {
	if err := b.Drop(context.Background(), "absent"); err != nil {
		t.Fatalf("dropping an absent key should succeed: %v", err)
	}
}

func testNuke(t *testing.T, b store.Backend) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustSave(t, b, fmt.Sprintf("key-%d", i), i)
	}
	if err := b.Nuke(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		wantNotFound(t, b, fmt.Sprintf("key-%d", i))
	}
	all, err := b.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("GetAll after Nuke: %d entries", len(all))
	}

	mustSave(t, b, "after", "still works")
	if got := mustGet(t, b, "after"); got != "still works" {
		t.Fatalf("save after nuke: got %#v", got)
	}
}

func testKeyCollision(t *testing.T, b store.Backend) {
	mustSave(t, b, "a.b", map[string]any{"x": "dot"})
	for _, k := range []string{"a:b", "ab", "a/b", "/:a.b/"} {
		got := mustGet(t, b, k)
		if !reflect.DeepEqual(got, map[string]any{"x": "dot"}) {
			t.Fatalf("Get(%q): got %#v", k, got)
		}
	}
}

func testUnserializable(t *testing.T, b store.Backend) {
	_, err := b.Save(context.Background(), "x", map[string]any{"fn": func(a int) int { return a + 2 }})
	if !errors.Is(err, store.ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
	wantNotFound(t, b, "x")
}

func testUnserializableKeepsPrior(t *testing.T, b store.Backend) {
	mustSave(t, b, "x", "prior")
	if _, err := b.Save(context.Background(), "x", make(chan int)); err == nil {
		t.Fatal("expected error saving a channel")
	}
	if got := mustGet(t, b, "x"); got != "prior" {
		t.Fatalf("failed save should leave prior value, got %#v", got)
	}
}

func testCycle(t *testing.T, b store.Backend) {
	m := map[string]any{"a": 1}
	m["self"] = m
	l := []any{1, nil}
	l[1] = l

	for key, v := range map[string]any{"map": m, "slice": l} {
		if _, err := b.Save(context.Background(), key, v); !errors.Is(err, store.ErrSerialization) {
			t.Fatalf("Save(%q) cyclic value: expected ErrSerialization, got %v", key, err)
		}
		wantNotFound(t, b, key)
	}
}

func testPrimitives(t *testing.T, b store.Backend) {
	tests := []struct {
		key  string
		in   any
		want any
	}{
		{"num", 42, float64(42)},
		{"float", 1.5, 1.5},
		{"bool", false, false},
		{"str", "Hello world", "Hello world"},
		{"empty", "", ""},
		{"null", nil, nil},
		{"list", []int{1, 2}, []any{float64(1), float64(2)}},
	}
	for _, tt := range tests {
		mustSave(t, b, tt.key, tt.in)
		if got := mustGet(t, b, tt.key); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func testStructValue(t *testing.T, b store.Backend) {
	type record struct {
		Title  string            `json:"title"`
		Tags   []string          `json:"tags"`
		Meta   map[string]string `json:"meta,omitempty"`
		Secret string            `json:"-"`
	}
	mustSave(t, b, "rec", record{Title: "t", Tags: []string{"x"}, Secret: "s"})
	want := map[string]any{"title": "t", "tags": []any{"x"}}
	if got := mustGet(t, b, "rec"); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	var back record
	if err := store.Convert(mustGet(t, b, "rec"), &back); err != nil {
		t.Fatal(err)
	}
	if back.Title != "t" || back.Secret != "" {
		t.Fatalf("converted: %+v", back)
	}
}

func testUTF8(t *testing.T, b store.Backend) {
	const s = "ÄÖÜ äöü ß € 日本語 🙂"
	mustSave(t, b, "utf8", map[string]any{"str": s})
	got := mustGet(t, b, "utf8").(map[string]any)
	if got["str"] != s {
		t.Fatalf("utf8: got %q", got["str"])
	}
}

func testGetAll(t *testing.T, b store.Backend) {
	mustSave(t, b, "one", []any{"hallo welt", map[string]any{"foo": "bar"}})
	mustSave(t, b, "two", 2)

	all, err := b.GetAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d: %#v", len(all), all)
	}
	byKey := map[string]any{}
	for _, e := range all {
		byKey[e.Key] = e.Data
	}
	one, ok := byKey["one"].([]any)
	if !ok || one[0] != "hallo welt" {
		t.Fatalf("entry one: %#v", byKey["one"])
	}
	if byKey["two"] != float64(2) {
		t.Fatalf("entry two: %#v", byKey["two"])
	}
}

func testConcurrentDistinctKeys(t *testing.T, b store.Backend) {
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Save(context.Background(), fmt.Sprintf("c%d", i), i); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if got := mustGet(t, b, fmt.Sprintf("c%d", i)); got != float64(i) {
			t.Fatalf("c%d: got %#v", i, got)
		}
	}
}

func testCanceledContext(t *testing.T, b store.Backend) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Save(ctx, "k", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("Save with canceled context: got %v", err)
	}
	wantNotFound(t, b, "k")
}
