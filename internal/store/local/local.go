// Package local is the synchronous backend: records are JSON strings in a
// StringStore under a per-store key prefix. It needs no initialization and
// every call completes before returning.
package local

import (
	"context"
	"fmt"
	"strings"

	"vanillastore/internal/env"
	"vanillastore/internal/store"

	"github.com/google/uuid"
)

// ID is the adapter id of this backend.
const ID = "local-storage"

// Options configures a Store.
type Options struct {
	Identity store.Identity
	Probe    env.Probe
	Items    StringStore
}

// Store implements store.Backend over a StringStore.
type Store struct {
	items  StringStore
	probe  env.Probe
	prefix string
}

// New returns a ready Store.
func New(opts Options) *Store {
	id := opts.Identity.WithDefaults()
	return &Store{
		items:  opts.Items,
		probe:  opts.Probe,
		prefix: "ls_" + id.Physical() + "/",
	}
}

func (s *Store) ID() string { return ID }

// IsValid checks the probe, then writes and removes a throwaway item:
// a string store that rejects writes (full, read-only) is unusable.
func (s *Store) IsValid() bool {
	if s.items == nil || s.probe == nil || !s.probe.Supports(env.LocalStore) {
		return false
	}
	probe := "ls_probe_" + uuid.NewString()
	if err := s.items.SetItem(probe, probe); err != nil {
		return false
	}
	s.items.RemoveItem(probe)
	return true
}

// Init exists for contract uniformity; the store is usable right away.
func (s *Store) Init(ctx context.Context) error {
	return s.check(ctx)
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.items == nil {
		return store.ErrNotInitialized
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	key = store.Sanitize(key)
	raw, ok := s.items.GetItem(s.prefix + key)
	if !ok {
		return nil, store.NotFound(key)
	}
	return store.Decode([]byte(raw))
}

func (s *Store) GetAll(ctx context.Context) ([]store.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var entries []store.Entry
	for _, k := range s.items.Keys() {
		key, ok := strings.CutPrefix(k, s.prefix)
		if !ok {
			continue
		}
		raw, ok := s.items.GetItem(k)
		if !ok {
			continue // removed since Keys
		}
		data, err := store.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", key, err)
		}
		entries = append(entries, store.Entry{Key: key, Data: data})
	}
	return entries, nil
}

func (s *Store) Save(ctx context.Context, key string, value any) (any, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	key = store.Sanitize(key)
	data, err := store.Encode(value)
	if err != nil {
		return nil, err
	}
	if err := s.items.SetItem(s.prefix+key, string(data)); err != nil {
		return nil, fmt.Errorf("local save %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Drop(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.items.RemoveItem(s.prefix + store.Sanitize(key))
	return nil
}

// Nuke removes this store's items only; other prefixes are left alone.
func (s *Store) Nuke(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, k := range s.items.Keys() {
		if strings.HasPrefix(k, s.prefix) {
			s.items.RemoveItem(k)
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
