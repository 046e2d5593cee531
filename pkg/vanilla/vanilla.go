// Package vanilla is the public entry point: a key/value store for
// JSON-serializable values that runs on whichever engine the host supports.
//
// Open picks one backend, initializes it, and every later call is forwarded
// to it unchanged. There is no buffering, batching or caching here, and no
// ordering between concurrent calls: a caller that needs "save then get"
// semantics waits for Save to return before calling Get.
package vanilla

import (
	"context"
	"log/slog"

	"vanillastore/internal/env"
	"vanillastore/internal/logging"
	"vanillastore/internal/store"
	"vanillastore/internal/store/bolt"
	"vanillastore/internal/store/local"
	"vanillastore/internal/store/sqlite"

	"github.com/google/uuid"
)

// Adapter ids accepted in Options.AdapterID.
const (
	AdapterBolt   = bolt.ID
	AdapterSQLite = sqlite.ID
	AdapterLocal  = local.ID
)

// Errors callers test with errors.Is / errors.As.
var (
	ErrNotFound       = store.ErrNotFound
	ErrNotInitialized = store.ErrNotInitialized
	ErrSerialization  = store.ErrSerialization
	ErrNoValidAdapter = store.ErrNoValidAdapter
	ErrUnknownAdapter = store.ErrUnknownAdapter
)

type (
	Entry          = store.Entry
	SelectionError = store.SelectionError
	InitError      = store.InitError
)

var logger = logging.For("vanilla")

// sharedLocal backs the local adapter when Options.Local is nil, so every
// Storage in the process sees the same items, like one browser origin.
var sharedLocal = local.NewMemory(0)

// Options configures Open. Zero values select the defaults.
type Options struct {
	AdapterID string // skip capability probing and use this adapter
	StoreName string // default "vanilla_store"
	Version   string // default "1.0"
	DataDir   string // engine files; required by the bolt and sqlite adapters

	Probe env.Probe         // default env.Host{DataDir: DataDir}
	Local local.StringStore // default: process-wide in-memory store

	// Fallback serves from the local adapter when no adapter is valid or
	// the selected one fails to initialize, instead of failing Open.
	Fallback bool
}

func (o Options) identity() store.Identity {
	return store.Identity{Name: o.StoreName, Version: o.Version}.WithDefaults()
}

func (o Options) withDefaults() Options {
	if o.Probe == nil {
		o.Probe = env.Host{DataDir: o.DataDir}
	}
	if o.Local == nil {
		o.Local = sharedLocal
	}
	return o
}

// Storage is the facade over the one backend chosen by Open.
type Storage struct {
	adapter  store.Backend
	fellBack bool
	log      *slog.Logger
}

// candidates instantiates every backend in capability-probe priority
// order. The local backend comes last and is never chosen by probing.
func candidates(opts Options) []store.Backend {
	id := opts.identity()
	return []store.Backend{
		bolt.New(bolt.Options{Identity: id, Probe: opts.Probe, Dir: opts.DataDir}),
		sqlite.New(sqlite.Options{Identity: id, Probe: opts.Probe, Dir: opts.DataDir}),
		local.New(local.Options{Identity: id, Probe: opts.Probe, Items: opts.Local}),
	}
}

const probed = 2 // leading candidates eligible for capability probing

// Select picks a backend. An explicit id is looked up without probing;
// otherwise the first candidate whose IsValid reports true wins.
func Select(candidates []store.Backend, explicitID string) (store.Backend, error) {
	if explicitID != "" {
		for _, b := range candidates {
			if b.ID() == explicitID {
				return b, nil
			}
		}
		return nil, &store.SelectionError{AdapterID: explicitID, Err: store.ErrUnknownAdapter}
	}
	for _, b := range candidates {
		if b.IsValid() {
			return b, nil
		}
	}
	return nil, &store.SelectionError{Err: store.ErrNoValidAdapter}
}

func choose(all []store.Backend, explicitID string) (store.Backend, error) {
	pool := all[:probed]
	if explicitID != "" {
		pool = all
	}
	b, err := Select(pool, explicitID)
	if err != nil {
		return nil, err
	}
	if !b.IsValid() {
		return nil, &store.SelectionError{AdapterID: b.ID(), Err: store.ErrNoValidAdapter}
	}
	return b, nil
}

// Open selects and initializes a backend. Selection failures return a
// *SelectionError, init failures an *InitError naming the adapter; neither
// is retried on another adapter unless opts.Fallback is set.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	opts = opts.withDefaults()
	all := candidates(opts)
	log := logger.With("instance", uuid.NewString()[:8], "store", opts.identity().Physical())

	chosen, err := choose(all, opts.AdapterID)
	if err == nil {
		if initErr := chosen.Init(ctx); initErr != nil {
			log.Error("adapter init failed", "adapter", chosen.ID(), "err", initErr)
			err = &store.InitError{AdapterID: chosen.ID(), Err: initErr}
		}
	}

	fellBack := false
	if err != nil {
		fb, ok := fallback(ctx, opts, all)
		if !ok {
			closeAll(all, nil)
			return nil, err
		}
		log.Warn("falling back to local adapter", "cause", err)
		chosen, fellBack = fb, true
	}

	closeAll(all, chosen)
	log = log.With("adapter", chosen.ID())
	log.Info("storage ready", "fallback", fellBack)
	return &Storage{adapter: chosen, fellBack: fellBack, log: log}, nil
}

func fallback(ctx context.Context, opts Options, all []store.Backend) (store.Backend, bool) {
	if !opts.Fallback {
		return nil, false
	}
	lb := all[len(all)-1]
	if !lb.IsValid() || lb.Init(ctx) != nil {
		return nil, false
	}
	return lb, true
}

func closeAll(all []store.Backend, keep store.Backend) {
	for _, b := range all {
		if b != keep {
			_ = b.Close()
		}
	}
}

// IsValid reports whether the named adapter can run with opts, without
// opening anything. Unknown ids report false.
func IsValid(adapterID string, opts Options) bool {
	for _, b := range candidates(opts.withDefaults()) {
		if b.ID() == adapterID {
			return b.IsValid()
		}
	}
	return false
}

// AdapterID names the backend serving this Storage.
func (s *Storage) AdapterID() string { return s.adapter.ID() }

// FellBack reports whether Open fell back to the local adapter.
func (s *Storage) FellBack() bool { return s.fellBack }

func (s *Storage) IsValid() bool { return s.adapter.IsValid() }

// Get returns the value stored under key, decoded from its JSON form, or
// an error wrapping ErrNotFound.
func (s *Storage) Get(ctx context.Context, key string) (any, error) {
	return s.adapter.Get(ctx, key)
}

// GetInto decodes the value stored under key into dest.
func (s *Storage) GetInto(ctx context.Context, key string, dest any) error {
	v, err := s.adapter.Get(ctx, key)
	if err != nil {
		return err
	}
	return store.Convert(v, dest)
}

// GetAll returns every record. Order differs between adapters.
func (s *Storage) GetAll(ctx context.Context) ([]Entry, error) {
	return s.adapter.GetAll(ctx)
}

// Save stores value under key and returns value itself.
func (s *Storage) Save(ctx context.Context, key string, value any) (any, error) {
	v, err := s.adapter.Save(ctx, key, value)
	if err != nil {
		s.log.Debug("save failed", "key", key, "err", err)
	}
	return v, err
}

// Drop deletes key. Dropping an absent key is not an error.
func (s *Storage) Drop(ctx context.Context, key string) error {
	return s.adapter.Drop(ctx, key)
}

// Nuke deletes every record of this store.
func (s *Storage) Nuke(ctx context.Context) error {
	return s.adapter.Nuke(ctx)
}

// Close releases the engine. The Storage is unusable afterwards.
func (s *Storage) Close() error {
	return s.adapter.Close()
}
