// Package store defines the uniform contract every storage backend satisfies,
// together with the pieces all backends share: key sanitization, the JSON
// codec, the error taxonomy, the init lifecycle and the schema migration step.
//
// Backends live in sub-packages (bolt, sqlite, local). None of them is used
// directly by applications; the facade in pkg/vanilla picks one at
// construction time and delegates to it.
package store

import "context"

const (
	// DefaultName is the logical store name used when none is configured.
	DefaultName = "vanilla_store"
	// DefaultVersion is the schema version used when none is configured.
	DefaultVersion = "1.0"

	physicalSuffix = "__data"
)

// Identity names one logical store. Facades constructed with the same
// Identity share the same physical table, bucket or key prefix.
type Identity struct {
	Name    string
	Version string
}

// WithDefaults fills empty fields with DefaultName and DefaultVersion.
func (id Identity) WithDefaults() Identity {
	if id.Name == "" {
		id.Name = DefaultName
	}
	if id.Version == "" {
		id.Version = DefaultVersion
	}
	return id
}

// Physical returns the table / bucket name backing the store.
func (id Identity) Physical() string {
	return id.Name + physicalSuffix
}

// Entry is one record as returned by GetAll.
type Entry struct {
	Key  string `json:"key"`
	Data any    `json:"data"`
}

// Backend is one storage engine behind the uniform CRUD contract.
//
// Get returns ErrNotFound when no record exists for the sanitized key.
// Save returns the caller's original value, not the decoded copy.
// Drop of an absent key succeeds. Nuke empties the store but leaves it
// usable without another Init. GetAll ordering is unspecified.
//
// Implementations are safe for concurrent use, but calls issued
// concurrently are not ordered with respect to each other.
type Backend interface {
	ID() string
	IsValid() bool
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) (any, error)
	GetAll(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, key string, value any) (any, error)
	Drop(ctx context.Context, key string) error
	Nuke(ctx context.Context) error
	Close() error
}
