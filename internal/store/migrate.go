package store

import (
	"context"
	"fmt"

	"vanillastore/internal/logging"
)

var logger = logging.For("store")

// SchemaState is what a backend finds on disk for its physical store.
type SchemaState struct {
	Exists     bool
	Version    string // recorded version, empty if none
	Compatible bool   // layout matches what the backend expects
}

// Schema is the engine-specific half of the migration step.
type Schema interface {
	Inspect(ctx context.Context) (SchemaState, error)
	Create(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// MigrationResult says what Migrate did.
type MigrationResult int

const (
	Kept MigrationResult = iota
	Created
	Recreated
)

func (r MigrationResult) String() string {
	switch r {
	case Kept:
		return "kept"
	case Created:
		return "created"
	case Recreated:
		return "recreated"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Migrate brings the physical store to the identity's version. A store that
// exists with another version, or with an incompatible layout, is destroyed
// and created empty: records under that store name are lost.
func Migrate(ctx context.Context, id Identity, s Schema) (MigrationResult, error) {
	st, err := s.Inspect(ctx)
	if err != nil {
		return Kept, fmt.Errorf("inspecting schema: %w", err)
	}

	if !st.Exists {
		if err := s.Create(ctx); err != nil {
			return Created, fmt.Errorf("creating store: %w", err)
		}
		logger.Debug("created store", "store", id.Physical(), "version", id.Version)
		return Created, nil
	}

	if st.Compatible && st.Version == id.Version {
		return Kept, nil
	}

	logger.Warn("recreating store, existing records dropped",
		"store", id.Physical(),
		"found_version", st.Version,
		"want_version", id.Version,
		"compatible", st.Compatible)
	if err := s.Destroy(ctx); err != nil {
		return Recreated, fmt.Errorf("dropping store: %w", err)
	}
	if err := s.Create(ctx); err != nil {
		return Recreated, fmt.Errorf("creating store: %w", err)
	}
	return Recreated, nil
}
