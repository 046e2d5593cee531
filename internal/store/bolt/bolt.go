// Package bolt is the object-store backend: one bbolt bucket per logical
// store, keyed by sanitized id, holding {id, data, timestamp} documents.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"vanillastore/internal/env"
	"vanillastore/internal/logging"
	"vanillastore/internal/store"

	bolt "go.etcd.io/bbolt"
)

// ID is the adapter id of this backend.
const ID = "bolt-storage"

var logger = logging.For("bolt")

var metaBucket = []byte("vanilla_meta")

// Options configures a Store.
type Options struct {
	Identity store.Identity
	Probe    env.Probe
	Dir      string // directory holding <Name>.bolt
}

// Store implements store.Backend on bbolt (embedded B+ tree).
type Store struct {
	id     store.Identity
	probe  env.Probe
	path   string
	bucket []byte

	life store.Lifecycle
	db   *bolt.DB // set by Init
}

// New returns an uninitialized Store. Nothing touches the disk until Init.
func New(opts Options) *Store {
	id := opts.Identity.WithDefaults()
	return &Store{
		id:     id,
		probe:  opts.Probe,
		path:   filepath.Join(opts.Dir, id.Name+".bolt"),
		bucket: []byte(id.Physical()),
	}
}

func (s *Store) ID() string { return ID }

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) IsValid() bool {
	return s.probe != nil && s.probe.Supports(env.ObjectStore)
}

// Init opens the database file and migrates the bucket to the configured
// version. A bucket recorded under another version is dropped and recreated.
func (s *Store) Init(ctx context.Context) error {
	return s.life.Run(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		db, err := acquire(s.path)
		if err != nil {
			return err
		}
		res, err := store.Migrate(ctx, s.id, schema{db: db, id: s.id, bucket: s.bucket})
		if err != nil {
			_ = release(s.path)
			return err
		}
		s.db = db
		logger.Info("object store ready", "path", s.path, "bucket", string(s.bucket), "schema", res.String())
		return nil
	})
}

// ready returns the database handle or the reason it cannot be used.
func (s *Store) ready(ctx context.Context) (*bolt.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.life.Check(); err != nil {
		return nil, err
	}
	return s.db, nil
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	key = store.Sanitize(key)

	var data any
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.NotFound(key)
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return store.NotFound(key)
		}
		_, data, err = decodeDoc(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) GetAll(ctx context.Context) ([]store.Entry, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	var entries []store.Entry
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id, data, err := decodeDoc(v)
			if err != nil {
				return fmt.Errorf("record %q: %w", k, err)
			}
			entries = append(entries, store.Entry{Key: id, Data: data})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Save(ctx context.Context, key string, value any) (any, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	key = store.Sanitize(key)

	raw, err := encodeDoc(key, value, time.Now())
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		logger.Debug("save failed", "key", key, "err", err)
		return nil, fmt.Errorf("bolt save %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Drop(ctx context.Context, key string) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	key = store.Sanitize(key)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Nuke drops and recreates the bucket in one transaction.
func (s *Store) Nuke(ctx context.Context) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) != nil {
			if err := tx.DeleteBucket(s.bucket); err != nil {
				return fmt.Errorf("clearing bucket: %w", err)
			}
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

// Close releases this instance's reference on the database file.
func (s *Store) Close() error {
	if !s.life.Close() {
		return nil
	}
	return release(s.path)
}

// schema implements store.Schema over the data bucket and the meta bucket,
// which maps a physical store name to its recorded version.
type schema struct {
	db     *bolt.DB
	id     store.Identity
	bucket []byte
}

func (m schema) Inspect(_ context.Context) (store.SchemaState, error) {
	var st store.SchemaState
	err := m.db.View(func(tx *bolt.Tx) error {
		st.Exists = tx.Bucket(m.bucket) != nil
		if meta := tx.Bucket(metaBucket); meta != nil {
			st.Version = string(meta.Get(m.bucket))
		}
		// a data bucket nobody recorded a version for has unknown layout
		st.Compatible = st.Exists && st.Version != ""
		return nil
	})
	return st, err
}

func (m schema) Create(_ context.Context) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(m.bucket); err != nil {
			return err
		}
		return meta.Put(m.bucket, []byte(m.id.Version))
	})
}

func (m schema) Destroy(_ context.Context) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(m.bucket) != nil {
			if err := tx.DeleteBucket(m.bucket); err != nil {
				return err
			}
		}
		if meta := tx.Bucket(metaBucket); meta != nil {
			return meta.Delete(m.bucket)
		}
		return nil
	})
}
