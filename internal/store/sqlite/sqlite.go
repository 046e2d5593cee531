// Package sqlite is the SQL backend: one table per logical store with
// (id, value, timestamp) columns, values stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"vanillastore/internal/env"
	"vanillastore/internal/logging"
	"vanillastore/internal/store"

	_ "modernc.org/sqlite"
)

// ID is the adapter id of this backend.
const ID = "sqlite-storage"

const metaTable = "vanilla_meta"

var logger = logging.For("sqlite")

// Options configures a Store.
type Options struct {
	Identity store.Identity
	Probe    env.Probe
	Dir      string // directory holding <Name>.sqlite
	Driver   string // database/sql driver name, defaults to env.DefaultSQLDriver
}

// Store implements store.Backend using SQLite.
type Store struct {
	id     store.Identity
	probe  env.Probe
	driver string
	path   string
	table  string // quoted identifier

	life store.Lifecycle
	db   *sql.DB // set by Init
}

// New returns an uninitialized Store. No database is opened until Init.
func New(opts Options) *Store {
	id := opts.Identity.WithDefaults()
	driver := opts.Driver
	if driver == "" {
		driver = env.DefaultSQLDriver
	}
	return &Store{
		id:     id,
		probe:  opts.Probe,
		driver: driver,
		path:   filepath.Join(opts.Dir, id.Name+".sqlite"),
		table:  quoteIdent(id.Physical()),
	}
}

func (s *Store) ID() string { return ID }

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) IsValid() bool {
	return s.probe != nil && s.probe.Supports(env.SQL)
}

// Init opens (or creates) the database and migrates the data table.
func (s *Store) Init(ctx context.Context) error {
	return s.life.Run(func() error {
		db, err := open(ctx, s.driver, s.path)
		if err != nil {
			return err
		}
		res, err := store.Migrate(ctx, s.id, schema{db: db, id: s.id, table: s.table})
		if err != nil {
			db.Close()
			return err
		}
		s.db = db
		logger.Info("sql store ready", "path", s.path, "table", s.id.Physical(), "schema", res.String())
		return nil
	})
}

func open(ctx context.Context, driver, path string) (*sql.DB, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// One connection: statements queue in-process instead of failing
	// with SQLITE_BUSY, and the pragmas below stick.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open sqlite %q: %s: %w", path, pragma, err)
		}
	}

	meta := `CREATE TABLE IF NOT EXISTS ` + metaTable + ` (
		store   TEXT PRIMARY KEY,
		version TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, meta); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}
	return db, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.life.Check()
}

// inTx runs fn in a transaction: any error rolls back, commit is success.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	key = store.Sanitize(key)

	var value sql.NullString
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			"SELECT value FROM "+s.table+" WHERE id = ?", key,
		).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !value.Valid) {
		return nil, store.NotFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return store.Decode([]byte(value.String))
}

func (s *Store) GetAll(ctx context.Context) ([]store.Entry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var entries []store.Entry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, value FROM "+s.table+" WHERE value IS NOT NULL")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, value string
			if err := rows.Scan(&id, &value); err != nil {
				return err
			}
			data, err := store.Decode([]byte(value))
			if err != nil {
				return fmt.Errorf("record %q: %w", id, err)
			}
			entries = append(entries, store.Entry{Key: id, Data: data})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite get all: %w", err)
	}
	return entries, nil
}

// Save upserts the record. Serialization runs before any statement, so a
// value that cannot be encoded leaves the table untouched.
func (s *Store) Save(ctx context.Context, key string, value any) (any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	key = store.Sanitize(key)

	data, err := store.Encode(value)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO "+s.table+" (id, value, timestamp) VALUES (?, ?, ?)",
			key, string(data), float64(time.Now().UnixMilli()),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite save %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Drop(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key = store.Sanitize(key)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+s.table+" WHERE id = ?", key)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite drop %q: %w", key, err)
	}
	return nil
}

func (s *Store) Nuke(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+s.table)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite nuke: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if !s.life.Close() {
		return nil
	}
	return s.db.Close()
}

var wantColumns = []string{"id", "value", "timestamp"}

// schema implements store.Schema: the data table plus its row in the
// meta table.
type schema struct {
	db    *sql.DB
	id    store.Identity
	table string
}

func (m schema) Inspect(ctx context.Context) (store.SchemaState, error) {
	var st store.SchemaState

	rows, err := m.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", m.id.Physical())
	if err != nil {
		return st, err
	}
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return st, err
		}
		cols = append(cols, strings.ToLower(name))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, err
	}

	st.Exists = len(cols) > 0
	st.Compatible = sameColumns(cols, wantColumns)

	err = m.db.QueryRowContext(ctx,
		"SELECT version FROM "+metaTable+" WHERE store = ?", m.id.Physical(),
	).Scan(&st.Version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, err
	}
	return st, nil
}

func (m schema) Create(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	create := `CREATE TABLE IF NOT EXISTS ` + m.table + ` (
		id        NVARCHAR(32) UNIQUE PRIMARY KEY,
		value     TEXT,
		timestamp REAL
	)`
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+metaTable+" (store, version) VALUES (?, ?)",
		m.id.Physical(), m.id.Version,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (m schema) Destroy(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+m.table); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+metaTable+" WHERE store = ?", m.id.Physical()); err != nil {
		return err
	}
	return tx.Commit()
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(got))
	for _, c := range got {
		seen[c] = true
	}
	for _, c := range want {
		if !seen[c] {
			return false
		}
	}
	return true
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
