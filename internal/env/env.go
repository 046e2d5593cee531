// Package env answers capability questions about the host: which storage
// engines can run here. Backends receive a Probe at construction instead of
// looking at process globals, so selection logic runs against test doubles.
package env

import (
	"database/sql"
	"os"
	"slices"
)

// Capability names one storage technology.
type Capability string

const (
	ObjectStore Capability = "object-store"
	SQL         Capability = "sql"
	LocalStore  Capability = "local-store"
)

// DefaultSQLDriver is the database/sql driver name registered by
// modernc.org/sqlite.
const DefaultSQLDriver = "sqlite"

// Probe is a synchronous, side-effect-free capability check.
type Probe interface {
	Supports(c Capability) bool
}

// Host probes the running process.
type Host struct {
	DataDir   string // directory holding the engine files
	SQLDriver string // defaults to DefaultSQLDriver
}

func (h Host) Supports(c Capability) bool {
	switch c {
	case ObjectStore:
		return writableDir(h.DataDir)
	case SQL:
		driver := h.SQLDriver
		if driver == "" {
			driver = DefaultSQLDriver
		}
		return writableDir(h.DataDir) && slices.Contains(sql.Drivers(), driver)
	case LocalStore:
		return true
	default:
		return false
	}
}

func writableDir(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	return fi.Mode().Perm()&0o200 != 0
}

// Static is a fixed answer set, for tests and forced environments.
type Static map[Capability]bool

func (s Static) Supports(c Capability) bool {
	return s[c]
}

// All reports every capability as present.
var All = Static{ObjectStore: true, SQL: true, LocalStore: true}
