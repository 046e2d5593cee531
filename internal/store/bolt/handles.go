package bolt

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// bbolt holds an exclusive lock on the file for the lifetime of a *bolt.DB,
// so stores pointing at the same file share one handle.
var handles = struct {
	sync.Mutex
	open map[string]*handle
}{open: make(map[string]*handle)}

type handle struct {
	db   *bolt.DB
	refs int
}

const openTimeout = time.Second

func acquire(path string) (*bolt.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	handles.Lock()
	defer handles.Unlock()

	if h, ok := handles.open[abs]; ok {
		h.refs++
		return h.db, nil
	}
	db, err := bolt.Open(abs, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	handles.open[abs] = &handle{db: db, refs: 1}
	return db, nil
}

func release(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	handles.Lock()
	defer handles.Unlock()

	h, ok := handles.open[abs]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(handles.open, abs)
	return h.db.Close()
}
