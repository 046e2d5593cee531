package env

import (
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"
	"testing"
)

type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) { return nil, driver.ErrBadConn }

func init() {
	sql.Register("env-test-driver", nopDriver{})
}

func TestHostObjectStore(t *testing.T) {
	dir := t.TempDir()

	if !(Host{DataDir: dir}).Supports(ObjectStore) {
		t.Error("writable temp dir should support the object store")
	}
	if (Host{}).Supports(ObjectStore) {
		t.Error("empty data dir should not support the object store")
	}
	if (Host{DataDir: filepath.Join(dir, "missing")}).Supports(ObjectStore) {
		t.Error("missing dir should not support the object store")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if (Host{DataDir: file}).Supports(ObjectStore) {
		t.Error("a regular file is not a data dir")
	}
}

func TestHostReadOnlyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(dir, 0500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0700) })

	if (Host{DataDir: dir}).Supports(ObjectStore) {
		t.Error("read-only dir should not support the object store")
	}
}

func TestHostSQLNeedsDriver(t *testing.T) {
	dir := t.TempDir()

	if !(Host{DataDir: dir, SQLDriver: "env-test-driver"}).Supports(SQL) {
		t.Error("registered driver with writable dir should support SQL")
	}
	if (Host{DataDir: dir, SQLDriver: "no-such-driver"}).Supports(SQL) {
		t.Error("unregistered driver should not support SQL")
	}
	if (Host{SQLDriver: "env-test-driver"}).Supports(SQL) {
		t.Error("SQL without data dir should be unsupported")
	}
}

func TestHostLocalAlwaysPresent(t *testing.T) {
	if !(Host{}).Supports(LocalStore) {
		t.Error("local store should always be supported")
	}
	if (Host{}).Supports(Capability("bogus")) {
		t.Error("unknown capability should be unsupported")
	}
}

func TestStatic(t *testing.T) {
	p := Static{SQL: true}
	if !p.Supports(SQL) {
		t.Error("SQL should be supported")
	}
	if p.Supports(ObjectStore) {
		t.Error("ObjectStore should not be supported")
	}
	for _, c := range []Capability{ObjectStore, SQL, LocalStore} {
		if !All.Supports(c) {
			t.Errorf("All should support %s", c)
		}
	}
}
