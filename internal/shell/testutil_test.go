package shell

import (
	"context"
	"io"
	"os"
	"testing"

	"vanillastore/internal/store/local"
	"vanillastore/pkg/vanilla"

	"golang.org/x/term"
)

// readWriter combines separate read and write halves into an io.ReadWriter.
type readWriter struct {
	io.Reader
	io.Writer
}

// mockTerminal creates a term.Terminal backed by an os.Pipe.
// Returns the terminal and a function that reads all written output.
func mockTerminal(t *testing.T) (*term.Terminal, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	t.Cleanup(func() { _ = w.Close() })
	terminal := term.NewTerminal(readWriter{r, w}, "> ")
	readOutput := func() string {
		_ = w.Close()
		data, _ := io.ReadAll(r)
		return string(data)
	}
	return terminal, readOutput
}

// newStorage opens a local-adapter Storage over a private memory store.
func newStorage(t *testing.T) *vanilla.Storage {
	t.Helper()
	s, err := vanilla.Open(context.Background(), vanilla.Options{
		AdapterID: vanilla.AdapterLocal,
		StoreName: "shell_test",
		Local:     local.NewMemory(0),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
