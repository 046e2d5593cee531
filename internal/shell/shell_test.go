package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func runScript(t *testing.T, ctx context.Context, script string) (string, error) {
	t.Helper()
	st := newStorage(t)
	reg := NewRegistry()
	reg.RegisterBuiltins()
	var out bytes.Buffer
	err := Run(ctx, readWriter{strings.NewReader(script), &out}, st, reg)
	return out.String(), err
}

func TestRunScript(t *testing.T) {
	out, err := runScript(t, context.Background(), "/save k [1,2]\r/get k\rhello\r\r/quit\r/get k\r")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{
		"Connected to local-storage.",
		"Saved k = [1,2]",
		"Commands start with /",
		"Goodbye.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	// /quit stops the loop before the trailing /get runs
	if after := out[strings.Index(out, "Goodbye."):]; strings.Contains(after, "[1,2]") {
		t.Errorf("input read after /quit:\n%s", after)
	}
}

func TestRunEOF(t *testing.T) {
	out, err := runScript(t, context.Background(), "/adapter\r")
	if err != nil {
		t.Fatalf("expected nil on EOF, got %v", err)
	}
	if !strings.Contains(out, "Adapter: local-storage") {
		t.Errorf("got %q", out)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runScript(t, ctx, "/list\r"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunFreezesRegistry(t *testing.T) {
	st := newStorage(t)
	reg := NewRegistry()
	reg.RegisterBuiltins()
	var out bytes.Buffer
	_ = Run(context.Background(), readWriter{strings.NewReader(""), &out}, st, reg)

	defer func() {
		if recover() == nil {
			t.Error("expected Register to panic after Run")
		}
	}()
	reg.Register("/late", Command{Handler: func(CommandContext) bool { return false }})
}
