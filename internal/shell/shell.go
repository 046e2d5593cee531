// Package shell is an interactive console over a storage facade, driven by
// a golang.org/x/term line editor.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vanillastore/internal/logging"

	"golang.org/x/term"
)

var logger = logging.For("shell")

// Run reads command lines from rw until /quit, EOF or ctx is done.
// The registry is frozen on entry.
func Run(ctx context.Context, rw io.ReadWriter, st Storer, reg *Registry) error {
	reg.Freeze()

	terminal := term.NewTerminal(rw, fmt.Sprintf("[%s]> ", st.AdapterID()))
	_, _ = fmt.Fprintf(terminal, "Connected to %s.\r\n", st.AdapterID())
	_, _ = fmt.Fprint(terminal, "Type /help for commands.\r\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := terminal.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			_, _ = fmt.Fprint(terminal, "Commands start with / (try /help)\r\n")
			continue
		}
		logger.Debug("command", "line", line)
		if reg.Dispatch(ctx, line, terminal, st) {
			return nil
		}
	}
}
