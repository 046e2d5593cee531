package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"vanillastore/internal/config"
	"vanillastore/internal/logging"
	"vanillastore/internal/shell"
	"vanillastore/internal/store"
	"vanillastore/pkg/vanilla"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var logger = logging.For("cli")

// importWorkers bounds concurrent saves during import.
const importWorkers = 8

type cli struct {
	opts   vanilla.Options
	stdin  io.Reader
	stdout io.Writer
	pretty bool
}

type command struct {
	name  string
	usage string
	help  string
	nargs int // exact positional argument count
	// run receives an open Storage; nil for commands that do not need one
	run func(c *cli, ctx context.Context, s *vanilla.Storage, args []string) error
}

var commands = []command{
	{name: "probe", usage: "probe", help: "report which adapters this host supports", nargs: 0},
	{name: "get", usage: "get <key>", help: "print the value stored under key", nargs: 1, run: (*cli).get},
	{name: "save", usage: "save <key> <json>", help: "store a JSON value under key", nargs: 2, run: (*cli).save},
	{name: "drop", usage: "drop <key>", help: "delete key", nargs: 1, run: (*cli).drop},
	{name: "nuke", usage: "nuke", help: "delete every record in the store", nargs: 0, run: (*cli).nuke},
	{name: "list", usage: "list", help: "print every record as key/value pairs", nargs: 0, run: (*cli).list},
	{name: "export", usage: "export", help: "print every record as one JSON object", nargs: 0, run: (*cli).export},
	{name: "import", usage: "import <file|->", help: "save every member of a JSON object", nargs: 1, run: (*cli).importFile},
	{name: "shell", usage: "shell", help: "interactive console", nargs: 0, run: (*cli).shell},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (c *cli) run(ctx context.Context, args []string) error {
	cmd, ok := lookup(args[0])
	if !ok {
		return errors.New("unknown command (try -h)")
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	if cmd.run == nil {
		return c.probe()
	}

	s, err := vanilla.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}()
	if s.FellBack() {
		logger.Warn("serving from the in-process local adapter; changes are not persisted")
	}
	return cmd.run(c, ctx, s, args[1:])
}

func (c *cli) probe() error {
	report := make(map[string]bool, len(config.Adapters))
	for _, id := range config.Adapters {
		report[id] = vanilla.IsValid(id, c.opts)
	}
	return c.write(report)
}

func (c *cli) get(ctx context.Context, s *vanilla.Storage, args []string) error {
	v, err := s.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return c.write(v)
}

func (c *cli) save(ctx context.Context, s *vanilla.Storage, args []string) error {
	var value any
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		return fmt.Errorf("value is not JSON: %w", err)
	}
	saved, err := s.Save(ctx, args[0], value)
	if err != nil {
		return err
	}
	return c.write(saved)
}

func (c *cli) drop(ctx context.Context, s *vanilla.Storage, args []string) error {
	return s.Drop(ctx, args[0])
}

func (c *cli) nuke(ctx context.Context, s *vanilla.Storage, _ []string) error {
	return s.Nuke(ctx)
}

func (c *cli) list(ctx context.Context, s *vanilla.Storage, _ []string) error {
	entries, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	if entries == nil {
		entries = []vanilla.Entry{}
	}
	return c.write(entries)
}

func (c *cli) export(ctx context.Context, s *vanilla.Storage, _ []string) error {
	entries, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Data
	}
	return c.write(out)
}

func (c *cli) importFile(ctx context.Context, s *vanilla.Storage, args []string) error {
	var src io.Reader = c.stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	var records map[string]any
	if err := json.NewDecoder(src).Decode(&records); err != nil {
		return fmt.Errorf("decoding input: %w", err)
	}

	if err := checkCollisions(records); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importWorkers)
	for key, value := range records {
		key, value := key, value
		g.Go(func() error {
			if _, err := s.Save(gctx, key, value); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("import done", "records", len(records), "adapter", s.AdapterID())
	return nil
}

// checkCollisions rejects input where several keys sanitize to the same
// record, since concurrent saves would leave an arbitrary one of them.
func checkCollisions(records map[string]any) error {
	groups := make(map[string][]string, len(records))
	for key := range records {
		id := store.Sanitize(key)
		groups[id] = append(groups[id], key)
	}
	var errs []error
	for id, keys := range groups {
		if len(keys) > 1 {
			sort.Strings(keys)
			errs = append(errs, fmt.Errorf("keys %q all map to record %q", keys, id))
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

func (c *cli) shell(ctx context.Context, s *vanilla.Storage, _ []string) error {
	reg := shell.NewRegistry()
	reg.RegisterBuiltins()

	var in io.Reader = c.stdin
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer func() { _ = term.Restore(int(f.Fd()), old) }()
	} else {
		in = enterReader{c.stdin}
	}
	return shell.Run(ctx, struct {
		io.Reader
		io.Writer
	}{in, c.stdout}, s, reg)
}

// enterReader turns newlines into carriage returns so piped scripts reach
// the line editor as Enter key presses.
type enterReader struct{ r io.Reader }

func (e enterReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	for i := range p[:n] {
		if p[i] == '\n' {
			p[i] = '\r'
		}
	}
	return n, err
}

func (c *cli) write(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if c.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := c.stdout.Write(buf.Bytes())
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
