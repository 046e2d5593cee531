package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"vanillastore/internal/store"

	"golang.org/x/term"
)

// Storer is the part of vanilla.Storage the shell drives.
type Storer interface {
	Get(ctx context.Context, key string) (any, error)
	GetAll(ctx context.Context) ([]store.Entry, error)
	Save(ctx context.Context, key string, value any) (any, error)
	Drop(ctx context.Context, key string) error
	Nuke(ctx context.Context) error
	AdapterID() string
}

// CommandContext holds the state available to command handlers.
type CommandContext struct {
	Ctx      context.Context
	Terminal *term.Terminal
	Store    Storer
	Args     []string
	Rest     string // raw text after the first argument, spaces preserved
}

// CommandHandler processes a shell command. Returns true if the shell
// should exit (e.g., /quit).
type CommandHandler func(ctx CommandContext) bool

// Command describes a registered shell command.
type Command struct {
	Usage   string // full usage for help (e.g., "/get <key>"); defaults to command name
	Help    string
	Handler CommandHandler
}

// Registry maps command names to handlers and produces dynamic help.
// It is safe for concurrent use. Once frozen (via Freeze), no new
// commands can be registered.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // insertion order for stable help output
	frozen   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. The name includes the leading slash.
// Registering the same name twice overwrites the previous entry.
// Panics if cmd.Handler is nil or if the registry is frozen.
func (r *Registry) Register(name string, cmd Command) {
	if cmd.Handler == nil {
		panic("shell: Register called with nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("shell: Register called on frozen registry for " + name)
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Freeze prevents further command registration. Run calls it.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Dispatch parses a command line and calls the matching handler.
// Returns true if the shell should exit.
func (r *Registry) Dispatch(ctx context.Context, line string, terminal *term.Terminal, st Storer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := parts[0]
	args := parts[1:]

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		_, _ = fmt.Fprintf(terminal, "Unknown command: %s (try /help)\r\n", name)
		return false
	}

	return cmd.Handler(CommandContext{
		Ctx:      ctx,
		Terminal: terminal,
		Store:    st,
		Args:     args,
		Rest:     restAfter(line, 2),
	})
}

// restAfter returns line with its first n fields removed.
func restAfter(line string, n int) string {
	s := strings.TrimSpace(line)
	for j := 0; j < n; j++ {
		i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
		if i < 0 {
			return ""
		}
		s = strings.TrimSpace(s[i:])
	}
	return s
}

// HelpText returns a formatted help string listing all registered commands
// in registration order.
func (r *Registry) HelpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Commands:\r\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		display := name
		if cmd.Usage != "" {
			display = cmd.Usage
		}
		_, _ = fmt.Fprintf(&b, "  %-20s %s\r\n", display, cmd.Help)
	}
	return b.String()
}

// RegisterBuiltins registers the storage commands plus /help and /quit.
func (r *Registry) RegisterBuiltins() {
	r.Register("/get", Command{
		Usage:   "/get <key>",
		Help:    "show the value stored under key",
		Handler: handleGet,
	})
	r.Register("/save", Command{
		Usage:   "/save <key> <value>",
		Help:    "store a JSON value (non-JSON text is stored as a string)",
		Handler: handleSave,
	})
	r.Register("/drop", Command{
		Usage:   "/drop <key>",
		Help:    "delete key",
		Handler: handleDrop,
	})
	r.Register("/nuke", Command{
		Help:    "delete every record in the store",
		Handler: handleNuke,
	})
	r.Register("/list", Command{
		Help:    "list all records",
		Handler: handleList,
	})
	r.Register("/adapter", Command{
		Help: "show the active adapter",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprintf(ctx.Terminal, "Adapter: %s\r\n", ctx.Store.AdapterID())
			return false
		},
	})
	r.Register("/quit", Command{
		Help: "leave the shell",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprintln(ctx.Terminal, "Goodbye.")
			return true
		},
	})
	r.Register("/help", Command{
		Help: "show this help",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprint(ctx.Terminal, r.HelpText())
			return false
		},
	})
}

func handleGet(ctx CommandContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprint(ctx.Terminal, "Usage: /get <key>\r\n")
		return false
	}
	v, err := ctx.Store.Get(ctx.Ctx, ctx.Args[0])
	if err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "%s\r\n", render(v))
	return false
}

func handleSave(ctx CommandContext) bool {
	if len(ctx.Args) < 2 {
		_, _ = fmt.Fprint(ctx.Terminal, "Usage: /save <key> <value>\r\n")
		return false
	}
	key := ctx.Args[0]
	value := parseValue(ctx.Rest)
	if _, err := ctx.Store.Save(ctx.Ctx, key, value); err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "Saved %s = %s\r\n", store.Sanitize(key), render(value))
	return false
}

func handleDrop(ctx CommandContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprint(ctx.Terminal, "Usage: /drop <key>\r\n")
		return false
	}
	if err := ctx.Store.Drop(ctx.Ctx, ctx.Args[0]); err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "Dropped %s\r\n", store.Sanitize(ctx.Args[0]))
	return false
}

func handleNuke(ctx CommandContext) bool {
	if err := ctx.Store.Nuke(ctx.Ctx); err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprint(ctx.Terminal, "Store emptied.\r\n")
	return false
}

func handleList(ctx CommandContext) bool {
	entries, err := ctx.Store.GetAll(ctx.Ctx)
	if err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprint(ctx.Terminal, "Store: (empty)\r\n")
		return false
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	_, _ = fmt.Fprintf(ctx.Terminal, "Store (%d records):\r\n", len(entries))
	for _, e := range entries {
		_, _ = fmt.Fprintf(ctx.Terminal, "  %-20s = %s\r\n", e.Key, render(e.Data))
	}
	return false
}

// parseValue reads s as JSON, falling back to the literal string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
