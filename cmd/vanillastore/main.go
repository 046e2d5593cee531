package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vanillastore/internal/config"
	"vanillastore/internal/logging"
	"vanillastore/internal/store/local"
	"vanillastore/pkg/vanilla"
)

// flags holds the command-line overrides. Empty strings mean "not given".
type flags struct {
	configPath string
	adapter    string
	storeName  string
	version    string
	dataDir    string
	fallback   bool
	logLevel   string

	fallbackSet bool // -fallback appeared on the command line
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, error) {
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "path to config file")
	fs.StringVar(&f.adapter, "adapter", "", "adapter id (overrides config; empty probes capabilities)")
	fs.StringVar(&f.storeName, "store", "", "store name (overrides config)")
	fs.StringVar(&f.version, "version", "", "schema version (overrides config)")
	fs.StringVar(&f.dataDir, "data-dir", "", "data directory (overrides config)")
	fs.BoolVar(&f.fallback, "fallback", false, "fall back to the local adapter when no engine can be opened (overrides config)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "fallback" {
			f.fallbackSet = true
		}
	})
	return f, nil
}

// apply copies the flags given on the command line over cfg.
func (f *flags) apply(cfg *config.Config) {
	if f.adapter != "" {
		cfg.Storage.Adapter = f.adapter
	}
	if f.storeName != "" {
		cfg.Storage.StoreName = f.storeName
	}
	if f.version != "" {
		cfg.Storage.Version = f.version
	}
	if f.dataDir != "" {
		cfg.Storage.DataDir = f.dataDir
	}
	if f.fallbackSet {
		cfg.Storage.Fallback = f.fallback
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
}

func main() {
	flag.Usage = usage
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fatalf("config: %v", err)
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	cfg.Storage.DataDir = config.ExpandHome(cfg.Storage.DataDir)
	if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
		fatalf("creating data dir: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli{
		opts:   optionsFrom(cfg),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		pretty: isTerminal(os.Stdout),
	}
	if err := app.run(ctx, args); err != nil {
		stop()
		fatalf("%s: %v", args[0], err)
	}
}

func optionsFrom(cfg *config.Config) vanilla.Options {
	return vanilla.Options{
		AdapterID: cfg.Storage.Adapter,
		StoreName: cfg.Storage.StoreName,
		Version:   cfg.Storage.Version,
		DataDir:   cfg.Storage.DataDir,
		Local:     local.NewMemory(cfg.Local.QuotaBytes),
		Fallback:  cfg.Storage.Fallback,
	}
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, c := range commands {
		_, _ = fmt.Fprintf(out, "  %-18s %s\n", c.usage, c.help)
	}
	_, _ = fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "vanillastore: "+format+"\n", args...)
	os.Exit(1)
}
