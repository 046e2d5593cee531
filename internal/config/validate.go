package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"vanillastore/internal/logging"
)

// Adapters lists the adapter ids accepted in storage.adapter.
var Adapters = []string{"bolt-storage", "sqlite-storage", "local-storage"}

// store names end up in file names and SQL identifiers
var storeNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Adapter != "" && !slices.Contains(Adapters, c.Storage.Adapter) {
		errs = append(errs, fmt.Errorf("storage.adapter: unknown adapter %q (want one of %s)",
			c.Storage.Adapter, strings.Join(Adapters, ", ")))
	}
	if !storeNameRe.MatchString(c.Storage.StoreName) {
		errs = append(errs, fmt.Errorf("storage.store_name: %q must match %s", c.Storage.StoreName, storeNameRe))
	}
	if strings.TrimSpace(c.Storage.Version) == "" {
		errs = append(errs, errors.New("storage.version: must not be empty"))
	}
	if c.Local.QuotaBytes < 0 {
		errs = append(errs, fmt.Errorf("local.quota_bytes: must be >= 0, got %d", c.Local.QuotaBytes))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: want text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
