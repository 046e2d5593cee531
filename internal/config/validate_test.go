package config

import (
	"slices"
	"strings"
	"testing"

	"vanillastore/pkg/vanilla"
)

func TestValidateAdapter(t *testing.T) {
	for _, id := range append([]string{""}, Adapters...) {
		cfg := Defaults()
		cfg.Storage.Adapter = id
		if err := cfg.Validate(); err != nil {
			t.Errorf("adapter %q should be valid: %v", id, err)
		}
	}

	cfg := Defaults()
	cfg.Storage.Adapter = "indexeddb-storage"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "storage.adapter") {
		t.Fatalf("expected adapter error, got %v", err)
	}
}

func TestAdaptersMatchFacade(t *testing.T) {
	for _, id := range []string{vanilla.AdapterBolt, vanilla.AdapterSQLite, vanilla.AdapterLocal} {
		if !slices.Contains(Adapters, id) {
			t.Errorf("config does not accept facade adapter %q", id)
		}
	}
}

func TestValidateStoreName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"vanilla_store", true},
		{"s1", true},
		{"my-app_2", true},
		{"", false},
		{"../escape", false},
		{"a.b", false},
		{`we"ird`, false},
		{"with space", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Storage.StoreName = tt.name
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty version", func(c *Config) { c.Storage.Version = "  " }, "storage.version"},
		{"negative quota", func(c *Config) { c.Local.QuotaBytes = -1 }, "local.quota_bytes"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "yaml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s error, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateEmptyOptionalFields(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Adapter = ""
	cfg.Logging.Level = ""
	cfg.Logging.Format = ""
	cfg.Local.QuotaBytes = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty optional fields should be valid: %v", err)
	}
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Adapter = "nope"
	cfg.Storage.StoreName = "a/b"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"storage.adapter", "storage.store_name", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %s in %v", want, err)
		}
	}
}
