// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package config loads NimbusMQ configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Config is the top-level configuration.
type Config struct {
	Logging       LoggingConfig       `koanf:"logging"`
	ACL           ACLConfig           `koanf:"acl"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// ACLConfig controls the authorization rule engine.
type ACLConfig struct {
	// Path of the rules file (.yaml/.yml document or .acl text).
	Path string `koanf:"path"`
	// RichActions enables per-rule qos/retain constraints.
	RichActions bool `koanf:"rich_actions"`
	// DefaultPermission applies when no rule matches: "allow" or "deny".
	DefaultPermission string `koanf:"default_permission"`
	// Watch reloads the rule set when the rules file changes.
	Watch bool `koanf:"watch"`
}

// ObservabilityConfig controls the metrics/health HTTP server.
type ObservabilityConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Format: "json"},
		ACL: ACLConfig{
			RichActions:       true,
			DefaultPermission: "deny",
		},
		Observability: ObservabilityConfig{ListenAddr: "127.0.0.1:9464"},
	}
}

// Load reads configuration from the optional YAML file at path, then
// applies flag overrides. Flags left at their defaults do not override
// file values.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Wrapf(err, "loading config file %s", path)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Wrapf(err, "loading config flags")
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Wrapf(err, "unmarshaling config")
	}

	if _, ok := types.ParsePermission(cfg.ACL.DefaultPermission); !ok {
		return Config{}, oops.
			With("value", cfg.ACL.DefaultPermission).
			Errorf("acl.default_permission must be %q or %q", "allow", "deny")
	}
	return cfg, nil
}

// Permission returns the parsed fallback permission.
func (c ACLConfig) Permission() types.Permission {
	p, _ := types.ParsePermission(c.DefaultPermission)
	return p
}
