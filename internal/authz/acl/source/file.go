// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package source

import (
	"context"
	"log/slog"
	"path/filepath"

	koanffile "github.com/knadh/koanf/providers/file"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/nimbusmq/nimbus/internal/authz/acl/aclfile"
	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// File loads rules from a single file. The ".acl" extension selects
// the compact text encoding; everything else is parsed as a YAML
// document holding a "rules" list of maps (a bare top-level list is
// also accepted).
type File struct {
	path     string
	provider *koanffile.File
}

// NewFile creates a file source for the given path. The file is read
// on every Load so a reload always observes the current contents.
func NewFile(path string) *File {
	return &File{path: path, provider: koanffile.Provider(path)}
}

// Load reads and decodes the rule file.
func (f *File) Load(context.Context) ([]types.RawRule, error) {
	data, err := f.provider.ReadBytes()
	if err != nil {
		return nil, oops.Wrapf(err, "reading acl rules from %s", f.path)
	}

	if filepath.Ext(f.path) == ".acl" {
		return aclfile.Parse(f.path, string(data))
	}
	return decodeYAMLRules(f.path, data)
}

// Watch registers for filesystem change notifications and invokes
// onChange on every event until ctx is cancelled. Editors that replace
// the file rather than writing in place are handled by the underlying
// provider.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	err := f.provider.Watch(func(_ any, watchErr error) {
		if watchErr != nil {
			slog.Error("acl file watch error", "path", f.path, "error", watchErr.Error())
			return
		}
		onChange()
	})
	if err != nil {
		return oops.Wrapf(err, "watching acl rules file %s", f.path)
	}

	go func() {
		<-ctx.Done()
		if unwatchErr := f.provider.Unwatch(); unwatchErr != nil {
			slog.Warn("acl file unwatch failed", "path", f.path, "error", unwatchErr.Error())
		}
	}()
	return nil
}

// ruleDocument is the YAML rule file shape.
type ruleDocument struct {
	Rules []map[string]any `yaml:"rules"`
}

func decodeYAMLRules(path string, data []byte) ([]types.RawRule, error) {
	var doc ruleDocument
	docErr := yaml.Unmarshal(data, &doc)
	if docErr == nil && doc.Rules != nil {
		return toRawRules(doc.Rules), nil
	}

	// Fall back to a bare top-level list.
	var list []map[string]any
	if listErr := yaml.Unmarshal(data, &list); listErr == nil && list != nil {
		return toRawRules(list), nil
	}

	if docErr == nil {
		return []types.RawRule{}, nil
	}
	return nil, oops.Wrapf(docErr, "decoding acl rules from %s", path)
}

func toRawRules(maps []map[string]any) []types.RawRule {
	raws := make([]types.RawRule, 0, len(maps))
	for _, m := range maps {
		raws = append(raws, types.RawRule(m))
	}
	return raws
}
