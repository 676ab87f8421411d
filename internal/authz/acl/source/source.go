// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package source provides rule sources for the ACL cache: a file
// source covering the YAML and text rule encodings, and a static
// in-memory source for embedding and tests. Durable storage of rules
// is the job of external systems; sources only fetch.
package source

import (
	"context"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Static serves a fixed in-memory rule list.
type Static []types.RawRule

// Load returns the rules verbatim.
func (s Static) Load(context.Context) ([]types.RawRule, error) {
	return s, nil
}
