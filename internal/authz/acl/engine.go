// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Evaluate scans the rule set in original order and returns the
// permission of the first rule whose action, qos/retain constraints,
// who-predicate, and topic specs all match the request. If no rule
// matches, fallback becomes the decision with RuleIndex -1.
//
// Evaluation is pure: it performs no I/O, allocates nothing on the
// match path, and never fails. A malformed request is a caller
// contract violation, not a permission outcome.
func (rs *RuleSet) Evaluate(req types.AccessRequest, fallback types.Permission) types.Decision {
	for i := range rs.rules {
		if rs.rules[i].matches(req, rs.richActions) {
			return types.Decision{
				Permission: rs.rules[i].Canonical.Permission,
				RuleIndex:  i,
			}
		}
	}
	return types.Decision{Permission: fallback, RuleIndex: -1}
}

// matches reports whether every constraint of the rule holds for the
// request.
func (r *CompiledRule) matches(req types.AccessRequest, richActions bool) bool {
	if !r.Canonical.Action.Kind.Covers(req.Action) {
		return false
	}

	if richActions {
		if !r.Canonical.Action.Qos.Contains(req.Qos) {
			return false
		}
		// Retain constraints only apply to publish requests.
		if req.Action == types.ActionPublish && !r.Canonical.Action.Retain.Allows(req.Retain) {
			return false
		}
	}

	if !r.who.matches(req) {
		return false
	}

	for _, t := range r.topics {
		if t.matches(req.Topic) {
			return true
		}
	}
	return false
}
