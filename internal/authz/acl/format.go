// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"github.com/samber/oops"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// FormatRule renders a canonical rule back to its external raw shape,
// the structural inverse of ParseRule. It is used by the admin API to
// display and edit stored rules.
//
// A single-topic rule emits the scalar "topic" key, a multi-topic rule
// the "topics" list. When richActions is true the qos and retain keys
// are emitted with defaults substituted for absent values; when false
// only the bare shape is emitted so the output stays symmetric with
// what richActions=false normalization accepts. A nil Who is the
// legacy three-field form and formats like All.
//
// The formatter is only ever fed this engine's own output, so an
// unrecognized who-predicate shape is an internal consistency fault
// reported as invalid_who.
func FormatRule(rule types.CanonicalRule, richActions bool) (types.RawRule, error) {
	raw := types.RawRule{
		"permission": rule.Permission.String(),
		"action":     rule.Action.Kind.String(),
	}

	if err := formatWho(rule.Who, raw); err != nil {
		return nil, err
	}

	if richActions {
		qos := rule.Action.Qos
		if qos.IsEmpty() {
			qos = types.DefaultQosSet
		}
		raw["qos"] = qos.Levels()
		if rule.Action.Kind == types.ActionPublish || rule.Action.Kind == types.ActionAll {
			raw["retain"] = formatRetain(rule.Action.Retain)
		}
	}

	if len(rule.Topics) == 1 {
		raw["topic"] = formatTopicSpec(rule.Topics[0])
	} else {
		topics := make([]string, 0, len(rule.Topics))
		for _, spec := range rule.Topics {
			topics = append(topics, formatTopicSpec(spec))
		}
		raw["topics"] = topics
	}

	return raw, nil
}

// formatWho flattens a who-predicate back into the raw rule keys,
// merging an And into one flat map.
func formatWho(who types.WhoPredicate, raw types.RawRule) error {
	switch p := who.(type) {
	case nil, types.WhoAll:
		return nil
	case types.WhoUsername:
		raw["username_re"] = p.Pattern
	case types.WhoClientID:
		raw["clientid_re"] = p.Pattern
	case types.WhoIPAddr:
		raw["ipaddr"] = p.CIDR
	case types.WhoAnd:
		for _, sub := range p.Preds {
			if err := formatWho(sub, raw); err != nil {
				return err
			}
		}
	default:
		return oops.
			Code(CodeInvalidWho).
			With("value", who).
			Errorf("unrecognized who predicate %T", who)
	}
	return nil
}

func formatTopicSpec(spec types.TopicSpec) string {
	if spec.Exact {
		return exactTopicPrefix + spec.Filter
	}
	return spec.Filter
}

// formatRetain renders a retain policy in the external vocabulary:
// "all" for no constraint, booleans otherwise.
func formatRetain(policy types.RetainPolicy) any {
	switch policy {
	case types.RetainMust:
		return true
	case types.RetainMustNot:
		return false
	default:
		return "all"
	}
}
