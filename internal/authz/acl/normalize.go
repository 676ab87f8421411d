// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package acl implements the authorization rule engine of the NimbusMQ
// broker: it normalizes external rule encodings into canonical rules,
// compiles them into matchers, evaluates ordered rule sets against
// connection events, and formats rules back to their external shape.
package acl

import (
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Error codes reported by the normalizer. Each error carries the
// offending value under the "value" context key.
const (
	CodeInvalidRule       = "invalid_rule"
	CodeMissingTopic      = "missing_topic_or_topics"
	CodeInvalidPermission = "invalid_permission"
	CodeInvalidAction     = "invalid_action"
	CodeInvalidQos        = "invalid_qos"
	CodeInvalidRetain     = "invalid_retain"
	CodeInvalidUsernameRe = "invalid_username_re"
	CodeInvalidClientIDRe = "invalid_clientid_re"
	CodeInvalidIPAddr     = "invalid_ipaddr"
	CodeInvalidWho        = "invalid_who"
)

// exactTopicPrefix marks a topic string that must be compared byte for
// byte instead of being treated as a wildcard filter.
const exactTopicPrefix = "eq "

// ParseRule normalizes one raw rule into a canonical rule. The first
// validation failure aborts and is returned as an oops error whose
// code names the reason and whose context carries the offending value.
// richActions controls whether qos/retain constraints are parsed; when
// false the resulting Action carries only its kind.
func ParseRule(raw types.RawRule, richActions bool) (types.CanonicalRule, error) {
	permVal, hasPerm := raw["permission"]
	actVal, hasAction := raw["action"]
	if !hasPerm || !hasAction {
		return types.CanonicalRule{}, oops.
			Code(CodeInvalidRule).
			With("value", raw).
			Errorf("acl rule must contain permission and action")
	}

	permStr, ok := permVal.(string)
	if !ok {
		return types.CanonicalRule{}, oops.
			Code(CodeInvalidPermission).
			With("value", permVal).
			Errorf("permission must be a string")
	}
	permission, ok := types.ParsePermission(permStr)
	if !ok {
		return types.CanonicalRule{}, oops.
			Code(CodeInvalidPermission).
			With("value", permStr).
			Errorf("permission must be %q or %q", "allow", "deny")
	}

	actStr, ok := actVal.(string)
	if !ok {
		return types.CanonicalRule{}, oops.
			Code(CodeInvalidAction).
			With("value", actVal).
			Errorf("action must be a string")
	}
	kind, ok := types.ParseActionKind(actStr)
	if !ok {
		return types.CanonicalRule{}, oops.
			Code(CodeInvalidAction).
			With("value", actStr).
			Errorf("unknown action %q", actStr)
	}

	topics, err := extractTopics(raw)
	if err != nil {
		return types.CanonicalRule{}, err
	}

	action := types.Action{Kind: kind}
	if richActions {
		action.Qos, err = extractQos(raw)
		if err != nil {
			return types.CanonicalRule{}, err
		}
		if kind == types.ActionPublish || kind == types.ActionAll {
			action.Retain, err = extractRetain(raw)
			if err != nil {
				return types.CanonicalRule{}, err
			}
		}
	}

	who, err := extractWho(raw)
	if err != nil {
		return types.CanonicalRule{}, err
	}

	return types.CanonicalRule{
		Permission: permission,
		Who:        who,
		Action:     action,
		Topics:     topics,
	}, nil
}

// extractTopics reads the topic/topics keys. A scalar "topic" string
// wraps into a one-element list; otherwise "topics" must be a list of
// strings. Topic strings prefixed with "eq " become exact specs.
func extractTopics(raw types.RawRule) ([]types.TopicSpec, error) {
	if t, ok := raw["topic"].(string); ok {
		return []types.TopicSpec{parseTopicSpec(t)}, nil
	}

	list, ok := asStringList(raw["topics"])
	if !ok {
		return nil, oops.
			Code(CodeMissingTopic).
			With("value", raw).
			Errorf("acl rule must contain a topic string or a topics list")
	}
	specs := make([]types.TopicSpec, 0, len(list))
	for _, t := range list {
		specs = append(specs, parseTopicSpec(t))
	}
	return specs, nil
}

func parseTopicSpec(s string) types.TopicSpec {
	if rest, ok := strings.CutPrefix(s, exactTopicPrefix); ok {
		return types.TopicSpec{Filter: rest, Exact: true}
	}
	return types.TopicSpec{Filter: s}
}

// extractQos reads the qos key: a single integer 0..2, a
// comma-separated digit string, or a list of ints or digit strings
// (homogeneous or mixed). Missing or null means all levels.
func extractQos(raw types.RawRule) (types.QosSet, error) {
	v, present := raw["qos"]
	if !present || v == nil {
		return types.DefaultQosSet, nil
	}

	invalid := func() error {
		return oops.
			Code(CodeInvalidQos).
			With("value", v).
			Errorf("qos must be an integer 0-2, a digit string, or a list of those")
	}

	switch qos := v.(type) {
	case string:
		levels := make([]int, 0, 3)
		for _, part := range strings.Split(qos, ",") {
			l, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return 0, invalid()
			}
			levels = append(levels, l)
		}
		set, ok := types.NewQosSet(levels...)
		if !ok || set.IsEmpty() {
			return 0, invalid()
		}
		return set, nil
	case []int:
		// The formatter emits this shape; accept it so formatted rules
		// reparse without a decode pass.
		set, ok := types.NewQosSet(qos...)
		if !ok || set.IsEmpty() {
			return 0, invalid()
		}
		return set, nil
	case []string:
		levels := make([]int, 0, len(qos))
		for _, s := range qos {
			l, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return 0, invalid()
			}
			levels = append(levels, l)
		}
		set, ok := types.NewQosSet(levels...)
		if !ok || set.IsEmpty() {
			return 0, invalid()
		}
		return set, nil
	case []any:
		levels := make([]int, 0, len(qos))
		for _, item := range qos {
			l, ok := asInt(item)
			if !ok {
				if s, isStr := item.(string); isStr {
					var err error
					l, err = strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return 0, invalid()
					}
				} else {
					return 0, invalid()
				}
			}
			levels = append(levels, l)
		}
		set, ok := types.NewQosSet(levels...)
		if !ok || set.IsEmpty() {
			return 0, invalid()
		}
		return set, nil
	default:
		l, ok := asInt(v)
		if !ok {
			return 0, invalid()
		}
		set, ok := types.NewQosSet(l)
		if !ok {
			return 0, invalid()
		}
		return set, nil
	}
}

// extractRetain reads the retain key. Missing, null, or "all" means no
// constraint; 0/1, "0"/"1", booleans, and "true"/"false" select a
// required retain flag.
func extractRetain(raw types.RawRule) (types.RetainPolicy, error) {
	v, present := raw["retain"]
	if !present || v == nil {
		return types.RetainAny, nil
	}

	switch retain := v.(type) {
	case bool:
		if retain {
			return types.RetainMust, nil
		}
		return types.RetainMustNot, nil
	case string:
		switch retain {
		case "all":
			return types.RetainAny, nil
		case "1", "true":
			return types.RetainMust, nil
		case "0", "false":
			return types.RetainMustNot, nil
		}
	default:
		if n, ok := asInt(v); ok {
			switch n {
			case 1:
				return types.RetainMust, nil
			case 0:
				return types.RetainMustNot, nil
			}
		}
	}
	return 0, oops.
		Code(CodeInvalidRetain).
		With("value", v).
		Errorf("retain must be a boolean, 0/1, or %q", "all")
}

// extractWho builds the who-predicate from the username_re,
// clientid_re, and ipaddr keys. Zero keys yield All, one yields that
// predicate, several yield a conjunction. Regex and CIDR syntax is
// validated later, at compile time.
func extractWho(raw types.RawRule) (types.WhoPredicate, error) {
	preds := make([]types.WhoPredicate, 0, 3)

	if v, present := raw["username_re"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, oops.
				Code(CodeInvalidUsernameRe).
				With("value", v).
				Errorf("username_re must be a string")
		}
		preds = append(preds, types.WhoUsername{Pattern: s})
	}
	if v, present := raw["clientid_re"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, oops.
				Code(CodeInvalidClientIDRe).
				With("value", v).
				Errorf("clientid_re must be a string")
		}
		preds = append(preds, types.WhoClientID{Pattern: s})
	}
	if v, present := raw["ipaddr"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, oops.
				Code(CodeInvalidIPAddr).
				With("value", v).
				Errorf("ipaddr must be a string")
		}
		preds = append(preds, types.WhoIPAddr{CIDR: s})
	}

	switch len(preds) {
	case 0:
		return types.WhoAll{}, nil
	case 1:
		return preds[0], nil
	default:
		return types.WhoAnd{Preds: preds}, nil
	}
}

// asInt accepts the integer representations produced by YAML and JSON
// decoders.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// asStringList accepts []string directly or []any whose elements are
// all strings.
func asStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
