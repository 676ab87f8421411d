// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
	"github.com/nimbusmq/nimbus/pkg/errutil"
)

func TestParseRule_MinimalDefaults(t *testing.T) {
	rule, err := ParseRule(types.RawRule{
		"permission": "allow",
		"action":     "pub",
		"topic":      "a/b",
	}, true)
	require.NoError(t, err)

	assert.Equal(t, types.PermissionAllow, rule.Permission)
	assert.Equal(t, types.WhoAll{}, rule.Who)
	assert.Equal(t, types.ActionPublish, rule.Action.Kind)
	assert.Equal(t, types.DefaultQosSet, rule.Action.Qos)
	assert.Equal(t, types.RetainAny, rule.Action.Retain)
	assert.Equal(t, []types.TopicSpec{{Filter: "a/b"}}, rule.Topics)
}

func TestParseRule_ActionAliases(t *testing.T) {
	tests := []struct {
		action string
		want   types.ActionKind
	}{
		{"pub", types.ActionPublish},
		{"publish", types.ActionPublish},
		{"sub", types.ActionSubscribe},
		{"subscribe", types.ActionSubscribe},
		{"all", types.ActionAll},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			rule, err := ParseRule(types.RawRule{
				"permission": "deny",
				"action":     tt.action,
				"topic":      "t",
			}, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Action.Kind)
		})
	}
}

func TestParseRule_MissingRequiredKeys(t *testing.T) {
	raw := types.RawRule{"topic": "a/b"}
	_, err := ParseRule(raw, true)
	errutil.AssertErrorCode(t, err, CodeInvalidRule)
	errutil.AssertErrorContext(t, err, "value", raw)

	_, err = ParseRule(types.RawRule{"permission": "allow", "topic": "a"}, true)
	errutil.AssertErrorCode(t, err, CodeInvalidRule)

	_, err = ParseRule(types.RawRule{"action": "pub", "topic": "a"}, true)
	errutil.AssertErrorCode(t, err, CodeInvalidRule)
}

func TestParseRule_InvalidPermission(t *testing.T) {
	_, err := ParseRule(types.RawRule{
		"permission": "grant",
		"action":     "pub",
		"topic":      "a",
	}, true)
	errutil.AssertErrorCode(t, err, CodeInvalidPermission)
	errutil.AssertErrorContext(t, err, "value", "grant")
}

func TestParseRule_InvalidAction(t *testing.T) {
	_, err := ParseRule(types.RawRule{
		"permission": "allow",
		"action":     "connect",
		"topic":      "a",
	}, true)
	errutil.AssertErrorCode(t, err, CodeInvalidAction)
	errutil.AssertErrorContext(t, err, "value", "connect")
}

func TestParseRule_Topics(t *testing.T) {
	t.Run("scalar topic wraps to one spec", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "x/y",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []types.TopicSpec{{Filter: "x/y"}}, rule.Topics)
	})

	t.Run("topics list of strings", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub",
			"topics": []any{"a/#", "eq b/+/c"},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []types.TopicSpec{
			{Filter: "a/#"},
			{Filter: "b/+/c", Exact: true},
		}, rule.Topics)
	})

	t.Run("missing both", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub",
		}, true)
		errutil.AssertErrorCode(t, err, CodeMissingTopic)
	})

	t.Run("topics with non-string element", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub",
			"topics": []any{"a", 7},
		}, true)
		errutil.AssertErrorCode(t, err, CodeMissingTopic)
	})

	t.Run("non-string topic falls through to topics", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": 42,
		}, true)
		errutil.AssertErrorCode(t, err, CodeMissingTopic)
	})
}

func TestParseRule_Qos(t *testing.T) {
	parse := func(t *testing.T, qos any) (types.CanonicalRule, error) {
		t.Helper()
		return ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t", "qos": qos,
		}, true)
	}

	t.Run("single int", func(t *testing.T) {
		rule, err := parse(t, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, rule.Action.Qos.Levels())
	})

	t.Run("comma string", func(t *testing.T) {
		rule, err := parse(t, "0,2")
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, rule.Action.Qos.Levels())
	})

	t.Run("digit string", func(t *testing.T) {
		rule, err := parse(t, "2")
		require.NoError(t, err)
		assert.Equal(t, []int{2}, rule.Action.Qos.Levels())
	})

	t.Run("list of ints and digit strings", func(t *testing.T) {
		rule, err := parse(t, []any{0, "1"})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, rule.Action.Qos.Levels())
	})

	t.Run("plain int list", func(t *testing.T) {
		// The shape FormatRule emits.
		rule, err := parse(t, []int{0, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, rule.Action.Qos.Levels())
	})

	t.Run("plain string list", func(t *testing.T) {
		rule, err := parse(t, []string{"1", "2"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, rule.Action.Qos.Levels())
	})

	t.Run("plain int list out of range", func(t *testing.T) {
		_, err := parse(t, []int{0, 7})
		errutil.AssertErrorCode(t, err, CodeInvalidQos)
	})

	t.Run("null means default", func(t *testing.T) {
		rule, err := parse(t, nil)
		require.NoError(t, err)
		assert.Equal(t, types.DefaultQosSet, rule.Action.Qos)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := parse(t, "3")
		errutil.AssertErrorCode(t, err, CodeInvalidQos)
		errutil.AssertErrorContext(t, err, "value", "3")
	})

	t.Run("garbage string", func(t *testing.T) {
		_, err := parse(t, "one")
		errutil.AssertErrorCode(t, err, CodeInvalidQos)
	})

	t.Run("list with bad element", func(t *testing.T) {
		_, err := parse(t, []any{0, true})
		errutil.AssertErrorCode(t, err, CodeInvalidQos)
	})

	t.Run("bool", func(t *testing.T) {
		_, err := parse(t, true)
		errutil.AssertErrorCode(t, err, CodeInvalidQos)
	})
}

func TestParseRule_Retain(t *testing.T) {
	parse := func(t *testing.T, retain any) (types.CanonicalRule, error) {
		t.Helper()
		return ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t", "retain": retain,
		}, true)
	}

	tests := []struct {
		name   string
		retain any
		want   types.RetainPolicy
	}{
		{"true", true, types.RetainMust},
		{"false", false, types.RetainMustNot},
		{"int one", 1, types.RetainMust},
		{"int zero", 0, types.RetainMustNot},
		{"string one", "1", types.RetainMust},
		{"string zero", "0", types.RetainMustNot},
		{"string true", "true", types.RetainMust},
		{"string false", "false", types.RetainMustNot},
		{"all", "all", types.RetainAny},
		{"null", nil, types.RetainAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parse(t, tt.retain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Action.Retain)
		})
	}

	t.Run("invalid value", func(t *testing.T) {
		_, err := parse(t, "maybe")
		errutil.AssertErrorCode(t, err, CodeInvalidRetain)
		errutil.AssertErrorContext(t, err, "value", "maybe")
	})

	t.Run("ignored for subscribe rules", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "sub", "topic": "t", "retain": "maybe",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, types.RetainAny, rule.Action.Retain)
	})
}

func TestParseRule_RichActionsDisabled(t *testing.T) {
	// qos/retain are not parsed at all: invalid values cannot fail.
	rule, err := ParseRule(types.RawRule{
		"permission": "allow",
		"action":     "pub",
		"topic":      "t",
		"qos":        "not-a-qos",
		"retain":     "not-a-retain",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, types.ActionPublish, rule.Action.Kind)
	assert.True(t, rule.Action.Qos.IsEmpty())
	assert.Equal(t, types.RetainAny, rule.Action.Retain)
}

func TestParseRule_Who(t *testing.T) {
	t.Run("zero predicates", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, types.WhoAll{}, rule.Who)
	})

	t.Run("single predicate", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
			"username_re": "^adm-.*$",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, types.WhoUsername{Pattern: "^adm-.*$"}, rule.Who)
	})

	t.Run("multiple predicates conjoin", func(t *testing.T) {
		rule, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
			"clientid_re": "sensor-\\d+",
			"ipaddr":      "10.0.0.0/8",
		}, true)
		require.NoError(t, err)

		and, ok := rule.Who.(types.WhoAnd)
		require.True(t, ok, "expected WhoAnd, got %T", rule.Who)
		// Conjunction commutes; compare as a set.
		assert.ElementsMatch(t, []types.WhoPredicate{
			types.WhoClientID{Pattern: `sensor-\d+`},
			types.WhoIPAddr{CIDR: "10.0.0.0/8"},
		}, and.Preds)
	})

	t.Run("non-string username_re", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
			"username_re": 5,
		}, true)
		errutil.AssertErrorCode(t, err, CodeInvalidUsernameRe)
	})

	t.Run("non-string clientid_re", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
			"clientid_re": false,
		}, true)
		errutil.AssertErrorCode(t, err, CodeInvalidClientIDRe)
	})

	t.Run("non-string ipaddr", func(t *testing.T) {
		_, err := ParseRule(types.RawRule{
			"permission": "allow", "action": "pub", "topic": "t",
			"ipaddr": []any{"10.0.0.0/8"},
		}, true)
		errutil.AssertErrorCode(t, err, CodeInvalidIPAddr)
	})
}

func TestParseRule_UnrecognizedKeysIgnored(t *testing.T) {
	rule, err := ParseRule(types.RawRule{
		"permission": "deny",
		"action":     "all",
		"topic":      "t",
		"comment":    "operators write these",
		"priority":   99,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, types.PermissionDeny, rule.Permission)
}
