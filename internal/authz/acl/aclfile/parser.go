// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package aclfile

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// parser is the singleton participle parser instance.
var parser = mustParser()

func mustParser() *participle.Parser[File] {
	p, err := NewParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build acl file parser: %v", err))
	}
	return p
}

// Parse parses rule-file text and lowers every statement to its
// raw-rule map, in file order. Returns a descriptive error with
// position info on syntax failure.
func Parse(filename, src string) ([]types.RawRule, error) {
	file, err := parser.ParseString(filename, src)
	if err != nil {
		return nil, oops.Wrapf(err, "parsing acl file %s", filename)
	}

	raws := make([]types.RawRule, 0, len(file.Rules))
	for _, rule := range file.Rules {
		raws = append(raws, lower(rule))
	}
	return raws, nil
}

// lower converts one parsed statement into the loosely-typed raw-rule
// map consumed by the normalizer.
func lower(rule *Rule) types.RawRule {
	raw := types.RawRule{
		"permission": rule.Permission,
		"action":     rule.Action,
	}

	for _, m := range rule.Matchers {
		switch {
		case m.Username != nil:
			raw["username_re"] = *m.Username
		case m.ClientID != nil:
			raw["clientid_re"] = *m.ClientID
		case m.IPAddr != nil:
			raw["ipaddr"] = *m.IPAddr
		}
	}

	if len(rule.Qos) > 0 {
		levels := make([]any, 0, len(rule.Qos))
		for _, q := range rule.Qos {
			levels = append(levels, q)
		}
		raw["qos"] = levels
	}
	if rule.Retain != "" {
		raw["retain"] = rule.Retain
	}

	if len(rule.Topics) == 1 {
		raw["topic"] = renderTopic(rule.Topics[0])
	} else {
		topics := make([]string, 0, len(rule.Topics))
		for _, t := range rule.Topics {
			topics = append(topics, renderTopic(t))
		}
		raw["topics"] = topics
	}
	return raw
}

func renderTopic(t *Topic) string {
	if t.Exact {
		return "eq " + t.Filter
	}
	return t.Filter
}
