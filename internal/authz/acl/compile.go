// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/samber/oops"

	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Error codes reported by the compiler.
const (
	CodeInvalidRegex = "invalid_regex"
	CodeBadACLRule   = "bad_acl_rule"
)

// CompiledRule is a canonical rule with its matching artifacts
// precomputed: anchored regexes, parsed networks, tokenized topic
// filters.
type CompiledRule struct {
	Canonical types.CanonicalRule

	who    whoMatcher
	topics []compiledTopic
}

// compiledTopic is one ready-to-match topic constraint.
type compiledTopic struct {
	exact   string   // set when the spec is an exact comparison
	filter  []string // tokenized wildcard filter otherwise
	isExact bool
}

func (t compiledTopic) matches(topic string) bool {
	if t.isExact {
		return t.exact == topic
	}
	return MatchFilter(t.filter, topic)
}

// RuleSet is an immutable, ordered list of compiled rules. It is safe
// for unbounded concurrent readers; nothing mutates it after
// CompileAll returns.
type RuleSet struct {
	rules       []CompiledRule
	richActions bool
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// RichActions reports whether the set was compiled with per-rule
// qos/retain constraints enabled.
func (rs *RuleSet) RichActions() bool { return rs.richActions }

// Rules returns the canonical form of every rule in original order,
// for administrative display.
func (rs *RuleSet) Rules() []types.CanonicalRule {
	out := make([]types.CanonicalRule, len(rs.rules))
	for i := range rs.rules {
		out[i] = rs.rules[i].Canonical
	}
	return out
}

// CompileAll normalizes and compiles every raw rule in input order.
// The batch is all-or-nothing: the first failure aborts with a
// bad_acl_rule error carrying the underlying reason, and no partial
// rule set is produced. Callers keep their previous rule set active on
// failure.
func CompileAll(raws []types.RawRule, richActions bool) (*RuleSet, error) {
	rules := make([]CompiledRule, 0, len(raws))
	for i, raw := range raws {
		canonical, err := ParseRule(raw, richActions)
		if err != nil {
			return nil, batchError(i, err)
		}
		compiled, err := CompileRule(canonical)
		if err != nil {
			return nil, batchError(i, err)
		}
		rules = append(rules, compiled)
	}
	return &RuleSet{rules: rules, richActions: richActions}, nil
}

// batchError reports the first per-rule failure as the batch-level
// bad_acl_rule error. The per-rule code and context are folded in as
// "reason" and merged context rather than kept as a wrapped cause:
// oops resolves Code() to the deepest code in a chain, and the batch
// error's own code must stay bad_acl_rule so callers can tell rejected
// rule data apart from transport failures.
func batchError(index int, err error) error {
	builder := oops.
		Code(CodeBadACLRule).
		With("index", index)
	if oopsErr, ok := oops.AsOops(err); ok {
		if reason, ok := oopsErr.Code().(string); ok && reason != "" {
			builder = builder.With("reason", reason)
		}
		for k, v := range oopsErr.Context() {
			builder = builder.With(k, v)
		}
	}
	return builder.Errorf("acl rule %d rejected: %s", index, err)
}

// CompileRule turns one canonical rule into its executable form:
// who-predicate regexes are compiled anchored, CIDR literals parsed,
// and plain topic filters tokenized.
func CompileRule(rule types.CanonicalRule) (CompiledRule, error) {
	who, err := compileWho(rule.Who)
	if err != nil {
		return CompiledRule{}, err
	}

	topics := make([]compiledTopic, 0, len(rule.Topics))
	for _, spec := range rule.Topics {
		if spec.Exact {
			topics = append(topics, compiledTopic{exact: spec.Filter, isExact: true})
		} else {
			topics = append(topics, compiledTopic{filter: SplitTopic(spec.Filter)})
		}
	}

	return CompiledRule{Canonical: rule, who: who, topics: topics}, nil
}

// whoMatcher is the executable form of a who-predicate.
type whoMatcher interface {
	matches(req types.AccessRequest) bool
}

type matchAll struct{}

func (matchAll) matches(types.AccessRequest) bool { return true }

type matchUsername struct {
	re *regexp.Regexp
}

func (m matchUsername) matches(req types.AccessRequest) bool {
	return m.re.MatchString(req.Username)
}

type matchClientID struct {
	re *regexp.Regexp
}

func (m matchClientID) matches(req types.AccessRequest) bool {
	return m.re.MatchString(req.ClientID)
}

type matchNetwork struct {
	prefix netip.Prefix
}

func (m matchNetwork) matches(req types.AccessRequest) bool {
	if !req.PeerAddress.IsValid() {
		return false
	}
	return m.prefix.Contains(req.PeerAddress.Unmap())
}

type matchAnd struct {
	members []whoMatcher
}

func (m matchAnd) matches(req types.AccessRequest) bool {
	for _, member := range m.members {
		if !member.matches(req) {
			return false
		}
	}
	return true
}

// compileWho recursively compiles a who-predicate. A nil predicate is
// the legacy three-field rule form and matches everything.
func compileWho(who types.WhoPredicate) (whoMatcher, error) {
	switch p := who.(type) {
	case nil, types.WhoAll:
		return matchAll{}, nil
	case types.WhoUsername:
		re, err := compileAnchored(p.Pattern)
		if err != nil {
			return nil, err
		}
		return matchUsername{re: re}, nil
	case types.WhoClientID:
		re, err := compileAnchored(p.Pattern)
		if err != nil {
			return nil, err
		}
		return matchClientID{re: re}, nil
	case types.WhoIPAddr:
		prefix, err := parseNetwork(p.CIDR)
		if err != nil {
			return nil, err
		}
		return matchNetwork{prefix: prefix}, nil
	case types.WhoAnd:
		members := make([]whoMatcher, 0, len(p.Preds))
		for _, sub := range p.Preds {
			m, err := compileWho(sub)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return matchAnd{members: members}, nil
	default:
		return nil, oops.
			Code(CodeInvalidWho).
			With("value", who).
			Errorf("unrecognized who predicate %T", who)
	}
}

// compileAnchored compiles a pattern so that it must match the whole
// candidate string, not a substring.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, oops.
			Code(CodeInvalidRegex).
			With("value", pattern).
			Wrapf(err, "invalid regular expression %q", pattern)
	}
	return re, nil
}

// parseNetwork parses a CIDR literal; a bare address denotes the
// single-address network.
func parseNetwork(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, oops.
				Code(CodeInvalidIPAddr).
				With("value", s).
				Wrapf(err, "invalid network %q", s)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, oops.
			Code(CodeInvalidIPAddr).
			With("value", s).
			Wrapf(err, "invalid address %q", s)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
