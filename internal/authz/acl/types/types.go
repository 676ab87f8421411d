// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package types defines the data model for the NimbusMQ ACL engine:
// permissions, actions, who-predicates, topic specs, canonical rules,
// and the request/decision pair exchanged with the broker hooks.
package types

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// RawRule is the external, loosely-typed encoding of an access rule as
// it arrives from a rules file, the admin API, or a database row.
// Unrecognized keys are ignored, never rejected.
type RawRule map[string]any

// Permission is the outcome a rule contributes when it matches.
type Permission int

// Permission constants. Deny is the zero value so an uninitialized
// decision fails closed.
const (
	PermissionDeny Permission = iota
	PermissionAllow
)

func (p Permission) String() string {
	if p == PermissionAllow {
		return "allow"
	}
	return "deny"
}

// ParsePermission maps an external permission string to a Permission.
func ParsePermission(s string) (Permission, bool) {
	switch s {
	case "allow":
		return PermissionAllow, true
	case "deny":
		return PermissionDeny, true
	default:
		return PermissionDeny, false
	}
}

// ActionKind identifies which MQTT operations a rule applies to.
type ActionKind int

// ActionKind constants. ActionAll covers both publish and subscribe.
const (
	ActionPublish ActionKind = iota
	ActionSubscribe
	ActionAll
)

var actionKindStrings = [...]string{
	"publish",
	"subscribe",
	"all",
}

func (k ActionKind) String() string {
	if k >= 0 && int(k) < len(actionKindStrings) {
		return actionKindStrings[k]
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// ParseActionKind maps an external action string (short or long form)
// to an ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	switch s {
	case "pub", "publish":
		return ActionPublish, true
	case "sub", "subscribe":
		return ActionSubscribe, true
	case "all":
		return ActionAll, true
	default:
		return ActionAll, false
	}
}

// Covers reports whether a rule with this kind applies to a request of
// the given kind. Requests only ever carry ActionPublish or
// ActionSubscribe.
func (k ActionKind) Covers(requested ActionKind) bool {
	return k == ActionAll || k == requested
}

// QosSet is a set of MQTT QoS levels drawn from {0,1,2}, stored as a
// bitmask.
type QosSet uint8

// DefaultQosSet contains all three QoS levels.
const DefaultQosSet QosSet = 0b111

// NewQosSet builds a QosSet from the given levels. It reports false if
// any level is outside 0..2.
func NewQosSet(levels ...int) (QosSet, bool) {
	var s QosSet
	for _, l := range levels {
		if l < 0 || l > 2 {
			return 0, false
		}
		s |= 1 << uint(l)
	}
	return s, true
}

// Contains reports whether the set includes the given QoS level.
func (s QosSet) Contains(qos byte) bool {
	if qos > 2 {
		return false
	}
	return s&(1<<qos) != 0
}

// IsEmpty reports whether the set contains no levels.
func (s QosSet) IsEmpty() bool { return s&DefaultQosSet == 0 }

// Levels returns the set members in ascending order.
func (s QosSet) Levels() []int {
	levels := make([]int, 0, 3)
	for l := 0; l <= 2; l++ {
		if s&(1<<uint(l)) != 0 {
			levels = append(levels, l)
		}
	}
	return levels
}

func (s QosSet) String() string {
	parts := make([]string, 0, 3)
	for _, l := range s.Levels() {
		parts = append(parts, strconv.Itoa(l))
	}
	return strings.Join(parts, ",")
}

// RetainPolicy constrains the retain flag of publish requests. It is
// deliberately three-valued: "unspecified" is observably different
// from "must not retain".
type RetainPolicy int

// RetainPolicy constants. RetainAny is the zero value and the default.
const (
	RetainAny RetainPolicy = iota
	RetainMust
	RetainMustNot
)

var retainPolicyStrings = [...]string{
	"any",
	"must_retain",
	"must_not_retain",
}

func (r RetainPolicy) String() string {
	if r >= 0 && int(r) < len(retainPolicyStrings) {
		return retainPolicyStrings[r]
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// Allows reports whether a publish with the given retain flag agrees
// with the policy.
func (r RetainPolicy) Allows(retain bool) bool {
	switch r {
	case RetainMust:
		return retain
	case RetainMustNot:
		return !retain
	default:
		return true
	}
}

// Action is the action constraint of a rule. When the rich-actions
// capability is disabled only Kind is meaningful; Qos and Retain stay
// at their zero values and are ignored by the evaluator.
type Action struct {
	Kind   ActionKind
	Qos    QosSet
	Retain RetainPolicy
}

// WhoPredicate is a boolean condition over the client identity and
// peer address of a request. The variant set is closed: All,
// UsernameMatches, ClientIDMatches, AddressInNetwork, and And over a
// list of predicates.
type WhoPredicate interface {
	isWho()
}

// WhoAll matches every request.
type WhoAll struct{}

// WhoUsername matches requests whose username matches the anchored
// regular expression Pattern.
type WhoUsername struct {
	Pattern string
}

// WhoClientID matches requests whose client identifier matches the
// anchored regular expression Pattern.
type WhoClientID struct {
	Pattern string
}

// WhoIPAddr matches requests whose peer address lies in CIDR. A bare
// address denotes the single-address network.
type WhoIPAddr struct {
	CIDR string
}

// WhoAnd matches when every member predicate matches. Conjunction
// commutes; member order carries no meaning.
type WhoAnd struct {
	Preds []WhoPredicate
}

func (WhoAll) isWho()      {}
func (WhoUsername) isWho() {}
func (WhoClientID) isWho() {}
func (WhoIPAddr) isWho()   {}
func (WhoAnd) isWho()      {}

// TopicSpec is a single topic constraint of a rule. A Plain spec is an
// MQTT topic filter matched with wildcard semantics; an Exact spec is
// compared byte for byte and wildcards inside it are not expanded.
type TopicSpec struct {
	Filter string
	Exact  bool
}

// CanonicalRule is the engine-native form of an access rule,
// independent of any external encoding. Every canonical rule carries
// at least one topic spec.
type CanonicalRule struct {
	Permission Permission
	Who        WhoPredicate
	Action     Action
	Topics     []TopicSpec
}

// AccessRequest describes one connection event the broker asks the
// engine to authorize. Username may be empty for anonymous sessions.
// Action is ActionPublish or ActionSubscribe, never ActionAll.
type AccessRequest struct {
	ClientID    string
	Username    string
	PeerAddress netip.Addr
	Action      ActionKind
	Topic       string
	Qos         byte
	Retain      bool
}

// Decision is the evaluation outcome. RuleIndex is the zero-based
// index of the matching rule, or -1 when the caller-supplied default
// applied.
type Decision struct {
	Permission Permission
	RuleIndex  int
}

// Matched reports whether a rule (rather than the default) produced
// the decision.
func (d Decision) Matched() bool { return d.RuleIndex >= 0 }

func (d Decision) String() string {
	if !d.Matched() {
		return d.Permission.String() + " (default)"
	}
	return fmt.Sprintf("%s (rule %d)", d.Permission, d.RuleIndex)
}
