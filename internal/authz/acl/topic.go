// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package acl

import "strings"

// Topic filter wildcard tokens.
const (
	tokenSingleLevel = "+"
	tokenMultiLevel  = "#"
)

// SplitTopic tokenizes a topic or topic filter into its /-separated
// levels. Wildcard tokens are preserved as-is.
func SplitTopic(topic string) []string {
	return strings.Split(topic, "/")
}

// MatchFilter reports whether a tokenized topic filter matches the
// given topic under MQTT wildcard semantics: "+" matches exactly one
// level, a trailing "#" matches the remaining levels including the
// parent level itself, and filters that begin with a wildcard never
// match topics starting with "$".
func MatchFilter(filter []string, topic string) bool {
	levels := strings.Split(topic, "/")

	if len(filter) > 0 && strings.HasPrefix(levels[0], "$") {
		if filter[0] == tokenSingleLevel || filter[0] == tokenMultiLevel {
			return false
		}
	}

	for i, f := range filter {
		if f == tokenMultiLevel && i == len(filter)-1 {
			return true
		}
		if i >= len(levels) {
			return false
		}
		if f != tokenSingleLevel && f != levels[i] {
			return false
		}
	}
	return len(filter) == len(levels)
}
