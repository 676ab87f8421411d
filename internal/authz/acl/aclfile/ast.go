// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package aclfile parses the compact text encoding of ACL rules used
// by operator-maintained rule files. Parsed rules are lowered to the
// same raw-rule maps the YAML encoding produces, so both feed one
// normalization path.
//
// Grammar, one rule per statement:
//
//	allow user "^adm-.*$" ipaddr "10.0.0.0/8" publish qos 0,1 retain false topics "metrics/#", eq "a/+/b";
//	deny all topics "#";
//
// Comments run from '#' to end of line.
package aclfile

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// aclLexer tokenizes the rule syntax. Topic filters and patterns are
// always quoted so '#' stays unambiguous between wildcards and
// comments.
var aclLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[,;]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// File is a sequence of rule statements in evaluation order.
type File struct {
	Rules []*Rule `parser:"@@*"`
}

// Rule is one access rule statement.
type Rule struct {
	Pos        lexer.Position `parser:""`
	Permission string         `parser:"@('allow' | 'deny')"`
	Matchers   []*Matcher     `parser:"@@*"`
	Action     string         `parser:"@('publish' | 'pub' | 'subscribe' | 'sub' | 'all')"`
	Qos        []int          `parser:"('qos' @Int (',' @Int)*)?"`
	Retain     string         `parser:"('retain' @('true' | 'false' | 'all'))?"`
	Topics     []*Topic       `parser:"'topics' @@ (',' @@)* ';'"`
}

// Matcher is one who-constraint clause. Clauses may appear in any
// order and combination; they conjoin. Fields are pointers so an empty
// quoted pattern is still distinguishable from an absent clause.
type Matcher struct {
	Username *string `parser:"  'user' @String"`
	ClientID *string `parser:"| 'client' @String"`
	IPAddr   *string `parser:"| 'ipaddr' @String"`
}

// Topic is one topic constraint. The eq marker requests byte-exact
// comparison instead of wildcard filter matching.
type Topic struct {
	Exact  bool   `parser:"@'eq'?"`
	Filter string `parser:"@String"`
}

// NewParser constructs a participle parser for the rule-file grammar.
func NewParser() (*participle.Parser[File], error) {
	return participle.Build[File](
		participle.Lexer(aclLexer),
		participle.Unquote("String"),
	)
}
