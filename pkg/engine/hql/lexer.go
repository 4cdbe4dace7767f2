package hql

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// statementLexer tokenizes bulk UPDATE/DELETE statements.
var statementLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Keywords (matched case-insensitively, before identifiers)
	{Name: "Keyword", Pattern: `(?i)\b(UPDATE|DELETE|FROM|SET|WHERE|AND)\b`},

	// Named parameter, e.g. :filter0
	{Name: "Param", Pattern: `:[\p{L}_][\p{L}\p{N}_]*`},

	// Identifiers: entity, alias, property
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},

	// Punctuation
	{Name: "Dot", Pattern: `\.`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Equal", Pattern: `=`},

	{Name: "Whitespace", Pattern: `\s+`},
})
