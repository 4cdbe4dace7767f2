// Package hql parses and compiles the bulk statement language produced by
// the mutation builders:
//
//	UPDATE Car entity SET entity.Year = :arg0 WHERE entity.Id = :filter0
//	DELETE Car entity WHERE entity.Name = :filter0
//
// Entity and property names are mapped names, not tables and columns.
package hql

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// Statement is the parse tree of one bulk statement.
type Statement struct {
	Pos    lexer.Position
	Update *Update `  @@`
	Delete *Delete `| @@`
}

// Update is UPDATE <Entity> [alias] SET ... [WHERE ...]
type Update struct {
	Entity string       `"UPDATE" @Ident`
	Alias  string       `@Ident?`
	Set    []*Predicate `"SET" @@ ( "," @@ )*`
	Where  []*Predicate `( "WHERE" @@ ( "AND" @@ )* )?`
}

// Delete is DELETE [FROM] <Entity> [alias] [WHERE ...]
type Delete struct {
	Entity string       `"DELETE" "FROM"? @Ident`
	Alias  string       `@Ident?`
	Where  []*Predicate `( "WHERE" @@ ( "AND" @@ )* )?`
}

// Predicate is `[alias.]Property = :param`, used for both assignments
// and equality filters.
type Predicate struct {
	Pos   lexer.Position
	Path  []string `@Ident ( "." @Ident )?`
	Param string   `"=" @Param`
}

// Name is the parameter name without its colon.
func (p *Predicate) Name() string {
	return strings.TrimPrefix(p.Param, ":")
}

var parser = participle.MustBuild[Statement](
	participle.Lexer(statementLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
)

// Parse parses text into a Statement. Syntax errors are *engine.StatementError.
func Parse(text string) (*Statement, error) {
	stmt, err := parser.ParseString("", text)
	if err != nil {
		stmtErr := &engine.StatementError{Statement: text, Message: err.Error()}
		var perr participle.Error
		if errors.As(err, &perr) {
			stmtErr.Message = perr.Message()
			stmtErr.Line = perr.Position().Line
			stmtErr.Column = perr.Position().Column
		}
		return nil, stmtErr
	}
	return stmt, nil
}

// Kind is "UPDATE" or "DELETE".
func (s *Statement) Kind() string {
	if s.Update != nil {
		return "UPDATE"
	}
	return "DELETE"
}

// EntityName is the entity the statement targets.
func (s *Statement) EntityName() string {
	if s.Update != nil {
		return s.Update.Entity
	}
	return s.Delete.Entity
}

func (s *Statement) alias() string {
	if s.Update != nil {
		return s.Update.Alias
	}
	return s.Delete.Alias
}

// Filters returns the WHERE predicates in textual order.
func (s *Statement) Filters() []*Predicate {
	if s.Update != nil {
		return s.Update.Where
	}
	return s.Delete.Where
}

// Assignments returns the SET predicates; nil for DELETE.
func (s *Statement) Assignments() []*Predicate {
	if s.Update != nil {
		return s.Update.Set
	}
	return nil
}
