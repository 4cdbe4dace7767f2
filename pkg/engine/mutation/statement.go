package mutation

import (
	"fmt"
	"strings"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// Alias is the range variable every generated statement declares for its
// entity. Properties are qualified with it.
const Alias = "entity"

// Param is a named value bound to a statement placeholder.
type Param struct {
	Name  string
	Value any
}

// Statement is the bulk statement text plus its bindings, in order:
// arg0..argN for assignments, then filter0..filterM.
type Statement struct {
	Text   string
	Params []Param
}

// Values returns the bound values keyed by parameter name.
func (s Statement) Values() map[string]any {
	values := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		values[p.Name] = p.Value
	}
	return values
}

func (s Statement) String() string {
	return s.Text
}

// BuildUpdate renders
//
//	UPDATE <entity> entity SET entity.f = :arg0, ... [WHERE entity.g = :filter0 AND ...]
//
// An empty update list is rejected before anything is rendered.
func BuildUpdate(entity string, updates, filters engine.Clauses) (Statement, error) {
	if len(updates) == 0 {
		return Statement{}, &engine.NoUpdatesSpecifiedError{Entity: entity}
	}

	var stmt Statement
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s %s SET ", entity, Alias)
	b.WriteString(stmt.bind(updates, "arg", ", "))
	stmt.where(&b, filters)

	stmt.Text = b.String()
	return stmt, nil
}

// BuildDelete renders
//
//	DELETE <entity> entity [WHERE entity.g = :filter0 AND ...]
//
// With no filters the statement targets every row of the entity.
func BuildDelete(entity string, filters engine.Clauses) Statement {
	var stmt Statement
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE %s %s", entity, Alias)
	stmt.where(&b, filters)

	stmt.Text = b.String()
	return stmt
}

func (s *Statement) where(b *strings.Builder, filters engine.Clauses) {
	if len(filters) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(s.bind(filters, "filter", " AND "))
}

// bind renders one `entity.<field> = :<prefix><i>` fragment per clause and
// records the matching parameter.
func (s *Statement) bind(clauses engine.Clauses, prefix, sep string) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		name := fmt.Sprintf("%s%d", prefix, i)
		parts[i] = fmt.Sprintf("%s.%s = :%s", Alias, c.Field, name)
		s.Params = append(s.Params, Param{Name: name, Value: c.Value})
	}
	return strings.Join(parts, sep)
}
