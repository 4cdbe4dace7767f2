package hql

import (
	"fmt"
	"strings"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// Compiled is a statement translated to SQL for one dialect.
type Compiled struct {
	Kind   string
	Entity *engine.Entity
	SQL    string

	// Params lists the parameter name behind each positional placeholder,
	// in order. A name used twice appears twice.
	Params []string

	// Columns holds the column each placeholder is compared with or
	// assigned to, parallel to Params.
	Columns []string
}

// Compile maps entity and property names through schema and renders SQL
// with positional placeholders for d.
func Compile(stmt *Statement, schema *engine.Schema, d Dialect) (*Compiled, error) {
	if stmt == nil || (stmt.Update == nil && stmt.Delete == nil) {
		return nil, &engine.StatementError{Message: "empty statement"}
	}

	entity, err := schema.LookupEntity(stmt.EntityName())
	if err != nil {
		return nil, err
	}

	c := &Compiled{Kind: stmt.Kind(), Entity: entity}
	var b strings.Builder

	switch c.Kind {
	case "UPDATE":
		fmt.Fprintf(&b, "UPDATE %s SET ", d.Quote(entity.Table))
		set, err := c.render(stmt, stmt.Assignments(), d, ", ")
		if err != nil {
			return nil, err
		}
		b.WriteString(set)
	default:
		fmt.Fprintf(&b, "DELETE FROM %s", d.Quote(entity.Table))
	}

	if filters := stmt.Filters(); len(filters) > 0 {
		where, err := c.render(stmt, filters, d, " AND ")
		if err != nil {
			return nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	c.SQL = b.String()
	return c, nil
}

func (c *Compiled) render(stmt *Statement, preds []*Predicate, d Dialect, sep string) (string, error) {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		property, err := c.property(stmt, p)
		if err != nil {
			return "", err
		}
		column, err := c.Entity.Column(property)
		if err != nil {
			return "", err
		}
		c.Params = append(c.Params, p.Name())
		c.Columns = append(c.Columns, column)
		parts = append(parts, fmt.Sprintf("%s = %s", d.Quote(column), d.Placeholder(len(c.Params))))
	}
	return strings.Join(parts, sep), nil
}

// property strips the alias qualifier from a predicate path.
func (c *Compiled) property(stmt *Statement, p *Predicate) (string, error) {
	if len(p.Path) == 1 {
		return p.Path[0], nil
	}

	qualifier := p.Path[0]
	alias := stmt.alias()
	if qualifier == alias || (alias == "" && qualifier == stmt.EntityName()) {
		return p.Path[1], nil
	}
	return "", &engine.StatementError{
		Message: fmt.Sprintf("unknown alias '%s' (statement declares '%s')", qualifier, alias),
		Line:    p.Pos.Line,
		Column:  p.Pos.Column,
	}
}

// HasParam reports whether the statement references name.
func (c *Compiled) HasParam(name string) bool {
	for _, p := range c.Params {
		if p == name {
			return true
		}
	}
	return false
}

// Args returns the positional arguments for bound, in placeholder order.
func (c *Compiled) Args(bound map[string]any) ([]any, error) {
	args := make([]any, len(c.Params))
	for i, name := range c.Params {
		v, ok := bound[name]
		if !ok {
			return nil, &engine.ParameterError{Name: name, Reason: "not bound"}
		}
		args[i] = v
	}
	return args, nil
}
