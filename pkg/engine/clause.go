package engine

type (
	// Clause pairs a mapped property name with a literal value.
	Clause struct {
		Field string
		Value any
	}

	// Clauses is an ordered, append-only list of Clause. Filters are
	// combined with AND, assignments with a comma. Duplicate fields are
	// kept and emitted twice.
	Clauses []Clause
)

// Add appends a clause. Values are not checked against the field type;
// the driver does that.
func (c *Clauses) Add(field string, value any) {
	*c = append(*c, Clause{Field: field, Value: value})
}

// Fields returns the field names in insertion order.
func (c Clauses) Fields() []string {
	fields := make([]string, len(c))
	for i, cl := range c {
		fields[i] = cl.Field
	}
	return fields
}
