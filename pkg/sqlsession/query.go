package sqlsession

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
)

// Query is a compiled bulk statement waiting for its parameters.
type Query struct {
	session  *Session
	compiled *hql.Compiled
	bound    map[string]any
}

// SQL returns the statement as sent to the store.
func (q *Query) SQL() string {
	return q.compiled.SQL
}

// SetParameter implements engine.PreparedQuery. Names the statement does
// not reference are rejected; binding a name again replaces its value.
func (q *Query) SetParameter(name string, value any) error {
	if !q.compiled.HasParam(name) {
		return &engine.ParameterError{Name: name, Reason: "not referenced by the statement"}
	}
	q.bound[name] = value
	return nil
}

// ExecuteUpdate implements engine.PreparedQuery.
func (q *Query) ExecuteUpdate(ctx context.Context) (int, error) {
	args, err := q.compiled.Args(q.bound)
	if err != nil {
		return 0, err
	}

	s := q.session
	entity := q.compiled.Entity
	s.echo(entity.Name, q.compiled.Kind, q.compiled.SQL, args)

	start := time.Now()
	n, err := s.conn.Exec(ctx, q.compiled.SQL, args...)
	if err != nil {
		s.logger.Error("bulk statement failed",
			zap.String("entity", entity.Name),
			zap.String("sql", q.compiled.SQL),
			zap.Error(err),
		)
		return 0, mapStoreError(err, entity, q.columnValues())
	}

	s.logger.Info("bulk statement executed",
		zap.String("entity", entity.Name),
		zap.String("kind", q.compiled.Kind),
		zap.Int64("affected", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return int(n), nil
}

// columnValues maps bound values to column names for error reporting.
func (q *Query) columnValues() map[string]any {
	values := make(map[string]any, len(q.compiled.Columns))
	for i, column := range q.compiled.Columns {
		values[column] = q.bound[q.compiled.Params[i]]
	}
	return values
}
