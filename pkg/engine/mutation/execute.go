package mutation

import (
	"context"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// Execute runs stmt against session: pending changes are flushed, the
// session cache is cleared, then the statement is prepared, bound and
// executed. The affected row count is returned as reported by the store.
//
// Session errors are returned unmodified; a failure at any step stops the
// sequence.
func Execute(ctx context.Context, session engine.Session, stmt Statement) (int, error) {
	if session == nil {
		return 0, engine.ErrNilSession
	}

	if err := session.Flush(ctx); err != nil {
		return 0, err
	}
	if err := session.Clear(); err != nil {
		return 0, err
	}

	query, err := session.CreateQuery(stmt.Text)
	if err != nil {
		return 0, err
	}
	for _, p := range stmt.Params {
		if err := query.SetParameter(p.Name, p.Value); err != nil {
			return 0, err
		}
	}

	return query.ExecuteUpdate(ctx)
}
