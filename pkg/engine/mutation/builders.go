package mutation

import (
	"context"
	"time"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// ============================================================
// UPDATE BUILDER
// ============================================================

// UpdateBuilder accumulates assignments and filters for one bulk UPDATE.
type UpdateBuilder struct {
	session  engine.Session
	entity   string
	updates  engine.Clauses
	filters  engine.Clauses
	err      error
	executed bool

	// Debug settings
	debug *engine.DebugContext
}

func NewUpdateBuilder(session engine.Session, entity string) *UpdateBuilder {
	return &UpdateBuilder{
		session: session,
		entity:  entity,
	}
}

// SetProperty implements engine.UpdateMutation
func (ub *UpdateBuilder) SetProperty(ref engine.FieldRef, value any) engine.UpdateMutation {
	ub.record(&ub.updates, ref, value)
	return ub
}

// Where implements engine.UpdateMutation
func (ub *UpdateBuilder) Where(ref engine.FieldRef, value any) engine.UpdateMutation {
	ub.record(&ub.filters, ref, value)
	return ub
}

// Debug implements engine.UpdateMutation
func (ub *UpdateBuilder) Debug() engine.UpdateMutation {
	ub.debug = enableSQL(ub.debug)
	return ub
}

// Err implements engine.UpdateMutation
func (ub *UpdateBuilder) Err() error {
	return ub.err
}

// Statement renders the statement without executing it.
func (ub *UpdateBuilder) Statement() (Statement, error) {
	if ub.err != nil {
		return Statement{}, ub.err
	}
	return BuildUpdate(ub.entity, ub.updates, ub.filters)
}

// Execute implements engine.UpdateMutation
func (ub *UpdateBuilder) Execute(ctx context.Context) (int, error) {
	if ub.executed {
		return 0, engine.ErrAlreadyExecuted
	}
	stmt, err := ub.Statement()
	if err != nil {
		return 0, err
	}
	ub.executed = true

	return run(ctx, ub.session, ub.debug, ub.entity, "UPDATE", stmt)
}

// record resolves ref and appends the clause. After the first failure
// the builder keeps the error and ignores further clauses.
func (ub *UpdateBuilder) record(clauses *engine.Clauses, ref engine.FieldRef, value any) {
	if ub.err != nil {
		return
	}
	name, err := engine.ResolveFieldName(ref)
	if err != nil {
		ub.err = err
		return
	}
	clauses.Add(name, value)
}

// ============================================================
// DELETE BUILDER
// ============================================================

// DeleteBuilder accumulates filters for one bulk DELETE.
type DeleteBuilder struct {
	session  engine.Session
	entity   string
	filters  engine.Clauses
	err      error
	executed bool

	// Debug settings
	debug *engine.DebugContext
}

func NewDeleteBuilder(session engine.Session, entity string) *DeleteBuilder {
	return &DeleteBuilder{
		session: session,
		entity:  entity,
	}
}

// Where implements engine.DeleteMutation
func (db *DeleteBuilder) Where(ref engine.FieldRef, value any) engine.DeleteMutation {
	if db.err != nil {
		return db
	}
	name, err := engine.ResolveFieldName(ref)
	if err != nil {
		db.err = err
		return db
	}
	db.filters.Add(name, value)
	return db
}

// Debug implements engine.DeleteMutation
func (db *DeleteBuilder) Debug() engine.DeleteMutation {
	db.debug = enableSQL(db.debug)
	return db
}

// Err implements engine.DeleteMutation
func (db *DeleteBuilder) Err() error {
	return db.err
}

// Statement renders the statement without executing it.
func (db *DeleteBuilder) Statement() (Statement, error) {
	if db.err != nil {
		return Statement{}, db.err
	}
	return BuildDelete(db.entity, db.filters), nil
}

// Execute implements engine.DeleteMutation
func (db *DeleteBuilder) Execute(ctx context.Context) (int, error) {
	if db.executed {
		return 0, engine.ErrAlreadyExecuted
	}
	stmt, err := db.Statement()
	if err != nil {
		return 0, err
	}
	db.executed = true

	return run(ctx, db.session, db.debug, db.entity, "DELETE", stmt)
}

// ============================================================
// SHARED
// ============================================================

func run(ctx context.Context, session engine.Session, debug *engine.DebugContext, entity, op string, stmt Statement) (int, error) {
	start := time.Now()

	debug.SQL(entity, op, stmt.Text, stmt.Params)

	affected, err := Execute(ctx, session, stmt)
	if err != nil {
		return 0, err
	}

	debug.Trace(entity, op, time.Since(start), affected)
	return affected, nil
}

// enableSQL raises d to at least DebugSQL, keeping a configured trace level.
func enableSQL(d *engine.DebugContext) *engine.DebugContext {
	if d.Enabled(engine.DebugSQL) {
		return d
	}
	return d.WithLevel(engine.DebugSQL)
}
