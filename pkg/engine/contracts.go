package engine

import "context"

// ============================================================
// SESSION CONTRACTS
// ============================================================

// Session is the unit of work a bulk mutation runs against. It is owned by
// the caller: mutations never open, close or share it across goroutines.
type Session interface {
	// Flush writes pending in-memory changes to the store without ending
	// the transaction.
	Flush(ctx context.Context) error

	// Clear discards every tracked entity and pending change.
	Clear() error

	// CreateQuery prepares a statement in the session's query language.
	CreateQuery(statement string) (PreparedQuery, error)
}

// PreparedQuery is a parsed statement waiting for its named parameters.
type PreparedQuery interface {
	// SetParameter binds value to the named placeholder (without the colon).
	SetParameter(name string, value any) error

	// ExecuteUpdate runs the statement and returns the affected row count.
	ExecuteUpdate(ctx context.Context) (int, error)
}

// SessionFactory opens sessions bound to one store and one mapping.
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
	Close() error
}

// ============================================================
// MUTATION BUILDER INTERFACES
// ============================================================

// UpdateMutation builds and executes a bulk UPDATE.
//
// A builder belongs to one goroutine and one Execute call. Methods record
// clauses and return the same builder; concurrent use is a data race.
type UpdateMutation interface {
	// SetProperty adds an assignment (SET clause)
	SetProperty(ref FieldRef, value any) UpdateMutation

	// Where adds an equality filter (WHERE clause)
	Where(ref FieldRef, value any) UpdateMutation

	// Debug enables statement echo for this mutation
	Debug() UpdateMutation

	// Err returns the first reference that failed to resolve, if any
	Err() error

	// Execute flushes and clears the session, then runs the statement
	Execute(ctx context.Context) (int, error)
}

// DeleteMutation builds and executes a bulk DELETE. Without filters it
// deletes every row of the entity.
type DeleteMutation interface {
	// Where adds an equality filter (WHERE clause)
	Where(ref FieldRef, value any) DeleteMutation

	// Debug enables statement echo for this mutation
	Debug() DeleteMutation

	// Err returns the first reference that failed to resolve, if any
	Err() error

	// Execute flushes and clears the session, then runs the statement
	Execute(ctx context.Context) (int, error)
}

// ============================================================
// FACTORY
// ============================================================

// MutationFactory creates mutation builders.
//
// The factory is stateless and registered once via init() in the mutation
// package, which keeps engine free of an import on mutation.
type MutationFactory interface {
	NewUpdate(session Session, entity string, debug *DebugContext) UpdateMutation
	NewDelete(session Session, entity string, debug *DebugContext) DeleteMutation
}
