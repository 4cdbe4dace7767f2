package engine

import (
	"context"
	"fmt"
	"os"
)

// Engine ties a mapping to a session factory and hands out bulk mutations.
type Engine struct {
	schema   *Schema
	sessions SessionFactory

	// Debug context shared by the mutations this engine creates
	Debug *DebugContext
}

// ============================================================
// ENGINE INITIALIZATION
// ============================================================

// NewEngine creates an engine over schema. sessions may be nil for
// engines only used to generate statements.
func NewEngine(schema *Schema, sessions SessionFactory) *Engine {
	if schema == nil {
		schema = NewSchema()
	}
	return &Engine{
		schema:   schema,
		sessions: sessions,
		Debug:    DefaultDebugContext(),
	}
}

// WithDebug enables statement echo at level for every mutation
func (e *Engine) WithDebug(level DebugLevel) *Engine {
	e.Debug = &DebugContext{
		Level:       level,
		Writer:      os.Stdout,
		ColorOutput: true,
	}
	return e
}

// GetSchema returns the mapping
func (e *Engine) GetSchema() *Schema {
	return e.schema
}

// ─────────────────────────────────────────────────────────────
// Session handling
// ─────────────────────────────────────────────────────────────

// IsConnected returns true if the engine can open sessions
func (e *Engine) IsConnected() bool {
	return e.sessions != nil
}

// OpenSession opens a new unit of work
func (e *Engine) OpenSession(ctx context.Context) (Session, error) {
	if e.sessions == nil {
		return nil, ErrNotConnected
	}
	return e.sessions.OpenSession(ctx)
}

// Close releases the session factory
func (e *Engine) Close() error {
	if e.sessions == nil {
		return nil
	}
	err := e.sessions.Close()
	e.sessions = nil
	return err
}

// ─────────────────────────────────────────────────────────────
// Mutation API (uses registry pattern)
// ─────────────────────────────────────────────────────────────

// Update starts a bulk UPDATE of entity within session
func (e *Engine) Update(session Session, entity string) UpdateMutation {
	ent, err := e.schema.LookupEntity(entity)
	if err != nil {
		return newInvalidUpdateMutation(err)
	}
	factory := getMutationFactory()
	if factory == nil {
		return newInvalidUpdateMutation(errNoFactory)
	}
	return factory.NewUpdate(session, ent.Name, e.Debug)
}

// Delete starts a bulk DELETE of entity within session
func (e *Engine) Delete(session Session, entity string) DeleteMutation {
	ent, err := e.schema.LookupEntity(entity)
	if err != nil {
		return newInvalidDeleteMutation(err)
	}
	factory := getMutationFactory()
	if factory == nil {
		return newInvalidDeleteMutation(errNoFactory)
	}
	return factory.NewDelete(session, ent.Name, e.Debug)
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine{entities: %v, connected: %t}", e.schema.EntityNames(), e.IsConnected())
}
