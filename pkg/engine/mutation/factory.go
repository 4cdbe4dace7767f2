package mutation

import "github.com/chameleon-db/bulkdml/pkg/engine"

// Factory creates the session-backed builders of this package.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// NewUpdate creates an update builder
func (f *Factory) NewUpdate(session engine.Session, entity string, debug *engine.DebugContext) engine.UpdateMutation {
	ub := NewUpdateBuilder(session, entity)
	ub.debug = debug
	return ub
}

// NewDelete creates a delete builder
func (f *Factory) NewDelete(session engine.Session, entity string, debug *engine.DebugContext) engine.DeleteMutation {
	db := NewDeleteBuilder(session, entity)
	db.debug = debug
	return db
}
