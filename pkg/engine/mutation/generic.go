package mutation

import (
	"reflect"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// Update starts a bulk UPDATE of T. The entity name is T's type name:
//
//	n, err := mutation.Update[Car](s).
//		SetProperty(engine.Prop("Year"), 2001).
//		Where(engine.FieldOf(func(c *Car) any { return &c.Id }), 1).
//		Execute(ctx)
func Update[T any](session engine.Session) *UpdateBuilder {
	return NewUpdateBuilder(session, EntityName[T]())
}

// Delete starts a bulk DELETE of T.
func Delete[T any](session engine.Session) *DeleteBuilder {
	return NewDeleteBuilder(session, EntityName[T]())
}

// EntityName is the mapped entity name of T (pointers are dereferenced).
func EntityName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
