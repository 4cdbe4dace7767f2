// engine/registry.go
package engine

import "fmt"

var mutationFactory MutationFactory

// RegisterMutationFactory installs the builder factory. The first non-nil
// registration wins.
func RegisterMutationFactory(factory MutationFactory) {
	if factory == nil {
		return
	}
	if mutationFactory == nil {
		mutationFactory = factory
	}
}

func getMutationFactory() MutationFactory {
	return mutationFactory
}

// BeginUpdate starts a bulk update of entity on session.
func BeginUpdate(session Session, entity string) UpdateMutation {
	factory := getMutationFactory()
	if factory == nil {
		return newInvalidUpdateMutation(errNoFactory)
	}
	return factory.NewUpdate(session, entity, nil)
}

// BeginDelete starts a bulk delete of entity on session.
func BeginDelete(session Session, entity string) DeleteMutation {
	factory := getMutationFactory()
	if factory == nil {
		return newInvalidDeleteMutation(errNoFactory)
	}
	return factory.NewDelete(session, entity, nil)
}

var errNoFactory = fmt.Errorf("no mutation factory registered - import github.com/chameleon-db/bulkdml/pkg/engine/mutation")
