package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrActionCancelled is returned when a cancellation signal fires around
	// action execution. Cancellation is a control outcome, distinct from
	// validation or infrastructure failures; callers check with errors.Is.
	ErrActionCancelled = errors.New("action cancelled")

	// ErrActionNotFound is returned when executing an unregistered action name.
	ErrActionNotFound = errors.New("action not registered")

	// ErrModuleNotFound is returned by catalog lookups for unknown module ids.
	ErrModuleNotFound = errors.New("module not found")
)

// CancelSignal is a caller-supplied cooperative abort flag. It has no other
// contract: the adapter checks it before validation, after validation, and
// after execution.
type CancelSignal interface {
	Aborted() bool
}

// Action is a named, invocable unit of work. It returns a partial context
// map the caller merges into the running workflow context; a nil map means
// "no context change".
type Action func(ctx context.Context, params map[string]interface{}, runID string, signal CancelSignal) (map[string]interface{}, error)

// ActionRegistry adapts modules (or directly-registered function actions)
// into a name-keyed invocation table.
type ActionRegistry interface {
	// Register binds an action under name. Replacing a name overwrites the
	// binding (last-write-wins, no versioning).
	Register(name string, action Action)

	// RegisterModule wraps a module into an action and registers it.
	RegisterModule(name string, module Module) error

	// RegisterModuleFromCatalog looks up a module by id in the catalog and
	// registers it under name.
	RegisterModuleFromCatalog(name string, moduleID string) error

	// Execute resolves the action by name and invokes it. An unknown name
	// fails with ErrActionNotFound; the error detail includes the full list
	// of registered names.
	Execute(ctx context.Context, name string, params map[string]interface{}, runID string, signal CancelSignal) (map[string]interface{}, error)

	// Names returns the sorted list of registered action names.
	Names() []string
}
