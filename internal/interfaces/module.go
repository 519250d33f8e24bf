package interfaces

import (
	"context"
)

// ParamType identifies the declared type of a module parameter.
type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeNumber  ParamType = "number"
	ParamTypeBoolean ParamType = "boolean"
	ParamTypeArray   ParamType = "array"
)

// ParamSpec describes a single field of a module's parameter schema.
type ParamSpec struct {
	Type     ParamType   `json:"type"`
	Label    string      `json:"label"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
	Min      *float64    `json:"min,omitempty"` // Numeric lower bound, inclusive
	Max      *float64    `json:"max,omitempty"` // Numeric upper bound, inclusive
}

// Module is the closed contract every unit of work implements. Modules are
// stateless descriptor+behaviour bundles: registered once at startup and
// treated as immutable thereafter. A module is adapted into exactly one
// Action by the workflow registry.
type Module interface {
	// ID returns the catalog identifier of the module.
	ID() string

	// Name returns the human-readable module name.
	Name() string

	// Description returns a short description of what the module does.
	Description() string

	// Category returns the module grouping (e.g. "search", "extract").
	Category() string

	// Schema returns the per-field parameter schema.
	Schema() map[string]ParamSpec

	// Defaults returns the default parameter values merged under caller params.
	Defaults() map[string]interface{}

	// Execute runs the module. The adapter passes the full merged parameter
	// map as both execContext and params; modules read whichever shape suits
	// them. The returned map is a partial context the caller merges into the
	// running workflow context. A nil result means "no context change".
	Execute(ctx context.Context, execContext, params map[string]interface{}, runID string, signal CancelSignal) (map[string]interface{}, error)
}

// SelfValidating is an optional capability for modules that implement their
// own parameter validation. Modules without it get schema-driven default
// validation from the adapter.
type SelfValidating interface {
	// Validate checks params before execution. All violations should be
	// collected into a single error, not fail-fast per field.
	Validate(params map[string]interface{}) error
}

// TemporalCapable is an optional capability for modules that can answer
// time-scoped queries. Capability probing happens through this sub-interface,
// never through runtime property inspection.
type TemporalCapable interface {
	SupportsTemporalQueries() bool
}

// ModuleCatalog is a name->Module lookup used by RegisterModuleFromCatalog.
type ModuleCatalog interface {
	// GetModule returns the module registered under id, or ErrModuleNotFound.
	GetModule(id string) (Module, error)

	// ListModules returns all registered modules.
	ListModules() []Module
}
