// -----------------------------------------------------------------------
// Action Registry - Name-keyed invocation table for workflow actions
// -----------------------------------------------------------------------

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
)

// Registry implements interfaces.ActionRegistry. The name->action table is
// mutated only at startup/registration time; execution takes a read lock.
type Registry struct {
	actions map[string]interfaces.Action
	catalog interfaces.ModuleCatalog
	logger  arbor.ILogger
	mu      sync.RWMutex
}

// NewRegistry creates an action registry. The catalog is optional; without
// it RegisterModuleFromCatalog fails.
func NewRegistry(catalog interfaces.ModuleCatalog, logger arbor.ILogger) *Registry {
	return &Registry{
		actions: make(map[string]interfaces.Action),
		catalog: catalog,
		logger:  logger,
	}
}

// Register binds an action under name, overwriting any existing binding.
func (r *Registry) Register(name string, action interfaces.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		r.logger.Warn().
			Str("action", name).
			Msg("Overwriting existing action registration")
	}
	r.actions[name] = action

	r.logger.Debug().
		Str("action", name).
		Msg("Action registered")
}

// RegisterModule wraps a module via the adapter and registers it. A wrap
// failure (malformed module) is a service-unavailable-class error naming the
// module id and action name.
func (r *Registry) RegisterModule(name string, module interfaces.Module) error {
	action, err := ToAction(module, r.logger)
	if err != nil {
		moduleID := "<nil>"
		if module != nil {
			moduleID = module.ID()
		}
		return fmt.Errorf("action %s unavailable: failed to adapt module %s: %w", name, moduleID, err)
	}

	r.Register(name, action)
	return nil
}

// RegisterModuleFromCatalog looks up a module by id in the module catalog
// and registers it under name.
func (r *Registry) RegisterModuleFromCatalog(name string, moduleID string) error {
	if r.catalog == nil {
		return fmt.Errorf("action %s unavailable: no module catalog configured", name)
	}

	module, err := r.catalog.GetModule(moduleID)
	if err != nil {
		return fmt.Errorf("failed to register action %s: %w", name, err)
	}

	return r.RegisterModule(name, module)
}

// Execute resolves the action by name and invokes it. The result may be nil,
// signifying "no context change".
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}, runID string, signal interfaces.CancelSignal) (map[string]interface{}, error) {
	r.mu.RLock()
	action, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		// Listing the known names here is critical for debuggability.
		names := r.Names()
		return nil, fmt.Errorf("%w: %s (registered actions: [%s])",
			interfaces.ErrActionNotFound, name, strings.Join(names, ", "))
	}

	r.logger.Debug().
		Str("action", name).
		Str("run_id", runID).
		Msg("Executing action")

	return action(ctx, params, runID, signal)
}

// Names returns the sorted list of registered action names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
