package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/praxis/internal/interfaces"
)

// Catalog is an in-process module catalog. Modules are registered once at
// process start and treated as immutable thereafter.
type Catalog struct {
	modules map[string]interfaces.Module
	mu      sync.RWMutex
}

// NewCatalog creates an empty module catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		modules: make(map[string]interfaces.Module),
	}
}

// Add registers a module under its own ID.
func (c *Catalog) Add(module interfaces.Module) error {
	if module == nil {
		return fmt.Errorf("module cannot be nil")
	}
	if module.ID() == "" {
		return fmt.Errorf("module ID is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[module.ID()] = module
	return nil
}

// GetModule returns the module registered under id.
func (c *Catalog) GetModule(id string) (interfaces.Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	module, ok := c.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrModuleNotFound, id)
	}
	return module, nil
}

// ListModules returns all registered modules sorted by id.
func (c *Catalog) ListModules() []interfaces.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]interfaces.Module, 0, len(c.modules))
	for _, m := range c.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
