// -----------------------------------------------------------------------
// Module -> Action Adapter - Wraps a module into a cancellable action
// -----------------------------------------------------------------------

package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
	"github.com/ternarybob/praxis/internal/models"
)

// ToAction adapts a module into an action via the fixed wrapping rule:
//
//  1. Fail immediately with a cancellation error if the signal already fired
//     (no partial execution).
//  2. Validate params; on invalid, fail with the validator's error and never
//     call Execute.
//  3. Re-check cancellation (validation may have taken time).
//  4. Execute with the full merged parameter map as both context and params.
//  5. Re-check cancellation: even a successful result is discarded as a
//     cancellation if the signal fired during execution.
//
// The merged map is module defaults with caller params layered on top.
func ToAction(module interfaces.Module, logger arbor.ILogger) (interfaces.Action, error) {
	if module == nil {
		return nil, fmt.Errorf("module cannot be nil")
	}
	if module.ID() == "" {
		return nil, fmt.Errorf("module ID is required")
	}

	return func(ctx context.Context, params map[string]interface{}, runID string, signal interfaces.CancelSignal) (map[string]interface{}, error) {
		if signal != nil && signal.Aborted() {
			return nil, fmt.Errorf("%w before validation: module %s", interfaces.ErrActionCancelled, module.ID())
		}

		merged := models.MergeContext(models.MergeContext(nil, module.Defaults()), params)

		if err := validateModuleParams(module, merged); err != nil {
			return nil, fmt.Errorf("module %s: %w", module.ID(), err)
		}

		if signal != nil && signal.Aborted() {
			return nil, fmt.Errorf("%w after validation: module %s", interfaces.ErrActionCancelled, module.ID())
		}

		result, err := module.Execute(ctx, merged, merged, runID, signal)
		if err != nil {
			return nil, fmt.Errorf("module %s execution failed: %w", module.ID(), err)
		}

		// The signal may have fired while Execute was running; the result
		// must be discarded, not applied to the context.
		if signal != nil && signal.Aborted() {
			logger.Debug().
				Str("module_id", module.ID()).
				Str("run_id", runID).
				Msg("Discarding module result - cancelled during execution")
			return nil, fmt.Errorf("%w during execution: module %s", interfaces.ErrActionCancelled, module.ID())
		}

		return result, nil
	}, nil
}

// validateModuleParams applies the module's own validation when it has one,
// otherwise the schema-driven default.
func validateModuleParams(module interfaces.Module, params map[string]interface{}) error {
	if v, ok := module.(interfaces.SelfValidating); ok {
		return v.Validate(params)
	}
	return ValidateAgainstSchema(module.Schema(), params)
}
