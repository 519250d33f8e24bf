package workflow

import (
	"context"
	"fmt"

	"github.com/ternarybob/praxis/internal/interfaces"
)

// testModule is a configurable module fixture for adapter and registry tests.
type testModule struct {
	id        string
	schema    map[string]interfaces.ParamSpec
	defaults  map[string]interface{}
	result    map[string]interface{}
	execErr   error
	execCount int
	onExecute func(signal interfaces.CancelSignal)
}

func (m *testModule) ID() string          { return m.id }
func (m *testModule) Name() string        { return m.id }
func (m *testModule) Description() string { return "test module" }
func (m *testModule) Category() string    { return "test" }

func (m *testModule) Schema() map[string]interfaces.ParamSpec {
	return m.schema
}

func (m *testModule) Defaults() map[string]interface{} {
	return m.defaults
}

func (m *testModule) Execute(ctx context.Context, execContext, params map[string]interface{}, runID string, signal interfaces.CancelSignal) (map[string]interface{}, error) {
	m.execCount++
	if m.onExecute != nil {
		m.onExecute(signal)
	}
	if m.execErr != nil {
		return nil, m.execErr
	}
	return m.result, nil
}

// selfValidatingModule overrides the schema default with its own check.
type selfValidatingModule struct {
	testModule
	validateErr error
}

func (m *selfValidatingModule) Validate(params map[string]interface{}) error {
	return m.validateErr
}

// temporalModule exposes the optional temporal capability.
type temporalModule struct {
	testModule
}

func (m *temporalModule) SupportsTemporalQueries() bool { return true }

func floatPtr(f float64) *float64 { return &f }

var errBoom = fmt.Errorf("boom")
