// Package dynamic builds and runs workflows from JSON definitions, so flows
// can be assembled at request time from a registry of known steps instead of
// being wired in code.
package dynamic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aavendano/taskchain/flow"
)

// DefaultName is used when a definition does not name its flow.
const DefaultName = "DynamicFlow"

// Definition describes a workflow as data: an ordered list of step names and
// a failure strategy. Unknown strategies fall back to ABORT, unknown steps
// are an error, silently skipping work is never acceptable.
type Definition struct {
	Name     string   `json:"name"`
	Steps    []string `json:"steps"`
	Strategy string   `json:"strategy"`
}

// ParseDefinition decodes a JSON definition.
func ParseDefinition(raw []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("parse flow definition: %w", err)
	}
	return def, nil
}

// Registry maps step names to the executables a definition may reference.
type Registry[D any] map[string]flow.Executable[D]

// Register adds an executable under its own name.
func (r Registry[D]) Register(steps ...flow.Executable[D]) {
	for _, step := range steps {
		r[step.Name()] = step
	}
}

// Build resolves a definition against the registry and constructs the
// workflow.
func Build[D any](def Definition, steps Registry[D]) (*flow.Workflow[D], error) {
	name := def.Name
	if name == "" {
		name = DefaultName
	}

	strategy := flow.Abort
	if def.Strategy != "" {
		if st, err := flow.StrategyFromString(strings.ToUpper(def.Strategy)); err == nil {
			strategy = st
		}
	}

	resolved := make([]flow.Executable[D], 0, len(def.Steps))
	for _, stepName := range def.Steps {
		step, ok := steps[stepName]
		if !ok {
			return nil, fmt.Errorf("step %q not found in registry", stepName)
		}
		resolved = append(resolved, step)
	}

	return flow.NewWorkflow(name,
		flow.OnFailure[D](strategy),
		flow.Steps[D](resolved...),
	), nil
}

// Run parses a JSON definition, builds the workflow and executes it with a
// fresh run context, picking the runner that matches the flow's declared
// concurrency mode.
func Run[D any](ctx context.Context, raw []byte, data D, steps Registry[D], opts ...flow.ContextOpt[D]) (*flow.Outcome[D], error) {
	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, err
	}
	wf, err := Build(def, steps)
	if err != nil {
		return nil, err
	}
	return flow.Exec(ctx, wf, data, opts...)
}
