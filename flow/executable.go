package flow

import "context"

// Func is the unit of user logic wrapped by a task. It may mutate the run
// context's Data freely. A returned error marks the attempt as failed.
type Func[D any] func(ctx context.Context, run *Context[D]) error

// UndoFunc reverts the effects of a previously successful task.
type UndoFunc[D any] func(ctx context.Context, run *Context[D]) error

// An Executable is a unit in the composite tree: a leaf task or a sequential
// composite. Execute must be total for business failures, they are reported
// through the outcome, never through the error. The error return carries
// only compensation failures and concurrency-mode contract violations.
type Executable[D any] interface {
	// Name identifies this unit in the trace and the completed-step set
	Name() string
	// IsAsync reports the concurrency mode, fixed at construction
	IsAsync() bool
	// Execute runs the unit against the shared run context
	Execute(ctx context.Context, run *Context[D]) (Result[D], error)
	// Compensate rolls back the effects of a previously successful execute
	Compensate(ctx context.Context, run *Context[D]) Completion
}

// resolveChild normalizes a child result for a composite running in the
// given mode. In blocking mode a pending result is a contract violation, in
// cooperative mode it is awaited.
func resolveChild[D any](res Result[D], await bool, childName string) (*Outcome[D], error) {
	if !res.IsPending() {
		return res.Outcome(), nil
	}
	if !await {
		return nil, &ContractError{
			Step:   childName,
			Reason: "returned a pending result in a blocking composite, use AsyncRunner",
		}
	}
	return res.Await()
}

// resolveCompletion does the same for compensations.
func resolveCompletion(comp Completion, await bool, childName string) error {
	if !comp.IsPending() {
		return comp.Err()
	}
	if !await {
		return &ContractError{
			Step:   childName,
			Reason: "returned a pending compensation in a blocking composite, use AsyncRunner",
		}
	}
	return comp.Await()
}
