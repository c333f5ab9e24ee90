// Package flow contains the execution engine for multi-step operations.
//
// A tree of executables is built once, out of leaf tasks and sequential
// composites, and then handed to a runner together with a run context:
//
//	ctx := context.Background()
//	wf := flow.NewWorkflow("provision",
//		flow.OnFailure[*Order](flow.Compensate),
//		flow.Steps[*Order](
//			flow.NewTask("validate", validateFn),
//			flow.NewTask("create", createFn,
//				flow.WithUndo(deleteFn),
//				flow.WithRetry[*Order](retry.NewPolicy(
//					retry.Attempts(4),
//					retry.Delay(time.Second),
//					retry.Backoff(retry.Exponential),
//				)),
//			),
//			flow.NewTask("notify", notifyFn, flow.WithTimeout[*Order](5*time.Second)),
//		),
//	)
//	outcome, err := flow.SyncRunner[*Order]{}.Run(ctx, wf, flow.NewContext(order))
//
// Execution is strictly sequential, step N's effects are fully visible to
// step N+1 and compensation runs in reverse completion order. Tasks retry
// transient failures under their policy, workflows decide what the first
// failure means: stop (Abort), keep going and aggregate (Continue) or roll
// back what completed (Compensate).
//
// Business failures never escape Execute, they are reported through the
// Outcome. The only errors a caller has to handle are compensation failures
// and concurrency-mode contract violations, both of which signal conditions
// the engine must not absorb.
package flow
