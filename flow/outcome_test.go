package flow_test

import (
	"testing"

	"github.com/aavendano/taskchain/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeErrFoldsCollectedFailures(t *testing.T) {
	run := flow.NewContext(&order{})

	clean := &flow.Outcome[*order]{Status: flow.Success, Context: run}
	assert.NoError(t, clean.Err())
	assert.True(t, clean.Succeeded())

	failed := &flow.Outcome[*order]{
		Status:  flow.Failed,
		Context: run,
		Errors: []error{
			&flow.ExecutionError{Step: "charge", Attempts: 3, Cause: assert.AnError},
			&flow.ExecutionError{Step: "notify", Attempts: 1, Cause: assert.AnError},
		},
	}
	err := failed.Err()
	require.Error(t, err)
	assert.False(t, failed.Succeeded())
	assert.Contains(t, err.Error(), "charge")
	assert.Contains(t, err.Error(), "notify")
	assert.ErrorIs(t, err, flow.ErrExecution)
}

func TestStatusTextRoundTrip(t *testing.T) {
	for _, st := range []flow.Status{flow.Success, flow.Failed, flow.Aborted} {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var parsed flow.Status
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, st, parsed)
	}

	_, err := flow.StatusFromString("MAYBE")
	assert.Error(t, err)
}

func TestErrorKindMatching(t *testing.T) {
	exec := &flow.ExecutionError{Step: "charge", Attempts: 2, Cause: assert.AnError}
	assert.ErrorIs(t, exec, flow.ErrExecution)
	assert.NotErrorIs(t, exec, flow.ErrTimeout)

	timeout := &flow.TimeoutError{Step: "charge"}
	assert.ErrorIs(t, timeout, flow.ErrTimeout)
	assert.ErrorIs(t, timeout, flow.ErrExecution)

	composite := &flow.CompositeError{Composite: "checkout", Cause: assert.AnError}
	assert.ErrorIs(t, composite, flow.ErrComposite)

	comp := &flow.CompensationError{Step: "create", Cause: assert.AnError}
	assert.True(t, flow.IsCompensationFailure(comp))
	assert.False(t, flow.IsContractViolation(comp))

	contract := &flow.ContractError{Step: "fetch", Reason: "pending in blocking mode"}
	assert.True(t, flow.IsContractViolation(contract))
	assert.False(t, flow.IsCompensationFailure(contract))
}
