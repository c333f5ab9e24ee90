package future_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aavendano/taskchain/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_Get(t *testing.T) {
	f := future.Do(func(context.Context) (int, error) {
		return 42, nil
	})

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFuture_GetMemoized(t *testing.T) {
	var calls int64
	f := future.Do(func(context.Context) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 1, nil
	})

	for i := 0; i < 3; i++ {
		v, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestFuture_Error(t *testing.T) {
	expected := errors.New("boom")
	f := future.Do(func(context.Context) (string, error) {
		return "", expected
	})

	_, err := f.Get()
	assert.Equal(t, expected, err)
}

func TestFuture_Cancel(t *testing.T) {
	started := make(chan struct{})
	f := future.Do(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	f.Cancel()
	_, err := f.Get()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := future.DoWithContext(ctx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	cancel()
	_, err := f.Get()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_Resolved(t *testing.T) {
	f := future.Resolved("done", nil)
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestFuture_Then(t *testing.T) {
	f := future.Do(func(context.Context) (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 21, nil
	})
	g := future.Then(f, func(_ context.Context, v int) (int, error) {
		return v * 2, nil
	})

	v, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFuture_ThenSkippedOnError(t *testing.T) {
	expected := errors.New("first failed")
	f := future.Do(func(context.Context) (int, error) {
		return 0, expected
	})

	var ran int64
	g := future.Then(f, func(_ context.Context, v int) (int, error) {
		atomic.AddInt64(&ran, 1)
		return v, nil
	})

	_, err := g.Get()
	assert.Equal(t, expected, err)
	assert.EqualValues(t, 0, atomic.LoadInt64(&ran))
}
