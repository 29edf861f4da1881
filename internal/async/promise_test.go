package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromiseResolveOnce(t *testing.T) {
	p := New[int]()
	assert.False(t, p.Settled())

	assert.True(t, p.Resolve(1))
	assert.False(t, p.Resolve(2))
	assert.False(t, p.Reject(errors.New("late")))

	v, err, ok := p.Result()
	require.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPromiseRejectNilError(t *testing.T) {
	p := Rejected[string](nil)
	assert.Error(t, p.Err())
}

func TestPromiseWaitContext(t *testing.T) {
	p := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGoRecoversPanic(t *testing.T) {
	p := Go(func() (int, error) {
		panic("boom")
	})
	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrPanicked)
}

func TestLazyStartsOnce(t *testing.T) {
	var l Lazy[int]
	var starts atomic.Int32

	var wg sync.WaitGroup
	results := make([]*Promise[int], 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.Get(func() *Promise[int] {
				starts.Add(1)
				return Resolved(42)
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), starts.Load())
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}

func TestAllWaitsForEveryInput(t *testing.T) {
	a, b := New[int](), New[string]()
	all := All(a, b, nil)

	a.Resolve(1)
	select {
	case <-all.Done():
		t.Fatal("All settled before every input")
	case <-time.After(10 * time.Millisecond):
	}

	b.Resolve("x")
	_, err := all.Wait(context.Background())
	assert.NoError(t, err)
}

func TestAllRejectsOnFirstRejection(t *testing.T) {
	pending := New[int]()
	failed := New[int]()
	boom := errors.New("boom")

	all := All(pending, failed)
	failed.Reject(boom)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := all.Wait(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, pending.Settled())
}

func TestWaitAllJoinsErrors(t *testing.T) {
	e1, e2 := errors.New("one"), errors.New("two")
	err := WaitAll(context.Background(), Rejected[int](e1), Resolved(1), Rejected[int](e2))
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}
