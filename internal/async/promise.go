// Package async provides one-shot completion signals used to coordinate
// package loading and activation.
//
// A Promise settles exactly once, either resolved with a value or rejected
// with an error. Waiters observe the settlement through Done or Wait.
// Lazy wraps the creation of a Promise so the work that settles it is
// started at most once, and All combines several promises into one that
// settles after every input has settled, or as soon as one rejects.
package async

import (
	"context"
	"errors"
	"sync"
)

// ErrPanicked is wrapped by the error of a promise whose producer panicked.
var ErrPanicked = errors.New("async: producer panicked")

// Settler is the read side shared by promises of any value type.
type Settler interface {
	// Done is closed once the promise has settled.
	Done() <-chan struct{}

	// Err returns the rejection error, or nil if the promise resolved or
	// has not settled yet.
	Err() error
}

// Promise is a one-shot completion signal carrying a value of type T.
// The zero value is not usable; use New, Resolved, Rejected or Go.
type Promise[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates an unsettled promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved returns a promise already resolved with v.
func Resolved[T any](v T) *Promise[T] {
	p := New[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](err error) *Promise[T] {
	p := New[T]()
	p.Reject(err)
	return p
}

// Go runs fn on a new goroutine and settles the returned promise with its
// result. A panic in fn rejects the promise.
func Go[T any](fn func() (T, error)) *Promise[T] {
	p := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Reject(panicError(r))
			}
		}()
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve settles the promise with v. It reports whether this call settled
// the promise; later calls are ignored.
func (p *Promise[T]) Resolve(v T) bool {
	settled := false
	p.once.Do(func() {
		p.value = v
		close(p.done)
		settled = true
	})
	return settled
}

// Reject settles the promise with err. A nil err is replaced so that a
// rejected promise always reports an error.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = errors.New("async: rejected with nil error")
	}
	settled := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed when the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Err returns the rejection error once settled.
func (p *Promise[T]) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Settled reports whether the promise has settled.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. ok is false while the promise
// is still pending.
func (p *Promise[T]) Result() (v T, err error, ok bool) {
	select {
	case <-p.done:
		return p.value, p.err, true
	default:
		return v, nil, false
	}
}

// Wait blocks until the promise settles or ctx is done.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Lazy starts the work behind a promise at most once.
type Lazy[T any] struct {
	once sync.Once
	p    *Promise[T]
}

// Get returns the memoized promise, calling start to create it on the first
// call only. Concurrent callers block until start returns.
func (l *Lazy[T]) Get(start func() *Promise[T]) *Promise[T] {
	l.once.Do(func() {
		l.p = start()
	})
	return l.p
}

// Peek returns the memoized promise, or nil if Get has not been called.
// It must not race with the first Get.
func (l *Lazy[T]) Peek() *Promise[T] {
	return l.p
}
