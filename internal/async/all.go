package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// All returns a promise that resolves once every input has resolved, or
// rejects with the first rejection observed. Nil inputs count as resolved.
func All(inputs ...Settler) *Promise[struct{}] {
	out := New[struct{}]()

	g, gctx := errgroup.WithContext(context.Background())
	for _, in := range inputs {
		if in == nil {
			continue
		}
		g.Go(func() error {
			select {
			case <-in.Done():
				return in.Err()
			case <-gctx.Done():
				// Another input rejected first; its error wins.
				return nil
			}
		})
	}

	go func() {
		if err := g.Wait(); err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(struct{}{})
	}()

	return out
}

// WaitAll blocks until every input has settled or ctx is done, and returns
// the errors of the rejected inputs joined in input order.
func WaitAll(ctx context.Context, inputs ...Settler) error {
	var errs []error
	for _, in := range inputs {
		if in == nil {
			continue
		}
		select {
		case <-in.Done():
			if err := in.Err(); err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("%d signals rejected: %w", len(errs), errors.Join(errs...))
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicked, r)
}
