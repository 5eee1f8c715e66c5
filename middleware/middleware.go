package middleware

import (
	"context"

	"github.com/xraph/docsync/syncjob"
)

// Handler runs the controller for the job the chain was built for.
type Handler func(ctx context.Context) error

// Middleware sees the job under execution and decides whether and how to
// call next.
type Middleware func(ctx context.Context, j *syncjob.Job, next Handler) error

// Chain composes mws so that mws[0] is outermost. Chain(a, b)(ctx, j, h)
// runs a, then b, then h.
func Chain(mws ...Middleware) Middleware {
	if len(mws) == 1 {
		return mws[0]
	}
	return func(ctx context.Context, j *syncjob.Job, next Handler) error {
		return wrap(mws, j, next)(ctx)
	}
}

func wrap(mws []Middleware, j *syncjob.Job, h Handler) Handler {
	if len(mws) == 0 {
		return h
	}
	inner := wrap(mws[1:], j, h)
	return func(ctx context.Context) error {
		return mws[0](ctx, j, inner)
	}
}
