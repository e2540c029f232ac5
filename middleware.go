package backstop

import "context"

// Pattern: Decorator — each recovery pattern wraps the next, forming a
// composable chain where order determines execution semantics. This is the
// explicit replacement for annotation-style retry wrapping: policies are
// assembled from higher-order functions at the call site.

// Middleware wraps a function call with additional behavior. Each
// middleware receives the next function in the chain and returns a wrapped
// version.
type Middleware[T any] func(next func(context.Context) (T, error)) func(context.Context) (T, error)

// Chain composes multiple middlewares into one. Middlewares are applied in
// order: the first is the outermost wrapper.
//
// Chain(a, b, c) produces a(b(c(next))). Chain() with zero middlewares
// returns an identity middleware.
func Chain[T any](middlewares ...Middleware[T]) Middleware[T] {
	return func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}
