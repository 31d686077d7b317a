package domain

import "context"

// FailureAccessor exposes the host primitives a resolver needs to act on
// the current batch of pending events: enumerate them, suppress one, or
// accept one's proposed automatic fix. Mutations take effect on the
// transaction's outstanding-failure list as a side channel; the returned
// Directive is the only other observable effect of a resolution pass.
type FailureAccessor interface {
	// Pending returns a snapshot of the events still outstanding, in the
	// order they were raised. Events raised after the call are not
	// visible to the current resolution pass.
	Pending() []FailureEvent

	// Suppress marks the event intentionally ignored so it no longer
	// blocks or notifies. It reports whether a matching pending event was
	// found.
	Suppress(event FailureEvent) bool

	// Resolve accepts the event's proposed automatic fix, if any. It
	// reports false when the event has no resolution available or is no
	// longer pending.
	Resolve(event FailureEvent) bool
}

// Resolver decides, once per batch of pending failure events, what the
// transaction should do next. Implementations run synchronously on the
// transaction's goroutine and must return promptly without blocking,
// spawning work, or performing I/O: the transaction may invoke the
// resolver several times within one commit attempt.
type Resolver interface {
	Resolve(ctx context.Context, failures FailureAccessor) Directive
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, failures FailureAccessor) Directive

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, failures FailureAccessor) Directive {
	return f(ctx, failures)
}
