package txn

import "github.com/quellhq/quell/pkg/domain"

type entryStatus int

const (
	statusPending entryStatus = iota
	statusSuppressed
	statusResolved
)

type failureEntry struct {
	event      domain.FailureEvent
	resolvable bool
	status     entryStatus
}

// FailureLog is a transaction's outstanding-failure list. It implements
// domain.FailureAccessor: suppressing or resolving an event removes it from
// the pending set as a side channel of the resolution pass.
//
// The log is owned by a single transaction and is not safe for concurrent
// use; the resolver runs on the transaction's goroutine by construction.
type FailureLog struct {
	entries []*failureEntry
}

// NewFailureLog creates an empty log.
func NewFailureLog() *FailureLog {
	return &FailureLog{}
}

// Raise appends an event. resolvable marks whether the host supplied a
// proposed automatic fix that Resolve may accept.
func (l *FailureLog) Raise(event domain.FailureEvent, resolvable bool) {
	l.entries = append(l.entries, &failureEntry{event: event, resolvable: resolvable})
}

// Pending returns a snapshot of the outstanding events in raise order.
func (l *FailureLog) Pending() []domain.FailureEvent {
	pending := make([]domain.FailureEvent, 0, len(l.entries))
	for _, e := range l.entries {
		if e.status == statusPending {
			pending = append(pending, e.event)
		}
	}
	return pending
}

// Suppress marks the first pending occurrence of the event intentionally
// ignored. Suppressing an event that is no longer pending reports false,
// which makes repeated passes over the same batch idempotent.
func (l *FailureLog) Suppress(event domain.FailureEvent) bool {
	if e := l.findPending(event); e != nil {
		e.status = statusSuppressed
		return true
	}
	return false
}

// Resolve accepts the event's proposed automatic fix. It reports false when
// the event carries no resolution or is no longer pending.
func (l *FailureLog) Resolve(event domain.FailureEvent) bool {
	if e := l.findPending(event); e != nil && e.resolvable {
		e.status = statusResolved
		return true
	}
	return false
}

// HasPending reports whether any outstanding event has at least the given
// severity.
func (l *FailureLog) HasPending(min domain.Severity) bool {
	for _, e := range l.entries {
		if e.status == statusPending && e.event.Severity.Rank() >= min.Rank() {
			return true
		}
	}
	return false
}

// Suppressed returns the events suppressed so far, in raise order.
func (l *FailureLog) Suppressed() []domain.FailureEvent {
	return l.collect(statusSuppressed)
}

// Resolved returns the events whose fixes were accepted, in raise order.
func (l *FailureLog) Resolved() []domain.FailureEvent {
	return l.collect(statusResolved)
}

func (l *FailureLog) collect(status entryStatus) []domain.FailureEvent {
	var events []domain.FailureEvent
	for _, e := range l.entries {
		if e.status == status {
			events = append(events, e.event)
		}
	}
	return events
}

func (l *FailureLog) findPending(event domain.FailureEvent) *failureEntry {
	for _, e := range l.entries {
		if e.status == statusPending && e.event == event {
			return e
		}
	}
	return nil
}
