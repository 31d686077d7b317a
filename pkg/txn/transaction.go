package txn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quellhq/quell/pkg/domain"
)

// State tracks the transaction lifecycle.
type State string

const (
	// StateActive means edits and failures may still be raised.
	StateActive State = "active"
	// StateCommitted is terminal; the unit of work was applied.
	StateCommitted State = "committed"
	// StateRolledBack is terminal; the unit of work was discarded.
	StateRolledBack State = "rolled-back"
)

const (
	tracerName = "github.com/quellhq/quell/pkg/txn"

	// defaultMaxPasses bounds the re-validation loop so a resolver that
	// keeps forcing commits without resolving anything cannot spin the
	// commit attempt forever.
	defaultMaxPasses = 8
)

// Transaction is a bounded unit of document edits that commits or rolls
// back atomically. One resolver is registered per transaction, before the
// unit begins; the commit attempt consults it zero or more times, once per
// validation pass, always on the caller's goroutine.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	id        uuid.UUID
	name      string
	state     State
	resolver  domain.Resolver
	failures  *FailureLog
	logger    *slog.Logger
	tracer    trace.Tracer
	maxPasses int
}

// Option customises a transaction.
type Option func(*Transaction)

// WithLogger sets the transaction logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transaction) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMaxPasses overrides the re-validation loop bound.
func WithMaxPasses(n int) Option {
	return func(t *Transaction) {
		if n > 0 {
			t.maxPasses = n
		}
	}
}

// Begin starts a transaction with the given resolver. A nil resolver acts
// as pass-through: every batch yields DirectiveContinue.
func Begin(name string, resolver domain.Resolver, opts ...Option) *Transaction {
	if resolver == nil {
		resolver = domain.ResolverFunc(func(context.Context, domain.FailureAccessor) domain.Directive {
			return domain.DirectiveContinue
		})
	}

	t := &Transaction{
		id:        uuid.New(),
		name:      name,
		state:     StateActive,
		resolver:  resolver,
		failures:  NewFailureLog(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		maxPasses: defaultMaxPasses,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the transaction identifier.
func (t *Transaction) ID() uuid.UUID { return t.id }

// Name returns the transaction name.
func (t *Transaction) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Transaction) State() State { return t.state }

// Failures exposes the outstanding-failure list, e.g. for manual
// suppression after a commit attempt returned ErrUserActionRequired.
func (t *Transaction) Failures() *FailureLog { return t.failures }

// RaiseFailure records a failure event against the transaction. resolvable
// marks whether a proposed automatic fix accompanies the event.
func (t *Transaction) RaiseFailure(event domain.FailureEvent, resolvable bool) error {
	if t.state != StateActive {
		return domain.ErrTransactionClosed
	}
	t.failures.Raise(event, resolvable)
	t.logger.Debug("failure raised",
		"txn", t.name,
		"definition", event.Definition,
		"severity", event.Severity)
	return nil
}

// CommitReport describes how a commit attempt played out.
type CommitReport struct {
	TransactionID uuid.UUID
	Passes        int
	Directive     domain.Directive
	// Forced is set when the commit went through via ProceedWithCommit.
	Forced bool
	// Suppressed and Resolved list the events the resolver acted on.
	Suppressed []domain.FailureEvent
	Resolved   []domain.FailureEvent
	// Escalated lists events still outstanding at commit time; they were
	// surfaced, not dropped.
	Escalated []domain.FailureEvent
}

// Commit runs the failure-processing loop and finalizes the unit of work.
//
// Each pass snapshots the pending events and consults the resolver. The
// directive routes the attempt: Continue finalizes the commit (escalated
// warnings stay visible in the report), ProceedWithCommit triggers another
// validation pass until nothing is pending and then commits,
// ProceedWithRollback discards the unit, and WaitForUserInput leaves the
// transaction active and returns ErrUserActionRequired so the caller can
// act on t.Failures() and retry.
//
// Regardless of the directive, a commit never goes through while an
// unresolved Error-severity event is pending: that trips the guard, rolls
// the transaction back, and returns ErrUnresolvedFailures.
func (t *Transaction) Commit(ctx context.Context) (*CommitReport, error) {
	if t.state != StateActive {
		return nil, domain.ErrTransactionClosed
	}

	ctx, span := t.tracer.Start(ctx, "txn.commit", trace.WithAttributes(
		attribute.String("txn.id", t.id.String()),
		attribute.String("txn.name", t.name),
	))
	defer span.End()

	report := &CommitReport{TransactionID: t.id}

	for pass := 1; pass <= t.maxPasses; pass++ {
		report.Passes = pass
		directive := t.resolver.Resolve(ctx, t.failures)
		report.Directive = directive

		span.AddEvent("txn.resolution_pass", trace.WithAttributes(
			attribute.Int("pass", pass),
			attribute.String("directive", string(directive)),
		))

		switch directive {
		case domain.DirectiveContinue:
			if t.failures.HasPending(domain.SeverityError) {
				t.abort(report, "unresolved errors pending on continue")
				return report, domain.ErrUnresolvedFailures
			}
			return t.finalize(report), nil

		case domain.DirectiveProceedWithCommit:
			if t.failures.HasPending(domain.SeverityError) {
				// The resolver asked to commit over an unresolved
				// Error; honouring that risks corrupting the document.
				t.abort(report, "forced commit with unresolved errors")
				return report, domain.ErrUnresolvedFailures
			}
			report.Forced = true
			if len(t.failures.Pending()) > 0 {
				// The resolver returned early; re-present the
				// remaining events on the next validation pass.
				continue
			}
			return t.finalize(report), nil

		case domain.DirectiveProceedWithRollback:
			t.abort(report, "rollback directive")
			return report, domain.ErrRolledBack

		case domain.DirectiveWaitForUserInput:
			t.logger.Info("commit paused for user action",
				"txn", t.name,
				"pending", len(t.failures.Pending()))
			return report, domain.ErrUserActionRequired

		default:
			t.abort(report, "unknown directive")
			return report, fmt.Errorf("txn: unknown directive %q", directive)
		}
	}

	t.abort(report, "resolution loop exceeded")
	return report, domain.ErrResolutionLoop
}

// Rollback discards the unit of work. Safe to call after a rollback has
// already happened; rolling back a committed transaction is an error.
func (t *Transaction) Rollback() error {
	switch t.state {
	case StateRolledBack:
		return nil
	case StateCommitted:
		return domain.ErrTransactionClosed
	}
	t.state = StateRolledBack
	t.logger.Info("transaction rolled back", "txn", t.name)
	return nil
}

func (t *Transaction) finalize(report *CommitReport) *CommitReport {
	t.state = StateCommitted
	report.Suppressed = t.failures.Suppressed()
	report.Resolved = t.failures.Resolved()
	report.Escalated = t.failures.Pending()

	for _, event := range report.Escalated {
		t.logger.Warn("failure outstanding at commit",
			"txn", t.name,
			"definition", event.Definition,
			"severity", event.Severity,
			"message", event.Message)
	}

	t.logger.Info("transaction committed",
		"txn", t.name,
		"passes", report.Passes,
		"forced", report.Forced,
		"suppressed", len(report.Suppressed),
		"resolved", len(report.Resolved),
		"escalated", len(report.Escalated))
	return report
}

func (t *Transaction) abort(report *CommitReport, reason string) {
	t.state = StateRolledBack
	report.Suppressed = t.failures.Suppressed()
	report.Resolved = t.failures.Resolved()
	report.Escalated = t.failures.Pending()
	t.logger.Warn("commit aborted, transaction rolled back",
		"txn", t.name,
		"reason", reason,
		"pending", len(report.Escalated))
}
