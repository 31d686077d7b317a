package txn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellhq/quell/pkg/domain"
	"github.com/quellhq/quell/pkg/policy"
	"github.com/quellhq/quell/pkg/txn"
)

var (
	warnSuppressed = domain.FailureEvent{
		Definition: "room-not-enclosed",
		Severity:   domain.SeverityWarning,
		Message:    "Room is not in a properly enclosed region",
	}
	warnOther = domain.FailureEvent{
		Definition: "line-too-short",
		Severity:   domain.SeverityWarning,
		Message:    "Sketch line is shorter than the tolerance",
	}
	errOverlap = domain.FailureEvent{
		Definition: "walls-overlap",
		Severity:   domain.SeverityError,
		Message:    "Highlighted walls overlap",
	}
)

func directive(d domain.Directive) domain.Resolver {
	return domain.ResolverFunc(func(context.Context, domain.FailureAccessor) domain.Directive {
		return d
	})
}

func TestCommit_CleanTransaction(t *testing.T) {
	tx := txn.Begin("move walls", nil)

	report, err := tx.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txn.StateCommitted, tx.State())
	assert.Equal(t, 1, report.Passes)
	assert.Equal(t, domain.DirectiveContinue, report.Directive)
	assert.False(t, report.Forced)
}

func TestRaiseFailure_AfterClose(t *testing.T) {
	tx := txn.Begin("move walls", nil)
	_, err := tx.Commit(context.Background())
	require.NoError(t, err)

	err = tx.RaiseFailure(warnOther, false)
	assert.ErrorIs(t, err, domain.ErrTransactionClosed)

	_, err = tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransactionClosed)
}

func TestCommit_RollbackDirective(t *testing.T) {
	tx := txn.Begin("move walls", directive(domain.DirectiveProceedWithRollback))
	require.NoError(t, tx.RaiseFailure(errOverlap, false))

	report, err := tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrRolledBack)
	assert.Equal(t, txn.StateRolledBack, tx.State())
	assert.Equal(t, []domain.FailureEvent{errOverlap}, report.Escalated)
}

func TestCommit_EscalatedWarningsSurviveCommit(t *testing.T) {
	pol, err := policy.New(policy.Options{})
	require.NoError(t, err)

	tx := txn.Begin("move walls", pol)
	require.NoError(t, tx.RaiseFailure(warnOther, false))

	report, err := tx.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txn.StateCommitted, tx.State())
	// The warning was escalated, not dropped: it is visible in the report.
	assert.Equal(t, []domain.FailureEvent{warnOther}, report.Escalated)
}

func TestCommit_UserActionRequiredThenRetry(t *testing.T) {
	pol, err := policy.New(policy.Options{})
	require.NoError(t, err)

	tx := txn.Begin("move walls", pol)
	require.NoError(t, tx.RaiseFailure(errOverlap, false))

	_, err = tx.Commit(context.Background())
	require.ErrorIs(t, err, domain.ErrUserActionRequired)
	// The transaction stays open so the caller can act on the failure.
	assert.Equal(t, txn.StateActive, tx.State())

	// The user dismisses the error manually, then retries the commit.
	require.True(t, tx.Failures().Suppress(errOverlap))

	report, err := tx.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txn.StateCommitted, tx.State())
	assert.Equal(t, []domain.FailureEvent{errOverlap}, report.Suppressed)
}

func TestCommit_GuardAgainstLyingResolver(t *testing.T) {
	// A resolver that claims ProceedWithCommit without resolving the
	// pending error must not be allowed to corrupt the document.
	tx := txn.Begin("move walls", directive(domain.DirectiveProceedWithCommit))
	require.NoError(t, tx.RaiseFailure(errOverlap, false))

	_, err := tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnresolvedFailures)
	assert.Equal(t, txn.StateRolledBack, tx.State())
}

func TestCommit_ContinueWithPendingErrorRollsBack(t *testing.T) {
	tx := txn.Begin("move walls", directive(domain.DirectiveContinue))
	require.NoError(t, tx.RaiseFailure(errOverlap, false))

	_, err := tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnresolvedFailures)
	assert.Equal(t, txn.StateRolledBack, tx.State())
}

func TestCommit_ResolutionLoopBound(t *testing.T) {
	// Suppress one warning per pass and always ask to commit: with more
	// warnings than allowed passes the loop bound must trip.
	resolver := domain.ResolverFunc(func(_ context.Context, failures domain.FailureAccessor) domain.Directive {
		if pending := failures.Pending(); len(pending) > 0 {
			failures.Suppress(pending[0])
		}
		return domain.DirectiveProceedWithCommit
	})

	tx := txn.Begin("move walls", resolver, txn.WithMaxPasses(2))
	for range 5 {
		require.NoError(t, tx.RaiseFailure(warnOther, false))
	}

	report, err := tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrResolutionLoop)
	assert.Equal(t, txn.StateRolledBack, tx.State())
	assert.Equal(t, 2, report.Passes)
}

func TestCommit_MultiPassWithPolicy(t *testing.T) {
	// Batch: suppress-listed warning, resolvable error, trailing warning.
	// Pass 1 suppresses the first warning, resolves the error, and returns
	// early; pass 2 handles the tail under swallow-all and commits.
	pol, err := policy.New(policy.Options{Mode: policy.ModeSwallowAll})
	require.NoError(t, err)

	tx := txn.Begin("place rooms", pol)
	require.NoError(t, tx.RaiseFailure(warnSuppressed, false))
	require.NoError(t, tx.RaiseFailure(errOverlap, true))
	require.NoError(t, tx.RaiseFailure(warnOther, false))

	report, err := tx.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, txn.StateCommitted, tx.State())
	assert.Equal(t, 2, report.Passes)
	assert.True(t, report.Forced)
	assert.Equal(t, []domain.FailureEvent{errOverlap}, report.Resolved)
	assert.ElementsMatch(t, []domain.FailureEvent{warnSuppressed, warnOther}, report.Suppressed)
	assert.Empty(t, report.Escalated)
}

func TestCommit_UnknownDirective(t *testing.T) {
	tx := txn.Begin("move walls", directive(domain.Directive("abort")))

	_, err := tx.Commit(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransactionClosed)
	assert.Equal(t, txn.StateRolledBack, tx.State())
}

func TestRollback(t *testing.T) {
	tx := txn.Begin("move walls", nil)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, txn.StateRolledBack, tx.State())

	// Idempotent after a rollback.
	require.NoError(t, tx.Rollback())

	committed := txn.Begin("move walls", nil)
	_, err := committed.Commit(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, committed.Rollback(), domain.ErrTransactionClosed)
}
