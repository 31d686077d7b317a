package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quellhq/quell/pkg/domain"
)

var (
	warnEvent = domain.FailureEvent{
		Definition: "room-not-enclosed",
		Severity:   domain.SeverityWarning,
		Message:    "Room is not in a properly enclosed region",
	}
	errEvent = domain.FailureEvent{
		Definition: "walls-overlap",
		Severity:   domain.SeverityError,
		Message:    "Highlighted walls overlap",
	}
)

func TestFailureLog_RaiseAndPending(t *testing.T) {
	log := NewFailureLog()
	assert.Empty(t, log.Pending())

	log.Raise(warnEvent, false)
	log.Raise(errEvent, true)

	assert.Equal(t, []domain.FailureEvent{warnEvent, errEvent}, log.Pending())
}

func TestFailureLog_Suppress(t *testing.T) {
	log := NewFailureLog()
	log.Raise(warnEvent, false)

	assert.True(t, log.Suppress(warnEvent))
	assert.Empty(t, log.Pending())
	assert.Equal(t, []domain.FailureEvent{warnEvent}, log.Suppressed())

	// Already handled: reports false instead of double-counting.
	assert.False(t, log.Suppress(warnEvent))
	assert.Len(t, log.Suppressed(), 1)
}

func TestFailureLog_SuppressFirstPendingOnly(t *testing.T) {
	log := NewFailureLog()
	log.Raise(warnEvent, false)
	log.Raise(warnEvent, false)

	assert.True(t, log.Suppress(warnEvent))
	assert.Equal(t, []domain.FailureEvent{warnEvent}, log.Pending())
}

func TestFailureLog_Resolve(t *testing.T) {
	log := NewFailureLog()
	log.Raise(errEvent, true)
	log.Raise(warnEvent, false)

	assert.True(t, log.Resolve(errEvent))
	assert.Equal(t, []domain.FailureEvent{errEvent}, log.Resolved())

	// No proposed fix attached: Resolve must refuse.
	assert.False(t, log.Resolve(warnEvent))
	assert.Equal(t, []domain.FailureEvent{warnEvent}, log.Pending())
}

func TestFailureLog_HasPending(t *testing.T) {
	log := NewFailureLog()
	log.Raise(warnEvent, false)

	assert.True(t, log.HasPending(domain.SeverityWarning))
	assert.False(t, log.HasPending(domain.SeverityError))

	log.Raise(errEvent, false)
	assert.True(t, log.HasPending(domain.SeverityError))

	log.Suppress(warnEvent)
	log.Suppress(errEvent)
	assert.False(t, log.HasPending(domain.SeverityInformation))
}
