package domain

import (
	"fmt"
	"strings"
)

// DefinitionID identifies a failure definition registered with the host.
// The set of definitions is open: hosts mint their own identifiers, and an
// unrecognised value is still a valid DefinitionID.
type DefinitionID string

// Severity grades how serious a failure event is. Severities are ordered:
// Information < Warning < Error.
type Severity string

const (
	// SeverityInformation marks events that never block a commit.
	SeverityInformation Severity = "information"
	// SeverityWarning marks events that may be suppressed by policy.
	SeverityWarning Severity = "warning"
	// SeverityError marks events that must be resolved or escalated;
	// an Error is never silently dropped.
	SeverityError Severity = "error"
)

var severityRanks = map[Severity]int{
	SeverityInformation: 0,
	SeverityWarning:     1,
	SeverityError:       2,
}

// Rank returns the ordering position of the severity. Unknown severities
// rank above Error so that a malformed event can never slip past an
// Error-only check.
func (s Severity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return severityRanks[SeverityError] + 1
}

// IsValid reports whether the severity is one of the recognised levels.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// ParseSeverity converts a textual representation into a Severity constant.
func ParseSeverity(value string) (Severity, error) {
	sev := Severity(strings.TrimSpace(strings.ToLower(value)))
	if sev == "" {
		return "", fmt.Errorf("severity is required")
	}
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity %q", value)
	}
	return sev, nil
}

// FailureEvent is a single condition raised during a transactional edit.
// Events are immutable once raised; the transaction owns them for the
// duration of a failure-processing pass and resolvers must not retain
// them beyond that pass.
type FailureEvent struct {
	Definition DefinitionID
	Severity   Severity
	Message    string
}

// String renders the event for logs and CLI output.
func (e FailureEvent) String() string {
	return fmt.Sprintf("%s[%s]: %s", e.Definition, e.Severity, e.Message)
}

// Directive is the aggregate instruction a resolver hands back to the
// transaction after processing one batch of pending events.
type Directive string

const (
	// DirectiveContinue signals that the resolver has nothing further to
	// do; the transaction proceeds normally.
	DirectiveContinue Directive = "continue"
	// DirectiveProceedWithCommit forces the commit to go ahead despite
	// unresolved items. Issuing it while an unresolved Error remains
	// pending is a contract violation the transaction guards against.
	DirectiveProceedWithCommit Directive = "proceed-with-commit"
	// DirectiveProceedWithRollback aborts the enclosing transactional step.
	DirectiveProceedWithRollback Directive = "proceed-with-rollback"
	// DirectiveWaitForUserInput surfaces the pending events for explicit
	// resolution; the transaction stays open.
	DirectiveWaitForUserInput Directive = "wait-for-user-input"
)

// IsValid reports whether the directive is part of the resolver vocabulary.
func (d Directive) IsValid() bool {
	switch d {
	case DirectiveContinue, DirectiveProceedWithCommit,
		DirectiveProceedWithRollback, DirectiveWaitForUserInput:
		return true
	default:
		return false
	}
}
