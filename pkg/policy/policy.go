package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/quellhq/quell/pkg/domain"
)

// Mode indicates what happens to a Warning no suppression rule matches.
type Mode string

const (
	// ModeEscalate leaves unmatched warnings on the outstanding list for
	// the host to surface. This is the default.
	ModeEscalate Mode = "escalate"
	// ModeSwallowAll suppresses every warning unconditionally.
	ModeSwallowAll Mode = "swallow-all"
)

// ParseMode converts a textual representation into a Mode constant.
func ParseMode(value string) (Mode, error) {
	mode := Mode(strings.TrimSpace(strings.ToLower(value)))
	if mode == "" {
		return "", errors.New("mode is required")
	}
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid mode %q", value)
	}
	return mode, nil
}

// IsValid reports whether the mode is recognised.
func (m Mode) IsValid() bool {
	switch m {
	case ModeEscalate, ModeSwallowAll:
		return true
	default:
		return false
	}
}

// RuleSource answers whether a suppression rule matches a given event.
// Implementations must be deterministic and side-effect free; a Policy may
// consult the source several times for the same event across re-validation
// passes.
type RuleSource interface {
	Match(ctx context.Context, event domain.FailureEvent) (bool, error)
}

// Options configure a Policy.
type Options struct {
	// Mode selects the default treatment of unmatched warnings.
	// Empty selects ModeEscalate.
	Mode Mode
	// Suppress lists failure definitions whose Warning-severity events are
	// suppressed on exact match.
	Suppress []domain.DefinitionID
	// Rules is an optional additional rule source (for example Rego-backed
	// rules). A rule-source error is treated as "no match", never a fault.
	Rules RuleSource
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Metrics is optional; when nil no metrics are recorded.
	Metrics *Metrics
}

// Policy is the failure interceptor: registered on a transactional unit of
// work and consulted once per batch of pending failure events. It is
// stateless across invocations; the configured suppress-list is an
// immutable snapshot taken at construction time.
type Policy struct {
	mode     Mode
	suppress map[domain.DefinitionID]struct{}
	rules    RuleSource
	logger   *slog.Logger
	metrics  *Metrics
}

// New constructs a Policy from the supplied options. An empty suppress-list
// is valid and degrades to escalating every unmatched event.
func New(opts Options) (*Policy, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeEscalate
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("policy: invalid mode %q", opts.Mode)
	}

	suppress := make(map[domain.DefinitionID]struct{}, len(opts.Suppress))
	for _, id := range opts.Suppress {
		if strings.TrimSpace(string(id)) == "" {
			return nil, errors.New("policy: empty suppress-list entry")
		}
		suppress[id] = struct{}{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Policy{
		mode:     mode,
		suppress: suppress,
		rules:    opts.Rules,
		logger:   logger,
		metrics:  opts.Metrics,
	}, nil
}

// Mode returns the configured default treatment of unmatched warnings.
func (p *Policy) Mode() Mode {
	return p.mode
}

// SuppressList returns the configured suppress-list in sorted order.
func (p *Policy) SuppressList() []domain.DefinitionID {
	ids := make([]domain.DefinitionID, 0, len(p.suppress))
	for id := range p.suppress {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Resolve processes the pending batch in order and produces one directive.
//
// Warnings matching a suppression rule are suppressed; unmatched warnings
// follow the configured mode. The first Error encountered ends the pass
// immediately: its proposed fix is accepted and the commit is forced, or,
// when no fix is available, the batch is surfaced for user action. Events
// after that Error are not evaluated this pass; the transaction re-presents
// them on its next validation pass.
func (p *Policy) Resolve(ctx context.Context, failures domain.FailureAccessor) domain.Directive {
	directive := p.resolve(ctx, failures)
	if p.metrics != nil {
		p.metrics.RecordDirective(directive)
	}
	return directive
}

func (p *Policy) resolve(ctx context.Context, failures domain.FailureAccessor) domain.Directive {
	for _, event := range failures.Pending() {
		switch {
		case event.Severity.Rank() >= domain.SeverityError.Rank():
			// Errors are never silently dropped: either the proposed fix
			// is accepted and the commit forced, or the batch goes back
			// to the user untouched.
			if failures.Resolve(event) {
				p.logger.Info("error resolved, forcing commit",
					"definition", event.Definition,
					"message", event.Message)
				p.recordEvent(event, OutcomeResolved)
				return domain.DirectiveProceedWithCommit
			}
			p.logger.Warn("error has no resolution, escalating",
				"definition", event.Definition,
				"message", event.Message)
			p.recordEvent(event, OutcomeEscalated)
			return domain.DirectiveWaitForUserInput

		case event.Severity == domain.SeverityWarning:
			if p.matches(ctx, event) || p.mode == ModeSwallowAll {
				if failures.Suppress(event) {
					p.logger.Debug("warning suppressed",
						"definition", event.Definition)
					p.recordEvent(event, OutcomeSuppressed)
				}
				continue
			}
			p.logger.Debug("warning escalated",
				"definition", event.Definition)
			p.recordEvent(event, OutcomeEscalated)

		default:
			// Informational events never block; leave them untouched.
			p.recordEvent(event, OutcomePassed)
		}
	}
	return domain.DirectiveContinue
}

// matches reports whether any suppression rule covers the event. Only
// exact-match suppression is applied; an unrecognised definition falls
// through to the default mode, and a rule-source failure degrades the same
// way rather than suppressing an unknown event.
func (p *Policy) matches(ctx context.Context, event domain.FailureEvent) bool {
	if _, ok := p.suppress[event.Definition]; ok {
		return true
	}
	if p.rules == nil {
		return false
	}
	match, err := p.rules.Match(ctx, event)
	if err != nil {
		p.logger.Warn("rule source failed, escalating event",
			"definition", event.Definition,
			"error", err)
		return false
	}
	return match
}

func (p *Policy) recordEvent(event domain.FailureEvent, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordEvent(event.Severity, outcome)
	}
}
