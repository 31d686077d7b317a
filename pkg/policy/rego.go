package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/quellhq/quell/pkg/domain"
)

// regoQuery is the decision path a suppression module must populate:
// a boolean rule `suppress` in `package quell`.
const regoQuery = "data.quell.suppress"

// RegoRules is a RuleSource backed by a single Rego module, for hosts that
// manage suppression policy as code rather than a static list. The module
// is compiled once at construction; evaluation is in-memory and performs
// no I/O, so it is safe to consult from a resolution pass.
type RegoRules struct {
	prepared rego.PreparedEvalQuery
	logger   *slog.Logger

	// Definitions repeat across re-validation passes, so decisions are
	// memoised per (definition, severity).
	mu   sync.Mutex
	memo map[memoKey]bool
}

type memoKey struct {
	definition domain.DefinitionID
	severity   domain.Severity
}

// NewRegoRules parses and compiles the supplied module source. The filename
// is used for parser diagnostics only.
func NewRegoRules(ctx context.Context, filename, source string, logger *slog.Logger) (*RegoRules, error) {
	if logger == nil {
		logger = slog.Default()
	}

	module, err := ast.ParseModuleWithOpts(filename, source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return nil, fmt.Errorf("parse rego module %q: %w", filename, err)
	}

	r := rego.New(
		rego.Query(regoQuery),
		rego.ParsedModule(module),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego module %q: %w", filename, err)
	}

	return &RegoRules{
		prepared: prepared,
		logger:   logger,
		memo:     make(map[memoKey]bool),
	}, nil
}

// Match evaluates the suppress rule for the event. An undefined decision
// counts as no match.
func (r *RegoRules) Match(ctx context.Context, event domain.FailureEvent) (bool, error) {
	key := memoKey{definition: event.Definition, severity: event.Severity}

	r.mu.Lock()
	defer r.mu.Unlock()

	if match, ok := r.memo[key]; ok {
		return match, nil
	}

	input := map[string]any{
		"definition_id": string(event.Definition),
		"severity":      string(event.Severity),
	}

	results, err := r.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("rego suppress query: %w", err)
	}

	match := false
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		value, ok := results[0].Expressions[0].Value.(bool)
		if !ok {
			return false, fmt.Errorf("rego suppress query: decision must be boolean, got %T", results[0].Expressions[0].Value)
		}
		match = value
	}

	r.memo[key] = match
	return match, nil
}
