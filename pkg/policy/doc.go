// Package policy implements the failure-suppression policy consulted by a
// transactional unit of work while it processes pending failure events.
//
// The package owns the suppress-list and mode configuration, wraps rule
// matching in domain-friendly types, and exposes an optional Rego-backed
// rule source for hosts that manage suppression policy as code. It is
// intentionally decoupled from the transaction machinery so policies can be
// simulated, tested, and hot-reloaded independently of the host.
package policy
