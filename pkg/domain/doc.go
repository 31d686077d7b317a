// Package domain defines the core failure-resolution vocabulary.
//
// This package contains pure domain types with zero external dependencies
// outside the Go standard library: the failure event model (definition
// identifier, ordered severity, message), the directive a resolver returns
// to the transaction, and the two narrow contracts connecting them
// (FailureAccessor and Resolver).
//
// Other packages (policy, txn) implement these interfaces and depend on
// these types; the dependency direction is always infrastructure → domain,
// never the reverse.
package domain
