// Package txn provides the transactional unit of work that failure
// resolvers plug into: a bounded sequence of document edits that commits or
// rolls back atomically, with a pending-failure list the registered
// resolver acts on during each validation pass of a commit attempt.
//
// The package plays the host side of the contract defined in pkg/domain.
// It is deliberately free of any document model; hosts raise failure
// events against the transaction from whatever validation they run.
package txn
