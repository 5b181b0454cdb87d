package store

import "errors"

// Error kinds surfaced by the store. Callers match them with errors.Is; the
// underlying driver or codec error stays reachable through the same chain.
var (
	// ErrInitialization is returned when the pool cannot be built
	// (bad connection URL, root certificates unavailable).
	ErrInitialization = errors.New("store initialization failed")

	// ErrConnectionAcquisition is returned when the pool could not supply a
	// connection, either because the caller gave up waiting or because the
	// physical connection could not be established.
	ErrConnectionAcquisition = errors.New("database connection unavailable")

	// ErrTransactionFailed is returned when a unit of work returned an error
	// or its commit was rejected. The transaction has been rolled back.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrCommit marks a transaction failure caused by the database refusing
	// the commit rather than by the unit of work.
	ErrCommit = errors.New("commit rejected by database")

	// ErrEncoding is returned when a domain value cannot be serialized to its
	// stored representation.
	ErrEncoding = errors.New("encoding domain value")

	// ErrDecoding is returned when a stored document cannot be parsed back
	// into its typed form. The row is unusable; no default is substituted.
	ErrDecoding = errors.New("decoding stored value")
)
