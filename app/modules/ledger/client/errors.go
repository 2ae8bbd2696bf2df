package ledgerclient

import "errors"

var (
	// ErrFetch wraps every failure to read a ledger table: transport,
	// non-2xx status, timeout or undecodable CSV. The wrapped text is the
	// underlying problem verbatim.
	ErrFetch = errors.New("ledger fetch failed")

	// ErrSubmit wraps every failure to append to the ledger.
	ErrSubmit = errors.New("ledger submit failed")
)
