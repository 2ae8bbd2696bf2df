package consensusservice

import "errors"

// ErrFetchFailed means a ledger table could not be read. No result is produced
// from partial data.
var ErrFetchFailed = errors.New("ledger fetch failed")
