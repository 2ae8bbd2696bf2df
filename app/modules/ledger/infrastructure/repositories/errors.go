package ledgerdb

import "errors"

// ErrNotFound indicates the requested ledger record does not exist.
var ErrNotFound = errors.New("ledger record not found")
