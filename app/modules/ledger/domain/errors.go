package ledgerdomain

import "errors"

var (
	// ErrInvalidSubmission wraps every field-level rejection.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrUnknownTable is returned for a table other than commits or reveals.
	ErrUnknownTable = errors.New("unknown table")

	ErrCommitWindowClosed  = errors.New("commit window is closed")
	ErrRevealWindowNotOpen = errors.New("reveal window is not open yet")
	ErrRevealWindowClosed  = errors.New("reveal window is closed")
)
