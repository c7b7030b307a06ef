package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateProduct is returned when an identical product is already tracked.
	ErrDuplicateProduct = errors.New("product already tracked")
	// ErrDuplicateUpload means a submission code was already recorded for the identity.
	ErrDuplicateUpload = errors.New("submission code already recorded")
	// ErrUnknownIdentity is returned for identities that have no lifecycle state.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrResultConflict means a second upload result arrived for the same identity; the first one is kept.
	ErrResultConflict = errors.New("upload result already recorded")
	// ErrArchiveConflict means another caller archived the identity first. The
	// returned view is still valid.
	ErrArchiveConflict = errors.New("identity already archived by a concurrent check")
	// ErrNotUploaded is returned by Archive when the identity has left UPLOADED.
	ErrNotUploaded = errors.New("identity is not in the uploaded state")
	// ErrInvalidTransition is returned when Archive is asked for a non-terminal target.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrSubmissionInFlight means another Submit or Retry holds the identity.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted is returned by Retry for a product that already has a code.
	ErrAlreadySubmitted = errors.New("product already has a submission code")
)

// GatewayError wraps a failed call to the marketplace.
type GatewayError struct {
	Op   string
	Code string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s (code %s): %v", e.Op, e.Code, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
