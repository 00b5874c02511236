package future

import "errors"

var (
	ErrPending    = errors.New("future is pending")
	ErrDiscarded  = errors.New("future discarded")
	ErrResolved   = errors.New("promise is already resolved")
	ErrAssociated = errors.New("promise is associated with another future")
	ErrIncorrect  = errors.New("future is not initialized")
)
