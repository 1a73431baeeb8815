package domain

import "errors"

var (
	ErrInvalidConfig           = errors.New("invalid inventory config")
	ErrUnsupportedOperation    = errors.New("operation not supported by venue")
	ErrInsufficientBaseBalance = errors.New("insufficient base account balance")
	ErrInconsistentRead        = errors.New("balance read did not stabilize")
	ErrUnknownMemberType       = errors.New("unknown member type")
	ErrTokenNotFound           = errors.New("token not found")
	ErrLockHeld                = errors.New("lock already held")
)
