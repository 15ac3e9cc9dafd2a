package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrSamePlatform      = errors.New("markets are on the same platform")
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrInsufficientDepth = errors.New("insufficient orderbook depth")
	ErrExposureExceeded  = errors.New("exposure limit exceeded")
	ErrRiskDenied        = errors.New("entry denied by risk controls")
	ErrLockHeld          = errors.New("lock already held")
	ErrContextDone       = errors.New("context cancelled")
)
