package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPrediction    = errors.New("no usable prediction")
	ErrOrderRejected   = errors.New("order rejected by venue")
	ErrInvalidSnapshot = errors.New("invalid tick snapshot")
	ErrLockHeld        = errors.New("lock already held")
)
