package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrEmptyCompletion    = errors.New("model returned an empty completion")
	ErrEndpointGone       = errors.New("push endpoint is gone")
	ErrPushUnsupported    = errors.New("push delivery is not configured")
	ErrHistoryNoUserTurn  = errors.New("conversation history has no user turn")
	ErrRateLimited        = errors.New("too many requests")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrBadSignature       = errors.New("callback signature verification failed")
)
