package errors

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrPrivateContext       = errors.New("command sent outside a group conversation")
	ErrNoActivePoll         = errors.New("no active poll")
	ErrMissingOptions       = errors.New("poll has no options")
	ErrMissingIndices       = errors.New("no option numbers given")
	ErrIndexOutOfRange      = errors.New("option number out of range")
	ErrNothingToCancel      = errors.New("nothing to cancel")
	ErrNothingToRemind      = errors.New("nothing to remind")
	ErrDirectoryUnavailable = errors.New("member directory unavailable")
	ErrDispatchFailed       = errors.New("message dispatch failed")

	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSweepDisabled    = errors.New("reminder sweep is disabled")
	ErrSweepForbidden   = errors.New("reminder sweep secret mismatch")
)
