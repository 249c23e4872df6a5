package discovery

import "errors"

var (
	// ErrSessionNotFound means the session id does not exist or is not
	// visible to the calling owner.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotActive means the session has already been completed or
	// skipped and no longer accepts conversation turns.
	ErrSessionNotActive = errors.New("session not active")

	// ErrSynthesisFailed means a forced synthesis produced output that did
	// not parse against the synthesis contract. Nothing was persisted.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrConflict means a concurrent writer updated the session first.
	// The caller should retry the whole operation against fresh state.
	ErrConflict = errors.New("concurrent session update")

	// ErrInvalidPhase means the caller named a phase outside the known set.
	ErrInvalidPhase = errors.New("invalid phase")

	// ErrEmptyMessage means a chat turn carried no text.
	ErrEmptyMessage = errors.New("message is empty")
)
