package statemachine

import (
	"errors"
	"fmt"
)

// Errors returned by the Manager or passed to result handlers. A nil error
// means success.
var (
	// ErrTimeout is passed to a result handler when a command got no
	// response after one retry.
	ErrTimeout = errors.New("command timed out")

	// ErrNetworkError wraps a transport send failure.
	ErrNetworkError = errors.New("network error")

	// ErrUnknownRemoteEntity is returned when forgetting an untracked entity
	// and passed to handlers of commands purged because their destination
	// went offline.
	ErrUnknownRemoteEntity = errors.New("unknown remote entity")

	// ErrUnknownLocalEntity is returned for operations on an unregistered
	// local entity and passed to handlers of commands purged by
	// UnregisterLocalEntity.
	ErrUnknownLocalEntity = errors.New("unknown local entity")

	// ErrInvalidEntityType is returned when submitting a command on behalf of
	// an entity that is not registered for commands.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrDuplicateLocalEntityID is returned when registering a second local
	// entity with an already registered ID.
	ErrDuplicateLocalEntityID = errors.New("duplicate local entity id")

	// ErrInvalidParameters is returned for malformed requests.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrInternalError is returned when a command could not be queued.
	ErrInternalError = errors.New("internal error")

	// ErrInvalidConfig is returned by NewManager for an unusable Config.
	ErrInvalidConfig = errors.New("invalid manager config")

	// ErrAlreadyStarted is returned by Start on a running Manager.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrNotStarted is returned by Stop on a Manager that is not running.
	ErrNotStarted = errors.New("manager not started")
)

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetworkError, err)
}
