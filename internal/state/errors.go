package state

import "errors"

// Check with errors.Is:
//
//	if errors.Is(err, state.ErrObjectNotFound) {
//	    // create it
//	}
var (
	// ErrObjectNotFound is returned when no object exists for a key.
	ErrObjectNotFound = errors.New("state: object not found")

	// ErrStateNotFound is returned when a key has never been written.
	ErrStateNotFound = errors.New("state: state not found")

	// ErrInvalidID is returned for empty or malformed keys.
	ErrInvalidID = errors.New("state: invalid id")

	// ErrInvalidValue is returned when a value cannot be JSON encoded.
	ErrInvalidValue = errors.New("state: invalid value")

	// ErrInvalidPattern is returned when a subscription pattern does not compile.
	ErrInvalidPattern = errors.New("state: invalid pattern")

	// ErrRepositoryRequired is returned by NewStore without a repository.
	ErrRepositoryRequired = errors.New("state: repository is required")
)
