// Package storeerr declares the tagged store-level error taxonomy shared by
// every entity store and matched with errors.Is at the HTTP and worker
// boundary. Store methods always wrap one of these with fmt.Errorf("...: %w")
// so the tag survives errors.Is while the message stays specific.
package storeerr

import "errors"

var (
	// ErrNotFound indicates no row matched the lookup key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved indicates an attempt to act on an entity whose
	// status has already moved past the state the operation expects.
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrExpired indicates a time-bounded artifact was used after its deadline.
	ErrExpired = errors.New("expired")
	// ErrConflict indicates an attempt to act on an already-terminal entity
	// or one otherwise unable to accept the requested transition.
	ErrConflict = errors.New("conflict")
	// ErrStoreUnavailable indicates a transient failure; always retriable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
