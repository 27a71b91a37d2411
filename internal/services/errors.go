package services

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound collapses "absent" and "not owned by caller" into one
// outward answer so session existence never leaks across tenants.
var ErrSessionNotFound = errors.New("session not found or access denied")

// ValidationError rejects a malformed request before any transport is
// opened.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PersistenceError marks a store write failure. Fatal for the current run;
// prior durable state is unaffected since every write is independent and
// append-only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
