// ABOUTME: Error types raised by the Pronote client and mapper
// ABOUTME: Auth and fetch errors fail a sync run; validation errors reject a single record
package pronote

import "fmt"

// AuthError reports a failed client-credentials exchange.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("pronote authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a failed collection fetch.
type FetchError struct {
	Collection string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.Collection, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports a source record missing a required field.
type ValidationError struct {
	Collection string
	RecordID   string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("invalid %s record %s: %s %s", e.Collection, id, e.Field, e.Reason)
}
