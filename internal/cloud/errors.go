package cloud

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection wraps transport-level failures (server unreachable,
	// timeout). Calls are never retried automatically.
	ErrConnection = errors.New("cloud: connection error")

	// ErrInvalidCredentials is returned by Login on a 400 response.
	ErrInvalidCredentials = errors.New("cloud: invalid credentials")

	// ErrAuthRequired marks a call rejected for a missing or expired
	// session token.
	ErrAuthRequired = errors.New("cloud: authentication required")

	ErrUsernameMissing = errors.New("cloud: username is not provided")
	ErrEmailMissing    = errors.New("cloud: email is not provided")
	ErrUserExists      = errors.New("cloud: user already exists")

	// ErrBackupExists is returned when uploading a backup whose digest
	// is already stored for the account.
	ErrBackupExists = errors.New("cloud: backup already exists")
)

// APIError reports an unexpected HTTP status for a named operation.
type APIError struct {
	Op     string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud: %s failed: status %d", e.Op, e.Status)
}
