// Package exitcode defines exit codes for the CLI.
package exitcode

import "taskbin/internal/service"

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not found).
	UserError = 1

	// AuthError indicates a missing credential or an authorization failure.
	AuthError = 2

	// BackendError indicates a transport, server or decode error.
	BackendError = 3
)

// FromError maps a gateway error to an exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case service.IsUnauthorized(err):
		return AuthError
	case service.IsUserError(err):
		return UserError
	default:
		return BackendError
	}
}
