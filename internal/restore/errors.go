package restore

import "errors"

var (
	// ErrUnauthorized is returned when a mutation is requested without elevated privileges.
	ErrUnauthorized = errors.New("administrator privileges are required")

	// ErrCommandFailure marks a gateway command that exited non-zero or could not run.
	ErrCommandFailure = errors.New("command failed")

	// ErrMalformedOutput marks gateway output that could not be decoded.
	ErrMalformedOutput = errors.New("malformed command output")

	// ErrAccessDenied is a CommandFailure classified as an OS access denial.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoIdentifiers is returned by Delete when neither a shadow id nor a
	// sequence number was supplied.
	ErrNoIdentifiers = errors.New("no restore point identifiers supplied")

	// ErrPersistence marks an audit store read or write failure.
	ErrPersistence = errors.New("audit persistence failed")
)

// accessDeniedError carries the underlying gateway error while matching both
// ErrAccessDenied and ErrCommandFailure.
type accessDeniedError struct {
	cause error
}

func (e *accessDeniedError) Error() string { return "access denied: " + e.cause.Error() }

func (e *accessDeniedError) Unwrap() []error { return []error{ErrAccessDenied, e.cause} }
