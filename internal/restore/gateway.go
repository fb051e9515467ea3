package restore

import (
	"context"
	"encoding/json"
)

// CommandGateway executes OS scripting-facility commands on behalf of the
// catalog, operator and accountant. It is their only dependency on the
// environment.
type CommandGateway interface {
	// Run executes script and reports failure. A non-zero exit yields an error
	// matching ErrCommandFailure whose text is the captured stderr.
	Run(ctx context.Context, script string) error

	// RunJSON executes script and decodes stdout as either a single JSON object
	// or an array of objects. Empty output yields an empty list. Undecodable
	// output yields an empty list and an error matching ErrMalformedOutput.
	RunJSON(ctx context.Context, script string) ([]json.RawMessage, error)
}

// CodedError is implemented by gateway errors that expose structured OS error
// codes (HRESULTs such as "0x80041003") in addition to their text.
type CodedError interface {
	error
	ErrorCodes() []string
}
