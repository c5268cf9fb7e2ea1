package resource

import (
	"errors"
	"fmt"
)

// Sentinel errors for the provisioning failure taxonomy. Callers classify
// with errors.Is; wrapped provider errors stay reachable via errors.Unwrap.
var (
	// ErrToolMissing means a required CLI tool is not installed.
	// Fatal, detected pre-flight.
	ErrToolMissing = errors.New("required tool missing")

	// ErrAuth means the active cloud credentials are invalid or expired.
	// Fatal, detected pre-flight.
	ErrAuth = errors.New("credential validation failed")

	// ErrProbe means a read-only describe call failed transiently.
	// Retryable with backoff, bounded.
	ErrProbe = errors.New("probe failed")

	// ErrAlreadyExists means the provider reported the resource as already
	// existing on a create call. Normalized to success by the stage runner,
	// never surfaced as a failure.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrCreationFailed means the provider rejected or failed a creation.
	// Fatal for the stage; halts the plan.
	ErrCreationFailed = errors.New("resource creation failed")

	// ErrPollTimeout means a resource did not reach a terminal state within
	// the stage timeout. Fatal for the stage, but distinct from
	// ErrCreationFailed: the resource may still converge, so a re-run can
	// succeed without re-creating anything.
	ErrPollTimeout = errors.New("timed out waiting for resource")
)

// MissingIdentifierError is returned when a manifest blueprint references an
// identifier role that no earlier stage has bound. It surfaces stage-ordering
// bugs at render time instead of producing a broken manifest.
type MissingIdentifierError struct {
	Role Role
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q has not been bound by an earlier stage", e.Role)
}

// IsMissingIdentifier reports whether err is a MissingIdentifierError.
func IsMissingIdentifier(err error) bool {
	var mie *MissingIdentifierError
	return errors.As(err, &mie)
}

// StageError ties a taxonomy failure to the stage and resource it occurred
// on, so every fatal stop names what failed and how to follow up.
type StageError struct {
	Stage    string
	Resource ManagedResource
	Reason   error // one of the sentinel errors above
	Cause    error // raw provider error, may be nil
	Hint     string
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("stage %q failed on %s: %v", e.Stage, e.Resource, e.Reason)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf(" (%s)", e.Hint)
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Reason
}
