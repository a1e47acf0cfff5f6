package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the symbolic class the classifier assigns to an execution failure.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindExitCode     ErrorKind = "exitCode"
	KindFileNotFound ErrorKind = "fileNotFound"
	KindPermission   ErrorKind = "permission"
	KindNetwork      ErrorKind = "network"
	KindUnknown      ErrorKind = "unknown"
)

// Planning-time kinds, reported in responses but never classified.
const (
	KindAuthorization ErrorKind = "authorization"
	KindLimitExceeded ErrorKind = "limitExceeded"
	KindGovernance    ErrorKind = "governanceBlocked"
	KindUnknownCmd    ErrorKind = "unknownCommand"
	KindRepairFailed  ErrorKind = "repairFailed"
)

// ErrRecordNotFound is returned by stores when a key has never been written.
var ErrRecordNotFound = errors.New("record not found")

// AuthorizationError means the role may not run the command.
type AuthorizationError struct {
	Role    string
	Command string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to run %q", e.Role, e.Command)
}

// LimitExceededError means the per-role quota for a command is used up.
type LimitExceededError struct {
	Role    string
	Command string
	Limit   int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("role %q exhausted its limit of %d calls for %q", e.Role, e.Limit, e.Command)
}

// GovernanceBlockedError means the command waits for admin approval.
type GovernanceBlockedError struct {
	Command   string
	RequestID string
}

func (e *GovernanceBlockedError) Error() string {
	return fmt.Sprintf("%q requires approval: request %s is pending", e.Command, e.RequestID)
}

// UnknownCommandError means neither the dispatch table nor discovery resolved the command.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

// SnapshotNotFoundError means the snapshot id is unknown or was evicted.
type SnapshotNotFoundError struct {
	ID string
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("snapshot %s not found", e.ID)
}

// RepairFailedError is returned when a repaired retry fails too.
// It unwraps to the retry's own failure so callers keep the diagnostic detail.
type RepairFailedError struct {
	Command  string
	Attempts int
	Repair   string
	Err      error
}

func (e *RepairFailedError) Error() string {
	return fmt.Sprintf("repair failed for %q after %d attempts (%s): %v", e.Command, e.Attempts, e.Repair, e.Err)
}

func (e *RepairFailedError) Unwrap() error {
	return e.Err
}

// IsPlanningError reports whether err was raised while building a plan.
// Those errors never enter the repair loop.
func IsPlanningError(err error) bool {
	var (
		authErr    *AuthorizationError
		limitErr   *LimitExceededError
		blockedErr *GovernanceBlockedError
		unknownErr *UnknownCommandError
	)
	return errors.As(err, &authErr) || errors.As(err, &limitErr) ||
		errors.As(err, &blockedErr) || errors.As(err, &unknownErr)
}

// PlanningErrorKind maps planning errors to their kind, or "" for anything else.
func PlanningErrorKind(err error) ErrorKind {
	var (
		authErr    *AuthorizationError
		limitErr   *LimitExceededError
		blockedErr *GovernanceBlockedError
		unknownErr *UnknownCommandError
	)
	switch {
	case errors.As(err, &authErr):
		return KindAuthorization
	case errors.As(err, &limitErr):
		return KindLimitExceeded
	case errors.As(err, &blockedErr):
		return KindGovernance
	case errors.As(err, &unknownErr):
		return KindUnknownCmd
	default:
		return ""
	}
}
