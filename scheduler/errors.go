package scheduler

import "errors"

// ErrBranchCancelled names a branch cancelled by its peer. The strategy
// does not attach it to a stopped branch: that branch's executor sees
// its context end with ctx.Err() == context.Canceled.
var ErrBranchCancelled = errors.New("scheduler: branch cancelled by peer")

// ErrNoEligibleBranch is returned by Exec when ExecutionPolicy and the
// configured Registry together leave a spawn with neither a local nor a
// remote executor available to run it.
var ErrNoEligibleBranch = errors.New("scheduler: spawn has no eligible execution branch")

// ErrBothBranchesFailed's text is the Message of the ALL_BRANCHES_FAILED
// *SchedulerError Exec returns when a race ends with every branch
// skipped before running; that error's Cause is ErrPermitDenied. The
// first-arriving real execution error is normally propagated directly
// instead; this covers the degenerate case where no branch ever ran at
// all.
var ErrBothBranchesFailed = errors.New("scheduler: no branch produced a result")

// Category groups SchedulerError values for programmatic handling,
// mirroring the host system's broader error taxonomy.
type Category string

const (
	// CategoryExecution covers failures surfaced by an executor itself
	// (non-zero exit, sandbox setup failure, RPC error).
	CategoryExecution Category = "execution"

	// CategoryProtocol covers violations of the strategy's own internal
	// invariants — never a user-triggerable condition. Seeing one of
	// these means the branch lifecycle has a bug, not that the build
	// action failed.
	CategoryProtocol Category = "protocol"

	// CategoryPolicy covers the user-error/environmental-error pair
	// grouped under the "DynamicExecution" failure-detail category:
	// an ExecutionPolicy/Registry combination that leaves nothing
	// eligible to run a spawn (NO_USABLE_STRATEGY_FOUND), or a spawn
	// whose availability-info precondition is unmet
	// (XCODE_RELATED_PREREQ_UNMET).
	CategoryPolicy Category = "DynamicExecution"
)

// SchedulerError is the structured error type returned by Exec and by
// the branch lifecycle. Code is a short machine-readable tag; Cause, if
// present, is the underlying error from an executor or from context
// cancellation.
type SchedulerError struct {
	Category Category
	Code     string
	Message  string
	SpawnID  string
	Cause    error
}

// Error implements the error interface.
func (e *SchedulerError) Error() string {
	if e.SpawnID != "" {
		return "spawn " + e.SpawnID + ": " + e.Message
	}
	return e.Message
}

// Unwrap exposes Cause for errors.Is/errors.As chains.
func (e *SchedulerError) Unwrap() error {
	return e.Cause
}

// protocolViolation panics with a *SchedulerError of CategoryProtocol.
// It is used exclusively for conditions the strategy's own invariants
// guarantee cannot occur through any legitimate caller action — for
// example, both branches independently believing they won the same
// race. Recovering from a protocol violation is not meaningful: it
// indicates a bug in the branch lifecycle, not a build failure.
func protocolViolation(spawnID, code, message string) {
	panic(&SchedulerError{
		Category: CategoryProtocol,
		Code:     code,
		Message:  message,
		SpawnID:  spawnID,
	})
}
