package scheduler

import (
	"context"

	"github.com/nsbuild/dynexec/nestedset"
)

// Spawn describes one build action eligible for dynamic execution: a
// command plus the transitive set of input artifacts it depends on.
// Implementations are supplied by the caller; the scheduler never
// constructs a Spawn itself.
type Spawn interface {
	// ID uniquely identifies this spawn within a build, used for
	// observability (event SpawnID, audit rows, error messages).
	ID() string

	// Mnemonic is a short human-readable action kind, e.g. "CppCompile",
	// used only for logging/metrics labels.
	Mnemonic() string

	// Inputs is the transitive NestedSet of input artifact paths this
	// spawn depends on. The scheduler never flattens this itself beyond
	// what a Policy or Executor chooses to do.
	Inputs() *nestedset.Node[string]
}

// LocalExecutor runs a Spawn in a local sandbox.
type LocalExecutor[R any] interface {
	ExecLocally(ctx context.Context, spawn Spawn) (R, error)
}

// RemoteExecutor runs a Spawn against a remote execution backend.
type RemoteExecutor[R any] interface {
	ExecRemotely(ctx context.Context, spawn Spawn) (R, error)
}

// Registry bundles the two back-ends a DynamicSpawnStrategy races
// against each other. Either field may be nil, in which case spawns are
// never eligible for that mode regardless of what ExecutionPolicy says.
type Registry[R any] struct {
	Local  LocalExecutor[R]
	Remote RemoteExecutor[R]
}

// ExecutionPolicy decides, per spawn, which execution modes are even
// eligible to be attempted. It does not decide who wins a race — that
// is the strategy's job — only which branches may be started at all.
type ExecutionPolicy interface {
	// CanExecLocally reports whether spawn may be attempted on the
	// local branch (some actions require remote-only capabilities:
	// platform-specific toolchains absent on the build machine, etc).
	CanExecLocally(spawn Spawn) bool

	// CanExecRemotely reports whether spawn may be attempted on the
	// remote branch (some actions are inherently local-only: reading
	// workspace status, local tree-artifact expansion).
	CanExecRemotely(spawn Spawn) bool
}

// AllowAllPolicy is an ExecutionPolicy permitting every spawn to run on
// both branches. Useful for tests and as the default when the caller
// has no mode restrictions to express.
type AllowAllPolicy struct{}

// CanExecLocally always returns true.
func (AllowAllPolicy) CanExecLocally(Spawn) bool { return true }

// CanExecRemotely always returns true.
func (AllowAllPolicy) CanExecRemotely(Spawn) bool { return true }
