package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nsbuild/dynexec/scheduler/emit"
	"github.com/nsbuild/dynexec/scheduler/store"
)

// InformativePolicy extends ExecutionPolicy with an explicit report of
// whether it actually has availability information for a spawn, as
// opposed to defaulting CanExecLocally/CanExecRemotely to true out of
// ignorance. Only consulted when WithRequireAvailabilityInfo is set.
type InformativePolicy interface {
	ExecutionPolicy
	HasAvailabilityInfo(spawn Spawn) bool
}

// DynamicSpawnStrategy races a Spawn's local and remote execution
// against each other, returning whichever finishes first and tearing
// down the loser before returning. R is the result type an executor
// produces (e.g. an action's exit status and output digest).
type DynamicSpawnStrategy[R any] struct {
	registry *Registry[R]
	cfg      strategyConfig
	sem      *semaphore.Weighted

	firstBuild atomic.Bool

	// delayLocalExecution is set true the first time any remote branch
	// completes successfully (race or fast path) and never reset. Once
	// set, single-branch local fast paths ("remote
	// fast path also honors delay_local_execution") wait out
	// localExecutionDelay before starting local work, the same head
	// start a race would have given remote — remote has already proven
	// itself fast enough that a subsequent local-only run shouldn't
	// stampede ahead of it. It is advisory and read without further
	// synchronization, scoped to this strategy instance, not the process
	// as a whole.
	delayLocalExecution atomic.Bool
}

// New creates a DynamicSpawnStrategy backed by registry, the local and
// remote executors raced against each other.
func New[R any](registry *Registry[R], opts ...Option) (*DynamicSpawnStrategy[R], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &DynamicSpawnStrategy[R]{
		registry: registry,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.cpuCount)),
	}, nil
}

// Exec runs spawn, racing local against remote execution when policy
// and configuration both allow it. It returns the winning result, which
// mode produced it, and an error when the spawn is rejected before
// running, when ctx ends first, or when a branch reports an execution
// failure: in a race the first failure decides it, the peer is stopped,
// and the failure is returned unless the peer had already published a
// success.
//
// Decision tree:
//  1. Determine eligibility: CanExecLocally/CanExecRemotely from policy,
//     gated by whether the corresponding executor is even configured.
//  2. If WithRequireAvailabilityInfo is set and policy doesn't report
//     having availability info for this spawn (and its Mnemonic isn't
//     exempted), reject outright: racing blind is worse than failing
//     fast.
//  3. If neither branch is eligible, return ErrNoEligibleBranch.
//  4. If only one branch is eligible, run it directly — no race, no
//     permit. A local run still waits out the local-execution delay
//     once any remote branch has succeeded (see runSingle).
//  5. If WithSkipFirstBuild is set and this is this strategy's first
//     Exec call, emit a one-time informational event and run
//     remote-only — the first action of a build would otherwise pay a
//     race's overhead before the remote connection has warmed up.
//  6. Otherwise, start both branches (remote immediately, local after
//     the configured delay) and hand off to waitBranches to arbitrate.
func (s *DynamicSpawnStrategy[R]) Exec(ctx context.Context, spawn Spawn, policy ExecutionPolicy) (R, DynamicMode, error) {
	var zero R

	canLocal := s.registry.Local != nil && policy.CanExecLocally(spawn)
	canRemote := s.registry.Remote != nil && policy.CanExecRemotely(spawn)

	if s.cfg.requireAvailabilityInfo && !s.cfg.availabilityInfoExempt[spawn.Mnemonic()] {
		if ip, ok := policy.(InformativePolicy); !ok || !ip.HasAvailabilityInfo(spawn) {
			return zero, ModeLocal, &SchedulerError{
				Category: CategoryPolicy,
				Code:     "XCODE_RELATED_PREREQ_UNMET",
				Message:  "execution policy has no availability information for this spawn",
				SpawnID:  spawn.ID(),
			}
		}
	}

	if !canLocal && !canRemote {
		return zero, ModeLocal, &SchedulerError{
			Category: CategoryPolicy,
			Code:     "NO_USABLE_STRATEGY_FOUND",
			Message:  ErrNoEligibleBranch.Error(),
			SpawnID:  spawn.ID(),
			Cause:    ErrNoEligibleBranch,
		}
	}

	firstCall := !s.firstBuild.Swap(true)
	if canLocal != canRemote {
		mode := ModeLocal
		if canRemote {
			mode = ModeRemote
		}
		s.emitFallbackSingleBranch(spawn, mode, "single_mode_eligible")
		return s.runSingle(ctx, spawn, mode)
	}
	if s.cfg.skipFirstBuild && firstCall {
		s.emitFallbackSingleBranch(spawn, ModeRemote, "skip_first_build")
		return s.runSingle(ctx, spawn, ModeRemote)
	}

	s.emitDebug(spawn, "exec_decision", map[string]interface{}{
		"can_local":  canLocal,
		"can_remote": canRemote,
		"racing":     true,
	})
	return s.runRace(ctx, spawn)
}

// runSingle executes spawn on exactly one branch, with none of the
// race/permit machinery — used when only one mode is eligible, or when
// WithSkipFirstBuild suppresses racing for the first spawn. The local
// fast path additionally honors delayLocalExecution:
// once any remote branch has ever completed successfully, single-branch
// local runs wait out the configured delay before starting, the same
// head start a race would have given remote.
func (s *DynamicSpawnStrategy[R]) runSingle(ctx context.Context, spawn Spawn, mode DynamicMode) (R, DynamicMode, error) {
	var zero R

	if mode == ModeLocal && s.delayLocalExecution.Load() && s.cfg.localExecutionDelay > 0 {
		t := time.NewTimer(s.cfg.localExecutionDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return zero, mode, ctx.Err()
		}
	}

	start := time.Now()
	s.metricsIncInflight(mode)

	var val R
	var err error
	switch mode {
	case ModeLocal:
		val, err = s.registry.Local.ExecLocally(ctx, spawn)
	case ModeRemote:
		val, err = s.registry.Remote.ExecRemotely(ctx, spawn)
	}

	s.metricsDecInflight(mode)
	dur := time.Since(start)

	if err != nil {
		s.metricsRecordLatency(mode, "error", dur)
		s.recordDecisionWithLoser(spawn, mode, false, dur, err)
		return zero, mode, &SchedulerError{
			Category: CategoryExecution,
			Code:     "BRANCH_FAILED",
			Message:  "spawn execution failed",
			SpawnID:  spawn.ID(),
			Cause:    err,
		}
	}
	if mode == ModeRemote {
		s.delayLocalExecution.Store(true)
	}
	s.metricsRecordLatency(mode, "won", dur)
	s.recordDecisionWithLoser(spawn, mode, false, dur, nil)
	return val, mode, nil
}

// runRace starts both branches and arbitrates the result.
func (s *DynamicSpawnStrategy[R]) runRace(ctx context.Context, spawn Spawn) (R, DynamicMode, error) {
	out := make(chan branchResult[R], 2)

	branches := map[DynamicMode]*branch[R]{
		ModeRemote: s.startRemote(ctx, spawn, out),
		ModeLocal:  s.startLocalDelayed(ctx, spawn, s.cfg.localExecutionDelay, out),
	}

	return s.waitBranches(ctx, spawn, branches, out)
}

// waitBranches is the arbiter: it reads results from out as they
// arrive, one at a time, and the first real completion — success or
// execution failure — decides the race. The decider tells its peer to
// stop and waits for that peer's teardown to finish (stop_branch)
// before Exec returns. Because exactly one goroutine ever reads from
// out and decides victory, there is no possibility of two branches
// simultaneously "winning" — the decision point is serialized by
// construction, not by a separately-guarded atomic cell.
//
// An ErrPermitDenied from the local branch is not a real completion:
// the branch never ran, so the race degrades to remote-only and the
// arbiter keeps waiting. If the context is cancelled before any branch
// completes, every branch is stopped and ctx.Err() is returned.
func (s *DynamicSpawnStrategy[R]) waitBranches(ctx context.Context, spawn Spawn, branches map[DynamicMode]*branch[R], out chan branchResult[R]) (R, DynamicMode, error) {
	var zero R
	total := len(branches)

	for seen := 0; seen < total; seen++ {
		select {
		case res := <-out:
			if res.err == nil {
				s.declareWinner(spawn, res, branches, out)
				return res.value, res.mode, nil
			}
			if errors.Is(res.err, ErrPermitDenied) {
				// The local branch never started; remote-only from here.
				continue
			}
			// A real execution failure decides the race the same way a
			// success does: stop the peer, wait out its teardown, then
			// propagate the error. If the peer's own success was already
			// published before the cancellation landed, the peer
			// genuinely finished first and its result takes precedence.
			if peer, won := s.stopPeersAfterFailure(spawn, res.mode, branches, out); won {
				return peer.value, peer.mode, nil
			}
			s.metricsRecordLatency(res.mode, "error", res.dur)
			s.emitStrategyResult(spawn, res.mode, res.err)
			s.recordDecisionWithLoser(spawn, res.mode, true, 0, res.err)
			return zero, res.mode, &SchedulerError{
				Category: CategoryExecution,
				Code:     "BRANCH_FAILED",
				Message:  "spawn execution failed",
				SpawnID:  spawn.ID(),
				Cause:    res.err,
			}

		case <-ctx.Done():
			for _, b := range branches {
				b.stop()
			}
			return zero, ModeLocal, ctx.Err()
		}
	}

	// Every branch skipped without running. Only the local branch can
	// report ErrPermitDenied and a race always has a remote branch, so
	// this is unreachable today; fail closed rather than hang.
	return zero, ModeLocal, &SchedulerError{
		Category: CategoryExecution,
		Code:     "ALL_BRANCHES_FAILED",
		Message:  ErrBothBranchesFailed.Error(),
		SpawnID:  spawn.ID(),
		Cause:    ErrPermitDenied,
	}
}

// stopPeersAfterFailure delivers stop_branch to every branch other than
// failedMode after that branch reported an execution error. It then
// drains any result the stopped peer had already published: a drained
// success means the peer beat the cancellation and won the race, which
// is reported back to waitBranches so the failure is abandoned in its
// favor.
func (s *DynamicSpawnStrategy[R]) stopPeersAfterFailure(spawn Spawn, failedMode DynamicMode, branches map[DynamicMode]*branch[R], out <-chan branchResult[R]) (branchResult[R], bool) {
	var winner branchResult[R]
	won := false
	for mode, b := range branches {
		if mode == failedMode {
			continue
		}
		s.stopBranch(spawn, b, mode)
		select {
		case peerRes := <-out:
			if peerRes.err == nil {
				winner, won = peerRes, true
			}
		default:
		}
	}
	if won {
		if winner.mode == ModeRemote {
			s.delayLocalExecution.Store(true)
		}
		s.metricsRecordLatency(winner.mode, "won", winner.dur)
		s.emitStrategyResult(spawn, winner.mode, nil)
		s.recordDecisionWithLoser(spawn, winner.mode, true, 0, nil)
	}
	return winner, won
}

// declareWinner stops every branch other than the winner (stop_branch),
// then checks whether that now-torn-down peer had already produced a
// result of its own before its cancellation took effect. stopBranch only
// returns once the peer's done-semaphore has been acquired, so any
// result the peer sent is already sitting in out by the time declareWinner
// checks — the read below never blocks. A peer result with err == nil
// here means both branches genuinely succeeded, which this protocol treats
// as a fatal protocol bug, not something to silently prefer one side of.
func (s *DynamicSpawnStrategy[R]) declareWinner(spawn Spawn, winner branchResult[R], branches map[DynamicMode]*branch[R], out <-chan branchResult[R]) {
	if winner.mode == ModeRemote {
		s.delayLocalExecution.Store(true)
	}
	s.metricsRecordLatency(winner.mode, "won", winner.dur)

	ranBoth := false
	var loserDuration time.Duration
	for mode, b := range branches {
		if mode == winner.mode {
			continue
		}
		ranBoth = true
		loserStart := time.Now()
		s.stopBranch(spawn, b, mode)
		loserDuration = time.Since(loserStart)

		select {
		case peerRes := <-out:
			if peerRes.err == nil {
				s.metricsIncProtocolViolation()
				s.cfg.emitter.Emit(emit.Event{SpawnID: spawn.ID(), Msg: "protocol_violation"})
				protocolViolation(spawn.ID(), "BOTH_BRANCHES_SUCCEEDED", "both local and remote branches returned a real result")
			}
		default:
		}
	}

	s.emitStrategyResult(spawn, winner.mode, nil)
	s.emitDebug(spawn, "arbitration_decision", map[string]interface{}{
		"winner":            winner.mode.String(),
		"winner_ms":         winner.dur.Milliseconds(),
		"ran_both":          ranBoth,
		"loser_teardown_ms": loserDuration.Milliseconds(),
	})
	s.recordDecisionWithLoser(spawn, winner.mode, ranBoth, loserDuration, nil)
}

// stopBranch delivers stop_branch to b: cancel its context, wait for
// its done-semaphore (teardown complete), then account for the
// cancellation in metrics and observability.
func (s *DynamicSpawnStrategy[R]) stopBranch(spawn Spawn, b *branch[R], mode DynamicMode) {
	b.stop()
	s.emitBranchCancelled(spawn, mode)
	s.metricsIncCancellations(mode)
}

func (s *DynamicSpawnStrategy[R]) recordDecisionWithLoser(spawn Spawn, mode DynamicMode, ranBoth bool, loserDuration time.Duration, winnerErr error) {
	if s.cfg.auditStore == nil {
		return
	}
	errMsg := ""
	if winnerErr != nil {
		errMsg = winnerErr.Error()
	}
	_ = s.cfg.auditStore.RecordDecision(context.Background(), store.Decision{
		SpawnID:       spawn.ID(),
		Mnemonic:      spawn.Mnemonic(),
		WinningMode:   mode.String(),
		RanBothModes:  ranBoth,
		LoserDuration: loserDuration,
		WinnerError:   errMsg,
		RecordedAt:    time.Now(),
	})
}

func (s *DynamicSpawnStrategy[R]) emitBranchStart(spawn Spawn, mode DynamicMode) {
	s.cfg.emitter.Emit(emit.Event{SpawnID: spawn.ID(), Mode: mode.String(), Msg: "branch_start"})
}

func (s *DynamicSpawnStrategy[R]) emitBranchDone(spawn Spawn, mode DynamicMode, dur time.Duration, err error) {
	meta := map[string]interface{}{"duration_ms": dur.Milliseconds()}
	if err != nil {
		meta["error"] = err.Error()
	}
	s.cfg.emitter.Emit(emit.Event{SpawnID: spawn.ID(), Mode: mode.String(), Msg: "branch_done", Meta: meta})
}

func (s *DynamicSpawnStrategy[R]) emitBranchCancelled(spawn Spawn, mode DynamicMode) {
	s.cfg.emitter.Emit(emit.Event{
		SpawnID: spawn.ID(),
		Mode:    mode.String(),
		Msg:     "branch_cancelled",
		Meta:    map[string]interface{}{"cancelled_by": mode.Other().String()},
	})
}

func (s *DynamicSpawnStrategy[R]) emitPermitDenied(spawn Spawn) {
	s.cfg.emitter.Emit(emit.Event{
		SpawnID: spawn.ID(),
		Mode:    ModeLocal.String(),
		Msg:     "permit_denied",
		Meta:    map[string]interface{}{"reason": "cpu permit pool saturated"},
	})
}

func (s *DynamicSpawnStrategy[R]) emitFallbackSingleBranch(spawn Spawn, mode DynamicMode, reason string) {
	s.cfg.emitter.Emit(emit.Event{
		SpawnID: spawn.ID(),
		Mode:    mode.String(),
		Msg:     "fallback_single_branch",
		Meta:    map[string]interface{}{"reason": reason},
	})
}

// emitDebug routes verbose arbitration detail through the emitter, only
// when WithDebugSpawnScheduler is set. Ordinary events (branch_start,
// strategy_result, ...) are emitted unconditionally; these carry the
// extra decision detail that would be noise in production.
func (s *DynamicSpawnStrategy[R]) emitDebug(spawn Spawn, msg string, meta map[string]interface{}) {
	if !s.cfg.debugSpawnScheduler {
		return
	}
	s.cfg.emitter.Emit(emit.Event{SpawnID: spawn.ID(), Msg: msg, Meta: meta})
}

func (s *DynamicSpawnStrategy[R]) emitStrategyResult(spawn Spawn, mode DynamicMode, err error) {
	meta := map[string]interface{}{}
	if err != nil {
		meta["error"] = err.Error()
	}
	s.cfg.emitter.Emit(emit.Event{SpawnID: spawn.ID(), Mode: mode.String(), Msg: "strategy_result", Meta: meta})
}

func (s *DynamicSpawnStrategy[R]) metricsIncInflight(mode DynamicMode) {
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncInflight(mode.String())
	}
}

func (s *DynamicSpawnStrategy[R]) metricsDecInflight(mode DynamicMode) {
	if s.cfg.metrics != nil {
		s.cfg.metrics.DecInflight(mode.String())
	}
}

func (s *DynamicSpawnStrategy[R]) metricsRecordLatency(mode DynamicMode, outcome string, d time.Duration) {
	if s.cfg.metrics != nil {
		s.cfg.metrics.RecordBranchLatency(mode.String(), outcome, d)
	}
}

func (s *DynamicSpawnStrategy[R]) metricsIncCancellations(mode DynamicMode) {
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncCancellations(mode.String())
	}
}

func (s *DynamicSpawnStrategy[R]) metricsIncPermitDenied() {
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncPermitDenied()
	}
}

func (s *DynamicSpawnStrategy[R]) metricsIncProtocolViolation() {
	if s.cfg.metrics != nil {
		s.cfg.metrics.IncProtocolViolation()
	}
}
