package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrPermitDenied is the branch-local error recorded when the local
// branch could not acquire a CPU permit. The arbiter treats it as
// "this branch never ran" — the race degrades to remote-only — rather
// than as a real execution failure, so it never decides a race and is
// never propagated out of Exec on its own.
var ErrPermitDenied = errors.New("scheduler: cpu permit pool saturated, local branch skipped")

// branchResult is what a branch goroutine sends on the shared result
// channel once it has something to report, win or lose.
type branchResult[R any] struct {
	mode  DynamicMode
	value R
	err   error
	dur   time.Duration
}

// branch represents one side of a race: its own cancellable context and
// a done channel that closes only after its goroutine has fully
// returned. stop() waits on done, which is the done-semaphore handshake
// the peer-cancel protocol relies on — a caller that has called
// stop() and returned can assume the branch's resources (sandbox,
// remote call) have been torn down.
type branch[R any] struct {
	mode   DynamicMode
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the branch's context and blocks until its goroutine has
// exited. Calling stop twice is safe; the second call's cancel is a
// no-op and its receive on done returns immediately since done is
// already closed.
func (b *branch[R]) stop() {
	b.cancel()
	<-b.done
}

// startRemote launches the remote branch immediately.
func (s *DynamicSpawnStrategy[R]) startRemote(ctx context.Context, spawn Spawn, out chan<- branchResult[R]) *branch[R] {
	bctx, cancel := context.WithCancel(ctx)
	b := &branch[R]{mode: ModeRemote, cancel: cancel, done: make(chan struct{})}
	s.emitBranchStart(spawn, ModeRemote)

	go func() {
		defer close(b.done)
		s.metricsIncInflight(ModeRemote)
		defer s.metricsDecInflight(ModeRemote)

		start := time.Now()
		val, err := s.registry.Remote.ExecRemotely(bctx, spawn)
		dur := time.Since(start)
		s.emitBranchDone(spawn, ModeRemote, dur, err)
		out <- branchResult[R]{mode: ModeRemote, value: val, err: err, dur: dur}
	}()
	return b
}

// startLocalDelayed launches the local branch, first waiting delay (to
// give the remote branch a head start per WithLocalExecutionDelay), then
// attempting to acquire a CPU permit with a non-blocking TryAcquire —
// the back-pressure fast path: a saturated permit pool skips local
// execution entirely rather than queuing for a slot, reporting
// ErrPermitDenied so the arbiter knows this branch never really ran.
func (s *DynamicSpawnStrategy[R]) startLocalDelayed(ctx context.Context, spawn Spawn, delay time.Duration, out chan<- branchResult[R]) *branch[R] {
	bctx, cancel := context.WithCancel(ctx)
	b := &branch[R]{mode: ModeLocal, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(b.done)

		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-bctx.Done():
				out <- branchResult[R]{mode: ModeLocal, err: bctx.Err()}
				return
			}
		}

		if !s.sem.TryAcquire(1) {
			s.metricsIncPermitDenied()
			s.emitPermitDenied(spawn)
			out <- branchResult[R]{mode: ModeLocal, err: ErrPermitDenied}
			return
		}
		defer s.sem.Release(1)

		s.emitBranchStart(spawn, ModeLocal)
		s.metricsIncInflight(ModeLocal)
		defer s.metricsDecInflight(ModeLocal)

		start := time.Now()
		val, err := s.registry.Local.ExecLocally(bctx, spawn)
		dur := time.Since(start)
		s.emitBranchDone(spawn, ModeLocal, dur, err)
		out <- branchResult[R]{mode: ModeLocal, value: val, err: err, dur: dur}
	}()
	return b
}
