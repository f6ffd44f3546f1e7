package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestConcurrentSpawnsRespectPermitPool races many spawns concurrently
// against a strategy with a small CPU permit pool, verifying the
// strategy never panics, never deadlocks, and every spawn eventually
// resolves to a winner under concurrent load.
func TestConcurrentSpawnsRespectPermitPool(t *testing.T) {
	intRegistry := &Registry[int]{
		Local:  intExecutor{delay: 5 * time.Millisecond, value: 1},
		Remote: intExecutor{delay: 15 * time.Millisecond, value: 2},
	}

	strat, err := New[int](intRegistry, WithCPUCount(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const spawns = 100
	var wg sync.WaitGroup
	wg.Add(spawns)
	errs := make(chan error, spawns)

	for i := 0; i < spawns; i++ {
		go func(idx int) {
			defer wg.Done()
			_, _, err := strat.Exec(context.Background(), newFakeSpawn(string(rune('a'+idx%26))+string(rune(idx))), AllowAllPolicy{})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected Exec error under concurrent load: %v", err)
	}
}

type intExecutor struct {
	delay time.Duration
	value int
	err   error
}

func (f intExecutor) ExecLocally(ctx context.Context, _ Spawn) (int, error) {
	return f.run(ctx)
}

func (f intExecutor) ExecRemotely(ctx context.Context, _ Spawn) (int, error) {
	return f.run(ctx)
}

func (f intExecutor) run(ctx context.Context) (int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.value, f.err
}

// TestStopBranchIsIdempotent exercises calling stop() twice on the same
// branch (once by the arbiter declaring a winner, once defensively by a
// caller cleaning up), verifying the done-semaphore handshake never
// double-closes a channel or blocks forever.
func TestStopBranchIsIdempotent(t *testing.T) {
	out := make(chan branchResult[string], 1)
	ctx, cancel := context.WithCancel(context.Background())
	b := &branch[string]{mode: ModeLocal, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(b.done)
		<-ctx.Done()
		out <- branchResult[string]{mode: ModeLocal, err: ctx.Err()}
	}()

	b.stop()
	b.stop() // must not panic or hang
}
