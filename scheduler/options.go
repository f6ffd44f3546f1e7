package scheduler

import (
	"time"

	"github.com/nsbuild/dynexec/scheduler/emit"
	"github.com/nsbuild/dynexec/scheduler/metrics"
	"github.com/nsbuild/dynexec/scheduler/store"
)

// Option is a functional option for configuring a DynamicSpawnStrategy.
//
// Example:
//
//	strat, err := scheduler.New(registry,
//	    scheduler.WithCPUCount(runtime.NumCPU()),
//	    scheduler.WithLocalExecutionDelay(500*time.Millisecond),
//	    scheduler.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
type Option func(*strategyConfig) error

// strategyConfig collects options before they are applied, allowing
// validation of combinations before a DynamicSpawnStrategy is built.
type strategyConfig struct {
	cpuCount                int
	localExecutionDelay     time.Duration
	debugSpawnScheduler     bool
	requireAvailabilityInfo bool
	availabilityInfoExempt  map[string]bool
	skipFirstBuild          bool
	emitter                 emit.Emitter
	metrics                 *metrics.SchedulerMetrics
	auditStore              store.AuditStore
}

// WithCPUCount sets the number of local-execution permits available to
// this strategy instance. Each racing local branch holds one permit
// for its duration (a single-branch local run takes none); when the
// pool is exhausted, new races are forced
// remote-only rather than queuing for a local slot (the back-pressure
// fast path). Default: 1.
func WithCPUCount(n int) Option {
	return func(c *strategyConfig) error {
		if n < 1 {
			return &SchedulerError{Category: CategoryPolicy, Code: "INVALID_CPU_COUNT", Message: "cpu count must be >= 1"}
		}
		c.cpuCount = n
		return nil
	}
}

// WithLocalExecutionDelay sets how long Exec waits before starting the
// local branch of a race, giving the remote branch a head start. This
// favors remote execution when both are equally likely to succeed,
// reducing local machine contention. Default: 0 (no delay).
func WithLocalExecutionDelay(d time.Duration) Option {
	return func(c *strategyConfig) error {
		c.localExecutionDelay = d
		return nil
	}
}

// WithDebugSpawnScheduler enables verbose emit.Event traffic describing
// every arbitration decision, intended for diagnosing unexpected
// cancellations rather than for production use.
func WithDebugSpawnScheduler(enabled bool) Option {
	return func(c *strategyConfig) error {
		c.debugSpawnScheduler = enabled
		return nil
	}
}

// WithRequireAvailabilityInfo requires that every spawn's
// ExecutionPolicy implement InformativePolicy and report
// HasAvailabilityInfo for it before Exec will run it; other spawns are
// rejected with a CategoryPolicy *SchedulerError of code
// XCODE_RELATED_PREREQ_UNMET rather than guessed at. Off by
// default: a spawn with no information either way is assumed eligible
// for both branches.
func WithRequireAvailabilityInfo(require bool) Option {
	return func(c *strategyConfig) error {
		c.requireAvailabilityInfo = require
		return nil
	}
}

// WithAvailabilityInfoExempt exempts spawns whose Mnemonic is in
// mnemonics from the WithRequireAvailabilityInfo check, for action
// kinds known in advance to be safe to race regardless of policy
// detail (e.g. local-only bookkeeping actions).
func WithAvailabilityInfoExempt(mnemonics ...string) Option {
	return func(c *strategyConfig) error {
		if c.availabilityInfoExempt == nil {
			c.availabilityInfoExempt = make(map[string]bool, len(mnemonics))
		}
		for _, m := range mnemonics {
			c.availabilityInfoExempt[m] = true
		}
		return nil
	}
}

// WithSkipFirstBuild disables dynamic racing for the strategy's first
// Exec call, running that spawn remote-only with no local branch and
// emitting a one-time fallback_single_branch event. Later calls race
// normally.
func WithSkipFirstBuild(skip bool) Option {
	return func(c *strategyConfig) error {
		c.skipFirstBuild = skip
		return nil
	}
}

// WithEmitter sets the observability sink for branch/strategy events.
// Default: emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(c *strategyConfig) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches Prometheus instrumentation. Default: metrics
// collection is disabled (a nil *metrics.SchedulerMetrics is tolerated
// throughout the strategy).
func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(c *strategyConfig) error {
		c.metrics = m
		return nil
	}
}

// WithAuditStore attaches a diagnostic log of scheduling decisions
// (which mode won, how long the losing branch took to tear down once
// cancelled).
// This is strictly a debugging aid: no Spawn or NestedSet is ever
// serialized into it. Default: store.NewMemoryAuditStore(0) (disabled,
// retains nothing).
func WithAuditStore(s store.AuditStore) Option {
	return func(c *strategyConfig) error {
		c.auditStore = s
		return nil
	}
}

func defaultConfig() strategyConfig {
	return strategyConfig{
		cpuCount:   1,
		emitter:    emit.NewNullEmitter(),
		auditStore: store.NewMemoryAuditStore(0),
	}
}
