// Command dynspawn-demo exercises the dynamic spawn scheduler against a
// pair of fake local/remote executors, printing which branch wins each
// race and exposing the resulting Prometheus metrics for inspection.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nsbuild/dynexec/nestedset"
	"github.com/nsbuild/dynexec/scheduler"
	"github.com/nsbuild/dynexec/scheduler/emit"
	"github.com/nsbuild/dynexec/scheduler/metrics"
	"github.com/nsbuild/dynexec/scheduler/store"
)

// compileResult is the per-action payload this demo races local vs.
// remote execution for.
type compileResult struct {
	exitCode int
	summary  string
}

type demoSpawn struct {
	id       string
	mnemonic string
	inputs   *nestedset.Node[string]
}

func (s demoSpawn) ID() string                      { return s.id }
func (s demoSpawn) Mnemonic() string                { return s.mnemonic }
func (s demoSpawn) Inputs() *nestedset.Node[string] { return s.inputs }

// localSandbox pretends to run the action on this machine (1-15ms).
type localSandbox struct{}

func (localSandbox) ExecLocally(ctx context.Context, sp scheduler.Spawn) (compileResult, error) {
	delay := time.Duration(1+rand.Intn(15)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return compileResult{}, ctx.Err()
	}
	return compileResult{exitCode: 0, summary: fmt.Sprintf("local build of %s in %v", sp.Mnemonic(), delay)}, nil
}

// remoteService pretends to dispatch the action to a remote execution
// cluster (10-39ms).
type remoteService struct{}

func (remoteService) ExecRemotely(ctx context.Context, sp scheduler.Spawn) (compileResult, error) {
	delay := time.Duration(10+rand.Intn(30)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return compileResult{}, ctx.Err()
	}
	return compileResult{exitCode: 0, summary: fmt.Sprintf("remote build of %s in %v", sp.Mnemonic(), delay)}, nil
}

func main() {
	log.Println("Setting up Prometheus metrics...")
	registry := prometheus.NewRegistry()
	schedMetrics := metrics.New(registry)

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		log.Println("Metrics server listening on :9091")
		log.Println("Prometheus metrics: http://localhost:9091/metrics")
		if err := http.ListenAndServe(":9091", nil); err != nil {
			log.Printf("metrics server error: %v\n", err)
		}
	}()

	auditStore := store.NewMemoryAuditStore(256)
	defer func() { _ = auditStore.Close() }()

	strat, err := scheduler.New[compileResult](
		&scheduler.Registry[compileResult]{Local: localSandbox{}, Remote: remoteService{}},
		scheduler.WithCPUCount(4),
		scheduler.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
		scheduler.WithMetrics(schedMetrics),
		scheduler.WithAuditStore(auditStore),
	)
	if err != nil {
		log.Fatalf("failed to build scheduler: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Starting continuous spawn execution...")
	log.Println("Press Ctrl+C to stop")

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	runCount := 0
loop:
	for {
		select {
		case <-sigChan:
			log.Println("Received interrupt signal, shutting down...")
			break loop
		case <-ticker.C:
			runCount++
			inputs, buildErr := nestedset.NewBuilder[string](nestedset.Stable).
				AddDirect(fmt.Sprintf("src/module_%d.go", runCount)).
				Build()
			if buildErr != nil {
				log.Printf("failed to build inputs: %v\n", buildErr)
				continue
			}

			spawn := demoSpawn{
				id:       uuid.NewString(),
				mnemonic: "CompileGoModule",
				inputs:   inputs,
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			result, mode, execErr := strat.Exec(ctx, spawn, scheduler.AllowAllPolicy{})
			cancel()
			if execErr != nil {
				log.Printf("spawn %s failed: %v\n", spawn.ID(), execErr)
				continue
			}
			log.Printf("spawn %s won by %s: %s\n", spawn.ID(), mode, result.summary)

			if decision, loadErr := auditStore.LoadDecision(context.Background(), spawn.ID()); loadErr == nil {
				log.Printf("  recorded decision: winner=%s ran_both=%v\n", decision.WinningMode, decision.RanBothModes)
			}
		}
	}

	log.Println("===============================================")
	log.Printf("spawn scheduler demo finished after %d runs\n", runCount)
	log.Println("View detailed metrics at: http://localhost:9091/metrics")
	log.Println("===============================================")
}
