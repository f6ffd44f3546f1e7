// Package scheduler implements dynamic spawn execution: racing a local
// and a remote execution of the same build action (a Spawn) and taking
// whichever finishes first, cancelling the loser once a winner is
// decided.
//
// The racing behavior is controlled by an ExecutionPolicy supplied per
// spawn (which modes a given action is even eligible to run on) and by
// DynamicSpawnStrategy's own Options (CPU permit budget, local-start
// delay, availability-info requirements). A CPU-count-bounded semaphore
// prevents the local branch of every in-flight race from oversubscribing
// the machine; when the permit pool is saturated, the strategy falls
// back to running the spawn remotely only.
package scheduler
