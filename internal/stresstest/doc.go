/*
Package stresstest drives load runs against a code execution endpoint.

# Overview

A run starts N virtual actors that share one catalog, one pooled HTTP
client and one reporter. Each actor repeats the same iteration until the
run duration elapses:

 1. select cases (all-in-order or uniform-random-one)
 2. for each case: dispatch, validate, report, sleep for the pacing delay

Within one actor cases run strictly one after another. Actors are not
ordered with respect to each other.

# Architecture

  - Executor (executor.go): actors under an errgroup, result collector
  - Stats (stats.go): latency distribution and pass/fail counts
  - Manager (manager.go): SQLite persistence of runs and per-check metrics
  - Config (config.go): run configuration and records

Actors send a CheckResult per case over a channel. A single collector
goroutine owns Stats, updates the Prometheus collectors and buffers
metric rows that are flushed to the database in batches.

# Cancellation

The run duration stops actors at case boundaries. A request that is in
flight when the duration elapses runs to completion, bounded by the request
timeout. Cancelling the parent context passed to Start (or calling Stop)
interrupts in-flight requests; those interrupted checks are not reported.

# Example Usage

	manager, err := NewManager("execbench.db")
	if err != nil {
		return err
	}
	defer manager.Close()

	executor, err := NewExecutor(&Config{
		BaseURL:       "http://0.0.0.0:3000",
		Actors:        3,
		Duration:      time.Minute,
		Pacing:        time.Second,
		Policy:        types.PolicyAllInOrder,
		ResponseShape: types.ResponseDualChannel,
		PayloadShape:  types.PayloadLanguageCode,
	}, Deps{
		Catalog:  catalog.Default(),
		Reporter: report.NewLogReporter(log.Logger),
		Manager:  manager,
	})
	if err != nil {
		return err
	}

	run, err := executor.Run(ctx)
	fmt.Printf("%d checks, %d failed, p95 %dms\n", run.TotalChecks, run.TotalFailed, run.P95DurationMs)
*/
package stresstest
