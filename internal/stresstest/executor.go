package stresstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/dispatcher"
	"github.com/studiowebux/execbench/internal/metrics"
	"github.com/studiowebux/execbench/internal/report"
	"github.com/studiowebux/execbench/internal/selector"
	"github.com/studiowebux/execbench/internal/types"
	"github.com/studiowebux/execbench/internal/validator"
)

const defaultBufferSize = 100

// CheckResult is one validated case from one actor iteration
type CheckResult struct {
	Actor        int
	Iteration    int
	TestCase     types.TestCase
	Outcome      validator.Outcome
	StatusCode   int
	Duration     time.Duration
	ElapsedMs    int64
	RequestSize  int64
	ResponseSize int64
	Timestamp    time.Time
}

// Deps are the collaborators an Executor drives. Manager and Metrics are optional.
type Deps struct {
	Catalog  *catalog.Catalog
	Reporter report.Reporter
	Manager  *Manager
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Executor runs N virtual actors against the execute endpoint for a fixed duration
type Executor struct {
	config     *Config
	deps       Deps
	dispatcher *dispatcher.Dispatcher
	validator  *validator.Validator
	run        *Run
	stats      *Stats
	statsMu    sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	group      *errgroup.Group
	resultChan chan *CheckResult
	collected  chan struct{}
	testStart  time.Time
	metricsBuf []*Metric
	bufferSize int
}

// NewExecutor validates the configuration and prepares a run.
// All configuration problems surface here, before any traffic is sent.
func NewExecutor(config *Config, deps Deps) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		return nil, types.NewConfigurationError("catalog", "catalog is required")
	}
	if deps.Reporter == nil {
		return nil, types.NewConfigurationError("reporter", "reporter is required")
	}
	if err := selector.Validate(deps.Catalog, config.Policy); err != nil {
		return nil, err
	}
	if _, err := types.ParsePayloadShape(string(config.PayloadShape)); err != nil {
		return nil, types.NewConfigurationError("payload_shape", err.Error())
	}

	v, err := validator.New(config.ResponseShape, config.ResponseFields)
	if err != nil {
		return nil, err
	}

	d, err := dispatcher.New(dispatcher.Options{
		BaseURL:        config.BaseURL,
		RequestTimeout: config.RequestTimeout,
		MaxConns:       config.Actors,
		UserAgent:      config.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	return &Executor{
		config:     config,
		deps:       deps,
		dispatcher: d,
		validator:  v,
		stats:      NewStats(),
		resultChan: make(chan *CheckResult, config.Actors*2),
		collected:  make(chan struct{}),
		metricsBuf: make([]*Metric, 0, defaultBufferSize),
		bufferSize: defaultBufferSize,
	}, nil
}

// Start creates the run record and launches the actors and the result collector.
// Cancelling parent interrupts in-flight requests; the run duration does not.
func (e *Executor) Start(parent context.Context) error {
	e.ctx, e.cancelFunc = context.WithCancel(parent)
	e.testStart = time.Now()

	e.run = &Run{
		BaseURL:       e.config.BaseURL,
		Policy:        string(e.config.Policy),
		ResponseShape: string(e.config.ResponseShape),
		PayloadShape:  string(e.config.PayloadShape),
		Actors:        e.config.Actors,
		DurationMs:    e.config.Duration.Milliseconds(),
		PacingMs:      e.config.Pacing.Milliseconds(),
		Seed:          e.config.Seed,
		StartedAt:     e.testStart,
		Status:        StatusRunning,
	}
	if e.deps.Manager != nil {
		if err := e.deps.Manager.CreateRun(e.run); err != nil {
			e.cancelFunc()
			return fmt.Errorf("failed to create run record: %w", err)
		}
	}

	e.deps.Logger.Info().
		Str("url", e.dispatcher.URL()).
		Int("vus", e.config.Actors).
		Dur("duration", e.config.Duration).
		Dur("pacing", e.config.Pacing).
		Str("policy", string(e.config.Policy)).
		Str("response_shape", string(e.config.ResponseShape)).
		Int("cases", e.deps.Catalog.Len()).
		Msg("starting load run")

	go e.collectResults()

	runCtx, cancelRun := context.WithTimeout(e.ctx, e.config.Duration)
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < e.config.Actors; i++ {
		actor := i
		g.Go(func() error {
			return e.actor(gctx, actor)
		})
	}
	e.group = g

	go func() {
		<-e.ctx.Done()
		cancelRun()
	}()

	return nil
}

// Stop cancels the run, interrupting in-flight requests
func (e *Executor) Stop() {
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
}

// Wait blocks until every actor has finished and the results are persisted,
// then returns the finalized run record
func (e *Executor) Wait() (*Run, error) {
	err := e.group.Wait()
	close(e.resultChan)
	<-e.collected

	status := StatusCompleted
	switch {
	case err != nil:
		status = StatusFailed
	case e.ctx.Err() != nil:
		status = StatusCancelled
	}
	e.cancelFunc()
	e.dispatcher.CloseIdleConnections()

	e.finalize(status)

	return e.run, err
}

// Run starts the run and waits for it
func (e *Executor) Run(ctx context.Context) (*Run, error) {
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	return e.Wait()
}

// GetStats returns a snapshot of the current statistics
func (e *Executor) GetStats() *Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats.Copy()
}

// GetRun returns the current run record
func (e *Executor) GetRun() *Run {
	return e.run
}

// actor loops select, dispatch, validate, report and pace until ctx is done.
// A case that has started always runs to completion.
func (e *Executor) actor(ctx context.Context, id int) error {
	e.deps.Metrics.ActorStarted()
	defer e.deps.Metrics.ActorStopped()
	e.incActive(1)
	defer e.incActive(-1)

	rng := selector.NewRand(e.config.Seed, id)

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			return nil
		}

		cases, err := selector.Select(e.deps.Catalog, e.config.Policy, rng)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			<-ctx.Done()
			return nil
		}

		for _, tc := range cases {
			if ctx.Err() != nil {
				return nil
			}
			if !e.check(id, iteration, tc) {
				return nil
			}
			if !sleep(ctx, e.config.Pacing) {
				return nil
			}
		}
	}
}

// check runs one case. It returns false when the run was cancelled mid-request.
func (e *Executor) check(actor, iteration int, tc types.TestCase) bool {
	payload := dispatcher.BuildPayload(tc, e.config.PayloadShape)

	reqCtx, cancel := context.WithTimeout(e.ctx, e.requestTimeout())
	start := time.Now()
	resp, err := e.dispatcher.Dispatch(reqCtx, payload)
	duration := time.Since(start)
	cancel()

	if err != nil && e.ctx.Err() != nil {
		// stopped by the caller, not a failure of the target
		return false
	}

	var transportErr error
	if err != nil {
		var te *dispatcher.TransportError
		if !errors.As(err, &te) {
			e.deps.Logger.Error().Err(err).Str("test", tc.Identity()).Msg("failed to build request")
		}
		transportErr = err
	}

	outcome := e.validator.Validate(tc, payload, resp, transportErr)
	e.deps.Reporter.Report(actor, tc, outcome)

	result := &CheckResult{
		Actor:     actor,
		Iteration: iteration,
		TestCase:  tc,
		Outcome:   outcome,
		Duration:  duration,
		ElapsedMs: time.Since(e.testStart).Milliseconds(),
		Timestamp: time.Now(),
	}
	if resp != nil {
		result.StatusCode = resp.Status
		result.Duration = resp.Duration
		result.RequestSize = int64(resp.RequestSize)
		result.ResponseSize = int64(resp.ResponseSize)
	}

	e.resultChan <- result
	return true
}

func (e *Executor) requestTimeout() time.Duration {
	if e.config.RequestTimeout > 0 {
		return e.config.RequestTimeout
	}
	return dispatcher.DefaultRequestTimeout
}

func (e *Executor) incActive(delta int) {
	e.statsMu.Lock()
	e.stats.ActiveActors += delta
	e.statsMu.Unlock()
}

// collectResults is the only writer of stats and the metric buffer
func (e *Executor) collectResults() {
	defer close(e.collected)

	for result := range e.resultChan {
		isTransport := result.Outcome.Reason == validator.ReasonTransport
		durationMs := result.Duration.Milliseconds()

		e.statsMu.Lock()
		e.stats.AddResult(durationMs, result.Outcome.Passed, isTransport)
		e.statsMu.Unlock()

		e.deps.Metrics.ObserveCheck(string(result.TestCase.Language), result.Outcome.Passed,
			string(result.Outcome.Reason), result.Duration, isTransport)

		if e.deps.Manager == nil {
			continue
		}

		e.metricsBuf = append(e.metricsBuf, &Metric{
			RunID:        e.run.ID,
			Timestamp:    result.Timestamp,
			ElapsedMs:    result.ElapsedMs,
			Actor:        result.Actor,
			Test:         result.TestCase.Identity(),
			Language:     string(result.TestCase.Language),
			StatusCode:   result.StatusCode,
			DurationMs:   durationMs,
			RequestSize:  result.RequestSize,
			ResponseSize: result.ResponseSize,
			Passed:       result.Outcome.Passed,
			Reason:       string(result.Outcome.Reason),
		})

		if len(e.metricsBuf) >= e.bufferSize {
			e.flushMetrics()
		}
	}

	e.flushMetrics()
}

// flushMetrics writes buffered metrics to the database
func (e *Executor) flushMetrics() {
	if len(e.metricsBuf) == 0 || e.deps.Manager == nil {
		return
	}

	if err := e.deps.Manager.SaveMetricsBatch(e.metricsBuf); err != nil {
		e.deps.Logger.Warn().Err(err).Int("count", len(e.metricsBuf)).Msg("failed to save metrics")
	}

	e.metricsBuf = e.metricsBuf[:0]
}

// finalize completes the run record with final statistics
func (e *Executor) finalize(status string) {
	e.statsMu.Lock()
	now := time.Now()
	e.run.CompletedAt = &now
	e.run.Status = status
	e.run.TotalChecks = e.stats.CompletedChecks
	e.run.TotalPassed = e.stats.PassedCount
	e.run.TotalFailed = e.stats.FailedCount
	e.run.TotalTransportErrors = e.stats.TransportErrors
	e.run.AvgDurationMs = e.stats.AvgDurationMs()
	e.run.MinDurationMs = e.stats.Min()
	e.run.MaxDurationMs = e.stats.Max()
	e.run.P50DurationMs = e.stats.P50()
	e.run.P95DurationMs = e.stats.P95()
	e.run.P99DurationMs = e.stats.P99()
	e.statsMu.Unlock()

	if e.deps.Manager != nil {
		if err := e.deps.Manager.UpdateRun(e.run); err != nil {
			e.deps.Logger.Warn().Err(err).Int64("run_id", e.run.ID).Msg("failed to update run record")
		}
	}

	e.deps.Logger.Info().
		Int64("run_id", e.run.ID).
		Str("status", status).
		Int("checks", e.run.TotalChecks).
		Int("passed", e.run.TotalPassed).
		Int("failed", e.run.TotalFailed).
		Msg("load run finished")
}

// sleep waits for d or until ctx is done; it reports whether the full delay elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
