package stresstest

import (
	"time"

	"github.com/studiowebux/execbench/internal/types"
)

// Run status values
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Config is the runtime configuration of one load run
type Config struct {
	BaseURL        string
	Actors         int
	Duration       time.Duration
	Pacing         time.Duration
	RequestTimeout time.Duration
	Policy         types.SelectionPolicy
	ResponseShape  types.ResponseShape
	PayloadShape   types.PayloadShape
	ResponseFields []string // JMESPath overrides for the response channels
	Seed           int64
	UserAgent      string
}

// Validate checks the parts of the configuration the executor depends on
func (c *Config) Validate() error {
	if c.Actors <= 0 {
		return types.NewConfigurationError("vus", "virtual actors must be greater than 0")
	}
	if c.Actors > 10000 {
		return types.NewConfigurationError("vus", "virtual actors cannot exceed 10000")
	}
	if c.Duration <= 0 {
		return types.NewConfigurationError("duration", "duration must be greater than 0")
	}
	if c.Pacing < 0 {
		return types.NewConfigurationError("pacing", "pacing cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return types.NewConfigurationError("timeout", "request timeout cannot be negative")
	}
	return nil
}

// Run represents a load run record
type Run struct {
	ID                   int64
	BaseURL              string
	Policy               string
	ResponseShape        string
	PayloadShape         string
	Actors               int
	DurationMs           int64
	PacingMs             int64
	Seed                 int64
	StartedAt            time.Time
	CompletedAt          *time.Time
	Status               string
	TotalChecks          int
	TotalPassed          int
	TotalFailed          int
	TotalTransportErrors int
	AvgDurationMs        float64
	MinDurationMs        int64
	MaxDurationMs        int64
	P50DurationMs        int64
	P95DurationMs        int64
	P99DurationMs        int64
}

// Metric is one validated check as stored in run_metrics.
// Only the failure reason is kept; full failure records go to the log.
type Metric struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	ElapsedMs    int64
	Actor        int
	Test         string
	Language     string
	StatusCode   int
	DurationMs   int64
	RequestSize  int64
	ResponseSize int64
	Passed       bool
	Reason       string
}

// PassRate returns the share of passed checks as a percentage
func (r *Run) PassRate() float64 {
	if r.TotalChecks == 0 {
		return 0
	}
	return float64(r.TotalPassed) / float64(r.TotalChecks) * 100
}
