package stub

import (
	"time"

	"github.com/studiowebux/execbench/internal/types"
)

// Config represents the stub server configuration
type Config struct {
	Port      int                 `json:"port" yaml:"port"`                                 // Server port (default: 3000)
	Host      string              `json:"host" yaml:"host"`                                 // Server host (default: 0.0.0.0)
	Shape     types.ResponseShape `json:"shape" yaml:"shape"`                               // dual-channel or single-channel
	Status    int                 `json:"status,omitempty" yaml:"status,omitempty"`         // Forced status code (0: 200)
	Delay     time.Duration       `json:"delay,omitempty" yaml:"delay,omitempty"`           // Delay before answering /execute
	FailRatio float64             `json:"failRatio,omitempty" yaml:"failRatio,omitempty"`   // Share of /execute calls answered with a wrong program output
	Seed      int64               `json:"seed,omitempty" yaml:"seed,omitempty"`             // Seed for failure injection
	Logging   bool                `json:"logging" yaml:"logging"`                           // Keep a request log
	Catalog   string              `json:"catalog,omitempty" yaml:"catalog,omitempty"`       // Catalog file; built-in catalog when empty
}

// dualResponse is the two-stream response shape
type dualResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// singleResponse is the one-stream response shape
type singleResponse struct {
	Output string  `json:"output"`
	Error  *string `json:"error"`
}

// statsResponse is returned by GET /stats
type statsResponse struct {
	Counts map[string]int `json:"counts"`
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	RequestID string        `json:"requestId,omitempty"`
	Language  string        `json:"language,omitempty"`
	Matched   string        `json:"matched,omitempty"` // catalog case answered, empty when unknown
	Injected  bool          `json:"injected,omitempty"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
}
