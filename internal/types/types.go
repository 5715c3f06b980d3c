package types

import (
	"fmt"
	"time"
)

// Language identifies the runtime a test case targets (python, javascript, java, cpp, ...)
// It is plain data so new languages need no code change.
type Language string

// TestCase is one catalog entry: a program and the substring its output must contain
type TestCase struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Language Language `json:"language" yaml:"language" validate:"required"`
	Code     string   `json:"code" yaml:"code" validate:"required"`
	Expected string   `json:"expected" yaml:"expected" validate:"required"`
}

// Identity returns the name used in logs and reports
func (tc TestCase) Identity() string {
	if tc.Name != "" {
		return tc.Name
	}
	return string(tc.Language)
}

// SelectionPolicy decides which test cases one iteration exercises
type SelectionPolicy string

const (
	// PolicyAllInOrder runs every case once, in catalog order
	PolicyAllInOrder SelectionPolicy = "all-in-order"
	// PolicyUniformRandomOne runs a single case drawn uniformly at random
	PolicyUniformRandomOne SelectionPolicy = "uniform-random-one"
)

// ResponseShape is the JSON contract the target service answers with
type ResponseShape string

const (
	// ResponseDualChannel is {"stdout": ..., "stderr": ...}
	ResponseDualChannel ResponseShape = "dual-channel"
	// ResponseSingleChannel is {"output": ...}
	ResponseSingleChannel ResponseShape = "single-channel"
)

// PayloadShape is the JSON body sent to the target service
type PayloadShape string

const (
	// PayloadLanguageCode sends {"language", "code"}
	PayloadLanguageCode PayloadShape = "language-code"
	// PayloadWithExpected also sends "expected"; the target is expected to ignore it
	PayloadWithExpected PayloadShape = "with-expected"
)

// ParseResponseShape converts a name into a ResponseShape
func ParseResponseShape(s string) (ResponseShape, error) {
	switch ResponseShape(s) {
	case ResponseDualChannel, ResponseSingleChannel:
		return ResponseShape(s), nil
	}
	return "", fmt.Errorf("unknown response shape %q (use %s or %s)", s, ResponseDualChannel, ResponseSingleChannel)
}

// ParsePayloadShape converts a name into a PayloadShape
func ParsePayloadShape(s string) (PayloadShape, error) {
	switch PayloadShape(s) {
	case PayloadLanguageCode, PayloadWithExpected:
		return PayloadShape(s), nil
	}
	return "", fmt.Errorf("unknown payload shape %q (use %s or %s)", s, PayloadLanguageCode, PayloadWithExpected)
}

// ExecutionRequest is the body POSTed to {base}/execute
type ExecutionRequest struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
	Expected string   `json:"expected,omitempty"`
}

// ExecutionResponse is what came back from the target service.
// The body is kept raw; validators decode it.
type ExecutionResponse struct {
	Status       int           `json:"status"`
	StatusText   string        `json:"statusText"`
	Body         string        `json:"body"`
	Duration     time.Duration `json:"duration"`
	RequestSize  int           `json:"requestSize"`  // bytes
	ResponseSize int           `json:"responseSize"` // bytes
	RequestID    string        `json:"requestId"`
}
