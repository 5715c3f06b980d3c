package report

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/studiowebux/execbench/internal/types"
	"github.com/studiowebux/execbench/internal/validator"
)

// Reporter receives every validated case. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(actor int, tc types.TestCase, outcome validator.Outcome)
}

// LogReporter writes one structured record per failed check and keeps a tally
type LogReporter struct {
	logger zerolog.Logger

	passed atomic.Int64
	failed atomic.Int64

	mu       sync.Mutex
	reasons  map[validator.Reason]int64
	messages map[string]int64
}

// NewLogReporter creates a reporter writing to logger
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{
		logger:   logger,
		reasons:  make(map[validator.Reason]int64),
		messages: make(map[string]int64),
	}
}

// Report records the outcome; failures are logged with enough context to reproduce them
func (r *LogReporter) Report(actor int, tc types.TestCase, outcome validator.Outcome) {
	if outcome.Passed {
		r.passed.Add(1)
		return
	}
	r.failed.Add(1)

	r.mu.Lock()
	r.reasons[outcome.Reason]++
	r.messages[tc.Identity()+": "+outcome.Message]++
	r.mu.Unlock()

	event := r.logger.Error().
		Int("actor", actor).
		Str("test", tc.Identity()).
		Str("language", string(tc.Language)).
		Str("reason", string(outcome.Reason)).
		Str("expected", tc.Expected).
		Str("code", tc.Code)

	if detail := outcome.Failure; detail != nil {
		if detail.TransportError != "" {
			event = event.Bool("transport_error", true)
		} else {
			event = event.Int("status", detail.ResponseStatus)
		}
		if payload, err := json.Marshal(detail.RequestPayload); err == nil {
			event = event.RawJSON("payload", payload)
		}
		event = event.Str("body", detail.RawBody).Str("request_id", detail.RequestID)
	}

	event.Msgf("failed test for language: %s", tc.Language)
}

// Summary is a point-in-time copy of the tally
type Summary struct {
	Passed   int64
	Failed   int64
	Reasons  map[validator.Reason]int64
	Messages []Message
}

// Message is a distinct failure message and how often it occurred
type Message struct {
	Text  string
	Count int64
}

// Total returns the number of reported checks
func (s Summary) Total() int64 {
	return s.Passed + s.Failed
}

// Summary returns the current tally with messages de-duplicated, most frequent first
func (r *LogReporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Passed:  r.passed.Load(),
		Failed:  r.failed.Load(),
		Reasons: make(map[validator.Reason]int64, len(r.reasons)),
	}
	for reason, n := range r.reasons {
		s.Reasons[reason] = n
	}
	for text, n := range r.messages {
		s.Messages = append(s.Messages, Message{Text: text, Count: n})
	}
	sort.Slice(s.Messages, func(i, j int) bool {
		if s.Messages[i].Count != s.Messages[j].Count {
			return s.Messages[i].Count > s.Messages[j].Count
		}
		return s.Messages[i].Text < s.Messages[j].Text
	})

	return s
}
