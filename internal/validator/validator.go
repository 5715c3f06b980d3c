package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/studiowebux/execbench/internal/dispatcher"
	"github.com/studiowebux/execbench/internal/types"
)

// Reason classifies a failed check
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonTransport     Reason = "transport"
	ReasonStatus        Reason = "status"
	ReasonDecode        Reason = "decode"
	ReasonMissingFields Reason = "missing-fields"
	ReasonMismatch      Reason = "mismatch"
)

// Default JMESPath expressions per shape
var (
	DualChannelFields   = []string{"stdout", "stderr"}
	SingleChannelFields = []string{"output"}
)

// FailureDetail has everything needed to reproduce a failed check without re-running it
type FailureDetail struct {
	TestIdentity   string                 `json:"test"`
	Language       types.Language         `json:"language"`
	RequestPayload types.ExecutionRequest `json:"payload"`
	ResponseStatus int                    `json:"status"` // 0 when no response was received
	Expected       string                 `json:"expected"`
	RawBody        string                 `json:"body"`
	TransportError string                 `json:"transportError,omitempty"`
	RequestID      string                 `json:"requestId,omitempty"`
}

// Outcome is the verdict for one case in one iteration
type Outcome struct {
	Passed  bool
	Reason  Reason
	Message string
	Failure *FailureDetail
}

// Validator checks responses against one configured response shape
type Validator struct {
	shape    types.ResponseShape
	channels []*jmespath.JMESPath
	names    []string
}

// New creates a Validator for shape. fields overrides the default channel
// expressions (e.g. "result.stdout"); nil keeps the defaults.
func New(shape types.ResponseShape, fields []string) (*Validator, error) {
	if _, err := types.ParseResponseShape(string(shape)); err != nil {
		return nil, types.NewConfigurationError("response_shape", err.Error())
	}

	if len(fields) == 0 {
		if shape == types.ResponseDualChannel {
			fields = DualChannelFields
		} else {
			fields = SingleChannelFields
		}
	}
	if shape == types.ResponseSingleChannel && len(fields) != 1 {
		return nil, types.NewConfigurationError("response_fields", "single-channel validation takes exactly one field")
	}

	v := &Validator{shape: shape, names: fields}
	for _, f := range fields {
		jp, err := jmespath.Compile(f)
		if err != nil {
			return nil, types.NewConfigurationError("response_fields", fmt.Sprintf("invalid JMESPath expression '%s': %v", f, err))
		}
		v.channels = append(v.channels, jp)
	}

	return v, nil
}

// Validate produces the outcome for a dispatch. transportErr is the error
// returned by the dispatcher, if any. Failures are outcomes, never errors.
func (v *Validator) Validate(tc types.TestCase, payload types.ExecutionRequest, resp *types.ExecutionResponse, transportErr error) Outcome {
	if transportErr != nil || resp == nil {
		msg := "no response"
		if transportErr != nil {
			msg = transportErr.Error()
		}
		return v.fail(tc, payload, resp, transportErr, ReasonTransport, msg)
	}

	if resp.Status != http.StatusOK {
		return v.fail(tc, payload, resp, nil, ReasonStatus, fmt.Sprintf("unexpected status %d", resp.Status))
	}

	var body interface{}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return v.fail(tc, payload, resp, nil, ReasonDecode, fmt.Sprintf("failed to parse JSON body: %v", err))
	}

	found := false
	for _, jp := range v.channels {
		value, err := jp.Search(body)
		if err != nil || value == nil {
			continue
		}
		found = true

		var text string
		var ok bool
		if v.shape == types.ResponseSingleChannel {
			// output must be a string; it is trimmed before matching
			var s string
			if s, ok = value.(string); ok {
				text = strings.TrimSpace(s)
			}
		} else {
			text, ok = toText(value), true
		}

		if ok && text != "" && strings.Contains(text, tc.Expected) {
			return Outcome{Passed: true}
		}
	}

	if !found {
		return v.fail(tc, payload, resp, nil, ReasonMissingFields,
			fmt.Sprintf("response has none of the fields %s", strings.Join(v.names, ", ")))
	}

	return v.fail(tc, payload, resp, nil, ReasonMismatch,
		fmt.Sprintf("%s does not contain expected output %q", strings.Join(v.names, " or "), tc.Expected))
}

func (v *Validator) fail(tc types.TestCase, payload types.ExecutionRequest, resp *types.ExecutionResponse, transportErr error, reason Reason, msg string) Outcome {
	detail := &FailureDetail{
		TestIdentity:   tc.Identity(),
		Language:       tc.Language,
		RequestPayload: payload,
		Expected:       tc.Expected,
	}

	if resp != nil {
		detail.ResponseStatus = resp.Status
		detail.RawBody = resp.Body
		detail.RequestID = resp.RequestID
	}
	if transportErr != nil {
		detail.TransportError = transportErr.Error()
		detail.RawBody = transportErr.Error()
		var te *dispatcher.TransportError
		if errors.As(transportErr, &te) {
			detail.RequestID = te.RequestID
		}
	}

	return Outcome{Passed: false, Reason: reason, Message: msg, Failure: detail}
}

// toText renders a decoded JSON value as text
func toText(value interface{}) string {
	switch val := value.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = toText(item)
		}
		return strings.Join(parts, ",")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
