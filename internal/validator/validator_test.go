package validator

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/dispatcher"
	"github.com/studiowebux/execbench/internal/types"
)

func fibCase() types.TestCase {
	tc, _ := catalog.Default().Get("python")
	return tc
}

func respond(status int, body string) *types.ExecutionResponse {
	return &types.ExecutionResponse{Status: status, Body: body, RequestID: "req-1"}
}

func mustValidator(t *testing.T, shape types.ResponseShape) *Validator {
	v, err := New(shape, nil)
	require.NoError(t, err)
	return v
}

func TestDualChannel(t *testing.T) {
	v := mustValidator(t, types.ResponseDualChannel)
	tc := fibCase()
	payload := dispatcher.BuildPayload(tc, types.PayloadLanguageCode)

	tests := []struct {
		name       string
		status     int
		body       string
		wantPass   bool
		wantReason Reason
	}{
		{name: "stdout contains expected", status: 200, body: `{"stdout":"6765\n","stderr":""}`, wantPass: true},
		{name: "stderr only contains expected", status: 200, body: `{"stderr":"warning... 6765 ..."}`, wantPass: true},
		{name: "numeric stdout is converted to text", status: 200, body: `{"stdout":6765}`, wantPass: true},
		{name: "empty object", status: 200, body: `{}`, wantReason: ReasonMissingFields},
		{name: "null fields", status: 200, body: `{"stdout":null,"stderr":null}`, wantReason: ReasonMissingFields},
		{name: "wrong output", status: 200, body: `{"stdout":"","stderr":"NameError"}`, wantReason: ReasonMismatch},
		{name: "case sensitive", status: 200, body: `{"stdout":"HELLO"}`, wantReason: ReasonMismatch},
		{name: "not json", status: 200, body: `Output:\n6765\nError:\n`, wantReason: ReasonDecode},
		{name: "server error with matching body", status: 500, body: `{"stdout":"6765"}`, wantReason: ReasonStatus},
		{name: "created is not ok", status: 201, body: `{"stdout":"6765"}`, wantReason: ReasonStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := v.Validate(tc, payload, respond(tt.status, tt.body), nil)

			assert.Equal(t, tt.wantPass, outcome.Passed)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			if tt.wantPass {
				assert.Nil(t, outcome.Failure)
				return
			}
			require.NotNil(t, outcome.Failure)
			assert.Equal(t, tt.body, outcome.Failure.RawBody)
			assert.Equal(t, tt.status, outcome.Failure.ResponseStatus)
		})
	}
}

func TestSingleChannel(t *testing.T) {
	v := mustValidator(t, types.ResponseSingleChannel)
	tc := fibCase()
	payload := dispatcher.BuildPayload(tc, types.PayloadWithExpected)

	tests := []struct {
		name       string
		status     int
		body       string
		wantPass   bool
		wantReason Reason
	}{
		{name: "padded output is trimmed", status: 200, body: `{"output":"  6765  "}`, wantPass: true},
		{name: "output with error field", status: 200, body: `{"output":"6765\n","error":null}`, wantPass: true},
		{name: "substring must match exactly", status: 200, body: `{"output":"676"}`, wantReason: ReasonMismatch},
		{name: "non string output", status: 200, body: `{"output":6765}`, wantReason: ReasonMismatch},
		{name: "dual shape is not accepted", status: 200, body: `{"stdout":"6765"}`, wantReason: ReasonMissingFields},
		{name: "bad json", status: 200, body: `{"output":`, wantReason: ReasonDecode},
		{name: "server error", status: 500, body: `{"output":"6765"}`, wantReason: ReasonStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := v.Validate(tc, payload, respond(tt.status, tt.body), nil)

			assert.Equal(t, tt.wantPass, outcome.Passed)
			assert.Equal(t, tt.wantReason, outcome.Reason)
		})
	}
}

func TestFibScenario_NameErrorIsReportedWithBody(t *testing.T) {
	v := mustValidator(t, types.ResponseDualChannel)
	tc := fibCase()
	require.Equal(t, "6765", tc.Expected)
	payload := dispatcher.BuildPayload(tc, types.PayloadLanguageCode)

	ok := v.Validate(tc, payload, respond(http.StatusOK, `{"stdout": "6765\n", "stderr": ""}`), nil)
	assert.True(t, ok.Passed)

	failed := v.Validate(tc, payload, respond(http.StatusOK, `{"stdout": "", "stderr": "NameError"}`), nil)
	require.False(t, failed.Passed)
	require.NotNil(t, failed.Failure)
	assert.Contains(t, failed.Failure.RawBody, "NameError")
	assert.Equal(t, "python", failed.Failure.TestIdentity)
	assert.Equal(t, tc.Code, failed.Failure.RequestPayload.Code)
	assert.Equal(t, "6765", failed.Failure.Expected)
	assert.Equal(t, http.StatusOK, failed.Failure.ResponseStatus)
	assert.Equal(t, "req-1", failed.Failure.RequestID)
}

func TestEveryCatalogCase_500AlwaysFails(t *testing.T) {
	for _, shape := range []types.ResponseShape{types.ResponseDualChannel, types.ResponseSingleChannel} {
		v := mustValidator(t, shape)
		for _, tc := range catalog.Default().Cases() {
			for _, body := range []string{``, `{}`, `{"stdout":"6765"}`, `{"output":"6765"}`} {
				outcome := v.Validate(tc, dispatcher.BuildPayload(tc, types.PayloadLanguageCode), respond(500, body), nil)
				assert.False(t, outcome.Passed, "%s/%s body %q", shape, tc.Name, body)
				assert.Equal(t, ReasonStatus, outcome.Reason)
			}
		}
	}
}

func TestTransportError(t *testing.T) {
	v := mustValidator(t, types.ResponseDualChannel)
	tc := fibCase()
	transportErr := &dispatcher.TransportError{
		URL:       "http://0.0.0.0:3000/execute",
		RequestID: "req-9",
		Err:       errors.New("connection refused"),
	}

	outcome := v.Validate(tc, dispatcher.BuildPayload(tc, types.PayloadLanguageCode), nil, transportErr)

	require.False(t, outcome.Passed)
	assert.Equal(t, ReasonTransport, outcome.Reason)
	assert.Equal(t, 0, outcome.Failure.ResponseStatus)
	assert.Contains(t, outcome.Failure.TransportError, "connection refused")
	assert.Contains(t, outcome.Failure.RawBody, "connection refused")
	assert.Equal(t, "req-9", outcome.Failure.RequestID)
}

func TestCustomFields(t *testing.T) {
	v, err := New(types.ResponseDualChannel, []string{"result.stdout", "result.stderr"})
	require.NoError(t, err)
	tc := fibCase()

	outcome := v.Validate(tc, dispatcher.BuildPayload(tc, types.PayloadLanguageCode), respond(200, `{"result":{"stdout":"6765"}}`), nil)
	assert.True(t, outcome.Passed)
}

func TestNew_Errors(t *testing.T) {
	_, err := New("triple-channel", nil)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = New(types.ResponseSingleChannel, []string{"a", "b"})
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	_, err = New(types.ResponseDualChannel, []string{"stdout[", "stderr"})
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestToText(t *testing.T) {
	assert.Equal(t, "6765", toText(float64(6765)))
	assert.Equal(t, "1.5", toText(1.5))
	assert.Equal(t, "true", toText(true))
	assert.Equal(t, "a,1", toText([]interface{}{"a", float64(1)}))
	assert.Equal(t, `{"k":"v"}`, toText(map[string]interface{}{"k": "v"}))
	assert.Equal(t, "", toText(nil))
}
