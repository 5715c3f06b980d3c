package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/types"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{name: "default base", base: "http://0.0.0.0:3000", want: "http://0.0.0.0:3000/execute"},
		{name: "trailing slash", base: "http://localhost:3000/", want: "http://localhost:3000/execute"},
		{name: "with prefix path", base: "https://api.example.com/v1", want: "https://api.example.com/v1/execute"},
		{name: "missing scheme", base: "localhost:3000", wantErr: true},
		{name: "empty", base: "", wantErr: true},
		{name: "unsupported scheme", base: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Endpoint(tt.base)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPayload(t *testing.T) {
	tc := catalog.Default().At(0)

	plain := BuildPayload(tc, types.PayloadLanguageCode)
	body, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "expected")

	withExpected := BuildPayload(tc, types.PayloadWithExpected)
	body, err = json.Marshal(withExpected)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, map[string]string{
		"language": "python",
		"code":     tc.Code,
		"expected": "6765",
	}, decoded)
}

func TestDispatch_PostsJSONToExecute(t *testing.T) {
	var gotPath, gotMethod, gotContentType, gotRequestID string
	var gotBody types.ExecutionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get(RequestIDHeader)
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"stdout":"6765\n","stderr":""}`))
	}))
	defer server.Close()

	d, err := New(Options{BaseURL: server.URL, RequestTimeout: 5 * time.Second})
	require.NoError(t, err)

	tc := catalog.Default().At(0)
	resp, err := d.Dispatch(context.Background(), BuildPayload(tc, types.PayloadLanguageCode))
	require.NoError(t, err)

	assert.Equal(t, "/execute", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, tc.Code, gotBody.Code)
	assert.Equal(t, types.Language("python"), gotBody.Language)

	_, err = uuid.Parse(gotRequestID)
	assert.NoError(t, err, "request id must be a UUID")
	assert.Equal(t, gotRequestID, resp.RequestID)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"stdout":"6765\n","stderr":""}`, resp.Body)
	assert.Equal(t, len(resp.Body), resp.ResponseSize)
	assert.Greater(t, resp.RequestSize, 0)
}

func TestDispatch_NonOKStatusIsAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	d, err := New(Options{BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), types.ExecutionRequest{Language: "python", Code: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "boom", resp.Body)
}

func TestDispatch_ConnectionRefusedIsTransportError(t *testing.T) {
	// grab a free port, then close the listener so nothing answers
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	d, err := New(Options{BaseURL: "http://" + addr, RequestTimeout: 2 * time.Second})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), types.ExecutionRequest{Language: "python", Code: "print(1)"})
	assert.Nil(t, resp)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.NotEmpty(t, transportErr.RequestID)
	assert.False(t, transportErr.Timeout())
}

func TestDispatch_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	d, err := New(Options{BaseURL: server.URL, RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.ExecutionRequest{Language: "python", Code: "print(1)"})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout())
}
