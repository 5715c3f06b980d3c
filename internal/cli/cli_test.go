package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/config"
	"github.com/studiowebux/execbench/internal/report"
	"github.com/studiowebux/execbench/internal/stresstest"
	"github.com/studiowebux/execbench/internal/stub"
	"github.com/studiowebux/execbench/internal/types"
	"github.com/studiowebux/execbench/internal/validator"
)

func stubURL(t *testing.T, cfg *stub.Config) string {
	s := stub.NewServer(cfg, catalog.Default())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func quickRun(baseURL string) *config.RunConfig {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.VUs = 2
	cfg.Duration = 300 * time.Millisecond
	cfg.Pacing = 10 * time.Millisecond
	cfg.Seed = 1
	cfg.NoStore = true
	return &cfg
}

func TestRun_AllPass(t *testing.T) {
	cfg := quickRun(stubURL(t, &stub.Config{Shape: types.ResponseDualChannel}))

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs, UserAgent: "execbench/test"})
	require.NoError(t, err)

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out.String(), "(completed)")
	assert.Contains(t, out.String(), "0 failed")
	assert.NotContains(t, logs.String(), `"level":"error"`)
}

func TestRun_FailuresSetExitCode(t *testing.T) {
	cfg := quickRun(stubURL(t, &stub.Config{Shape: types.ResponseDualChannel, Status: 500}))
	cfg.Languages = []string{"python"}

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs})
	require.NoError(t, err)

	assert.Equal(t, ExitFailures, code)
	assert.Contains(t, out.String(), "status=")
	assert.Contains(t, out.String(), "python: unexpected status 500")

	var failures int
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["level"] == "error" {
			failures++
			assert.Equal(t, "python", record["language"])
		}
	}
	assert.Positive(t, failures)
}

func TestRun_LogsProgress(t *testing.T) {
	cfg := quickRun(stubURL(t, &stub.Config{Shape: types.ResponseDualChannel}))
	cfg.Duration = 400 * time.Millisecond

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs, Progress: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	var progress []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["message"] == "load run progress" {
			progress = append(progress, record)
		}
	}
	require.NotEmpty(t, progress)
	assert.Equal(t, float64(cfg.VUs), progress[0]["active_actors"])
	assert.Contains(t, progress[0], "checks")
	assert.Equal(t, float64(0), progress[len(progress)-1]["failed"])
}

func TestRun_PersistsRun(t *testing.T) {
	cfg := quickRun(stubURL(t, &stub.Config{Shape: types.ResponseDualChannel}))
	cfg.NoStore = false
	cfg.DB = filepath.Join(t.TempDir(), "runs.db")

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	m, err := stresstest.NewManager(cfg.DB)
	require.NoError(t, err)
	defer m.Close()

	runs, err := m.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, stresstest.StatusCompleted, runs[0].Status)
	assert.Positive(t, runs[0].TotalChecks)
}

func TestRun_ConfigurationErrors(t *testing.T) {
	cfg := quickRun("http://127.0.0.1:1")
	cfg.Languages = []string{"cobol"}

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs})
	require.Error(t, err)
	assert.Equal(t, ExitError, code)
	assert.True(t, errors.Is(err, types.ErrConfiguration), "got %v", err)
	assert.Empty(t, out.String())
}

func TestRun_MistypedCatalogIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tests":[{"language":"python","code":"print(1)","expected":"1"}]}`), 0644))

	cfg := quickRun("http://127.0.0.1:1")
	cfg.Catalog = path

	var out, logs bytes.Buffer
	code, err := Run(context.Background(), cfg, RunOptions{Out: &out, Log: &logs})
	require.Error(t, err)
	assert.Equal(t, ExitError, code)
	assert.Empty(t, out.String())
}

func TestPrintSummary_Plain(t *testing.T) {
	run := &stresstest.Run{
		ID: 7, Status: stresstest.StatusCompleted, BaseURL: "http://exec:3000",
		Policy: "all-in-order", ResponseShape: "dual-channel", PayloadShape: "language-code",
		Actors: 3, DurationMs: 60000, PacingMs: 1000,
		TotalChecks: 10, TotalPassed: 8, TotalFailed: 2,
		P50DurationMs: 12, P95DurationMs: 40,
	}
	summary := report.Summary{
		Passed:   8,
		Failed:   2,
		Reasons:  map[validator.Reason]int64{validator.ReasonMismatch: 2},
		Messages: []report.Message{{Text: "java: expected output not found", Count: 2}},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, run, summary)
	out := buf.String()

	assert.Contains(t, out, "execbench run #7 (completed)")
	assert.Contains(t, out, "10 total, 8 passed, 2 failed (80.0% passed)")
	assert.Contains(t, out, "mismatch=2")
	assert.Contains(t, out, "2x java: expected output not found")
	assert.NotContains(t, out, "\x1b[", "no escape codes outside a terminal")
}

func TestPrintSummary_CapsMessages(t *testing.T) {
	var messages []report.Message
	for i := 0; i < maxMessages+3; i++ {
		messages = append(messages, report.Message{Text: strings.Repeat("x", i+1), Count: 1})
	}

	var buf bytes.Buffer
	PrintSummary(&buf, &stresstest.Run{}, report.Summary{Messages: messages})
	assert.Contains(t, buf.String(), "... 3 more")
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintCatalog(&buf, catalog.Default(), "text"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, catalog.Default().Len()+1)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, buf.String(), `"6765"`)
}

func TestPrintCatalog_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintCatalog(&buf, catalog.Default(), "json"))

	var cases []types.TestCase
	require.NoError(t, json.Unmarshal(buf.Bytes(), &cases))
	assert.Equal(t, catalog.Default().Cases(), cases)
}

func TestPrintCatalog_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PrintCatalog(&buf, catalog.Default(), "toml"))
}

func TestShowCase_PlainCode(t *testing.T) {
	tc := catalog.Default().At(0)

	var buf bytes.Buffer
	require.NoError(t, ShowCase(&buf, tc, "text"))
	assert.Contains(t, buf.String(), tc.Code)
	assert.Contains(t, buf.String(), string(tc.Language))
}

func TestShowCase_Structured(t *testing.T) {
	tc := catalog.Default().At(3)

	var buf bytes.Buffer
	require.NoError(t, ShowCase(&buf, tc, "json"))
	var decoded types.TestCase
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, tc, decoded)

	buf.Reset()
	require.NoError(t, ShowCase(&buf, tc, "yaml"))
	assert.Contains(t, buf.String(), "language: cpp")
	assert.Contains(t, buf.String(), "expected: \"6765\"")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintRuns(&buf, nil, "text"))
	assert.Equal(t, "no runs recorded\n", buf.String())

	buf.Reset()
	runs := []*stresstest.Run{
		{ID: 2, StartedAt: time.Now(), Status: stresstest.StatusFailed, Policy: "uniform-random-one", Actors: 30, TotalChecks: 100, TotalFailed: 4},
		{ID: 1, StartedAt: time.Now(), Status: stresstest.StatusCompleted, Policy: "all-in-order", Actors: 3, TotalChecks: 12},
	}
	require.NoError(t, PrintRuns(&buf, runs, "text"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "2 "))
	assert.Contains(t, lines[1], "uniform-random-one")
}

func TestPrintRun_FailureBreakdown(t *testing.T) {
	run := &stresstest.Run{ID: 3, Status: stresstest.StatusCompleted, StartedAt: time.Now()}
	failures := map[string]int{"status": 5, "transport": 1}

	var buf bytes.Buffer
	require.NoError(t, PrintRun(&buf, run, failures, "text"))
	assert.Contains(t, buf.String(), "run #3")
	assert.Contains(t, buf.String(), "non-200 status")
	assert.Contains(t, buf.String(), "no response")

	buf.Reset()
	require.NoError(t, PrintRun(&buf, run, failures, "yaml"))
	assert.Contains(t, buf.String(), "failures:")
	assert.Contains(t, buf.String(), "status: 5")
}

func TestReasonLabel(t *testing.T) {
	assert.Equal(t, "invalid JSON", ReasonLabel(validator.ReasonDecode))
	assert.Equal(t, "something-else", ReasonLabel(validator.Reason("something-else")))
}
