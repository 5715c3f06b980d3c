package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studiowebux/execbench/internal/catalog"
	"github.com/studiowebux/execbench/internal/types"
)

const (
	// WelcomeMessage is served on GET /
	WelcomeMessage = "Welcome to the Code Executor API! Use POST /execute to run code."

	maxLogs = 1000
)

// languageAliases maps accepted spellings to catalog languages
var languageAliases = map[string]string{
	"c++": "cpp",
}

// Server is a conforming execute endpoint that answers from a catalog
// instead of running code
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	answers    map[string]string // code -> expected output
	names      map[string]string // code -> case name
	languages  map[string]bool
	counts     map[string]int
	countsMu   sync.Mutex
	rng        *rand.Rand
	rngMu      sync.Mutex
	logs       []RequestLog
	logsMutex  sync.RWMutex
	notifyCh   chan RequestLog // logged requests for a watcher, dropped when full
}

// NewServer creates a stub answering for every case of cat
func NewServer(config *Config, cat *catalog.Catalog) *Server {
	if config.Port == 0 {
		config.Port = 3000
	}
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.Shape == "" {
		config.Shape = types.ResponseDualChannel
	}

	s := &Server{
		config:    config,
		answers:   make(map[string]string, cat.Len()),
		names:     make(map[string]string, cat.Len()),
		languages: make(map[string]bool),
		counts:    make(map[string]int),
		rng:       rand.New(rand.NewSource(config.Seed)),
		logs:      make([]RequestLog, 0),
		notifyCh:  make(chan RequestLog, 100),
	}
	for _, tc := range cat.Cases() {
		s.answers[tc.Code] = tc.Expected
		s.names[tc.Code] = tc.Identity()
		s.languages[strings.ToLower(string(tc.Language))] = true
	}

	return s
}

// Handler returns the routes of the stub
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/", s.handleHome)
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("stub server error")
		}
	}()

	log.Info().Str("url", s.GetAddress()).Str("shape", string(s.config.Shape)).Msg("stub server started")
	return nil
}

// Stop stops the stub server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(WelcomeMessage))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Counts: s.Counts()})
}

// handleExecute answers a submitted program with the expected output of the matching catalog case
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req types.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse the request body as JSON: %v", err), http.StatusBadRequest)
		return
	}
	r.Body.Close()

	language := strings.ToLower(string(req.Language))
	if alias, ok := languageAliases[language]; ok {
		language = alias
	}
	s.countsMu.Lock()
	s.counts[language]++
	s.countsMu.Unlock()

	if s.config.Delay > 0 {
		select {
		case <-time.After(s.config.Delay):
		case <-r.Context().Done():
			return
		}
	}

	var output, errText string
	matched := ""
	injected := false

	switch {
	case !s.languages[language]:
		errText = fmt.Sprintf("Unsupported language: %s", req.Language)
	default:
		expected, ok := s.answers[strings.TrimSpace(req.Code)]
		if !ok {
			errText = "Unsupported program"
			break
		}
		matched = s.names[strings.TrimSpace(req.Code)]
		if s.inject() {
			injected = true
			errText = "NameError: name 'fib' is not defined"
			break
		}
		output = expected + "\n"
	}

	status := http.StatusOK
	if s.config.Status != 0 {
		status = s.config.Status
	}

	if s.config.Shape == types.ResponseSingleChannel {
		resp := singleResponse{Output: output}
		if errText != "" {
			resp.Error = &errText
		}
		writeJSON(w, status, resp)
	} else {
		writeJSON(w, status, dualResponse{Stdout: output, Stderr: errText})
	}

	if s.config.Logging {
		s.logRequest(RequestLog{
			Timestamp: start,
			Method:    r.Method,
			Path:      r.URL.Path,
			RequestID: r.Header.Get("X-Request-ID"),
			Language:  language,
			Matched:   matched,
			Injected:  injected,
			Status:    status,
			Duration:  time.Since(start),
		})
	}
}

// inject reports whether this call should get a wrong program output
func (s *Server) inject() bool {
	if s.config.FailRatio <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.config.FailRatio
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write stub response")
	}
}

// Counts returns /execute calls per language
func (s *Server) Counts() map[string]int {
	s.countsMu.Lock()
	defer s.countsMu.Unlock()

	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// logRequest adds a request to the log
func (s *Server) logRequest(entry RequestLog) {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, entry)

	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}

	select {
	case s.notifyCh <- entry:
	default:
	}
}

// NotifyChannel delivers logged requests as they arrive.
// Entries are dropped while nobody reads it.
func (s *Server) NotifyChannel() <-chan RequestLog {
	return s.notifyCh
}

// GetLogs returns a copy of the logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// GetAddress returns the base URL the stub listens on
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port)))
}
