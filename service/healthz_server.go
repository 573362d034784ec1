package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-harness/metrics"
)

// RunStatus is the externally visible state of the most recent run
type RunStatus struct {
	RunID      string            `json:"runId"`
	Run        int64             `json:"run"` // 1-based sequence number within this process
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"` // set when the run could not be performed
	Running    bool              `json:"running"`
	Total      int               `json:"total"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Errored    int               `json:"errored"`
	TimedOut   int               `json:"timedOut"`
	Rejected   int               `json:"rejected"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt,omitzero"`
	Outcomes   map[string]string `json:"outcomes,omitempty"` // test name -> outcome
}

type HealthzServer struct {
	ctx    context.Context
	server *http.Server

	mu     sync.RWMutex
	status *RunStatus
}

// SetStatus replaces the status served on /status
func (h *HealthzServer) SetStatus(status RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = &status
}

// Router returns the handler tree served by Start
func (h *HealthzServer) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Handle).Methods(http.MethodGet)
	r.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/status/tests/{name}", h.handleTestStatus).Methods(http.MethodGet)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Handler:           h.Router(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.server = server
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (h *HealthzServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	status := h.status
	h.mu.RUnlock()

	if status == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has started yet"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *HealthzServer) handleTestStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	h.mu.RLock()
	var (
		outcome string
		found   bool
		runID   string
	)
	if h.status != nil {
		runID = h.status.RunID
		outcome, found = h.status.Outcomes[name]
	}
	h.mu.RUnlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown test", "name": name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"runId": runID, "name": name, "outcome": outcome})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Error("failed to marshal status response", "error", err)
		metrics.RecordErrorDetails("status response", err)
		code = http.StatusInternalServerError
		body = []byte("internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Error("failed to send status response", "error", err)
	}
}
