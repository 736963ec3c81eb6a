package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/metrics"
	"github.com/veridian/vanguard/pkg/processor"
	"github.com/veridian/vanguard/pkg/queue"
	"github.com/veridian/vanguard/pkg/types"
)

// Config holds the ingest edge configuration.
type Config struct {
	ListenAddr string

	// APIKeys is the allowlist checked against the X-API-Key header. An
	// empty list disables authentication.
	APIKeys []string

	// RateLimitPerMinute caps sustained request rate per API key. Zero
	// disables rate limiting.
	RateLimitPerMinute int

	// MaxBatchSize caps the record count of one batch request.
	MaxBatchSize int
}

// Server is the HTTP ingest edge: it validates incoming records against
// their source schema and hands accepted records to the queue.
type Server struct {
	cfg      Config
	queue    *queue.Queue
	proc     *processor.Processor
	logger   zerolog.Logger
	start    time.Time
	limiters *keyLimiters
	http     *http.Server

	// ingestSeq numbers accepted records within this process.
	ingestSeq atomic.Uint64
}

// NewServer wires the routes and middleware for the ingest edge.
func NewServer(cfg Config, q *queue.Queue, proc *processor.Processor) *Server {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1000
	}

	s := &Server{
		cfg:      cfg,
		queue:    q,
		proc:     proc,
		logger:   log.WithComponent("api"),
		start:    time.Now(),
		limiters: newKeyLimiters(cfg.RateLimitPerMinute),
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)
		r.Post("/ingest/batch", s.handleIngestBatch)
		r.Post("/ingest/{source}", s.handleIngest)
	})

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("ingest server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ingest server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.start).Seconds()),
		"queue": map[string]any{
			"size":     s.queue.Size(),
			"max_size": s.queue.Capacity(),
		},
	}
	if s.proc != nil {
		resp["processor"] = s.proc.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleIngest accepts one record for the source named in the path.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	source := types.SourceType(chi.URLParam(r, "source"))
	if !types.ValidSource(string(source)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source type: %s", source))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := types.ValidateRecord(source, body); err != nil {
		metrics.EventsRejected.WithLabelValues(string(source)).Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := s.newQueuedItem(source, body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result := s.queue.Enqueue(item)
	if result == queue.Dropped {
		writeError(w, http.StatusServiceUnavailable, "queue full, event dropped")
		return
	}

	metrics.EventsIngested.WithLabelValues(string(source)).Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"ingestion_id": item.IngestionID,
		"source_type":  source,
	})
}

type batchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchResponse struct {
	Total    int          `json:"total"`
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Errors   []batchError `json:"errors,omitempty"`
}

// handleIngestBatch accepts a JSON array of records of one source type,
// given by the source_type query parameter. Records are judged
// independently; the response reports per-index outcomes.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	source := types.SourceType(r.URL.Query().Get("source_type"))
	if !types.ValidSource(string(source)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source type: %s", source))
		return
	}

	var records []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON array of records")
		return
	}
	if len(records) > s.cfg.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d exceeds limit of %d", len(records), s.cfg.MaxBatchSize))
		return
	}

	resp := batchResponse{Total: len(records)}
	for i, raw := range records {
		if err := types.ValidateRecord(source, raw); err != nil {
			metrics.EventsRejected.WithLabelValues(string(source)).Inc()
			resp.Rejected++
			resp.Errors = append(resp.Errors, batchError{Index: i, Error: err.Error()})
			continue
		}

		item, err := s.newQueuedItem(source, raw)
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, batchError{Index: i, Error: err.Error()})
			continue
		}

		if s.queue.Enqueue(item) == queue.Dropped {
			resp.Rejected++
			resp.Errors = append(resp.Errors, batchError{Index: i, Error: "queue full, event dropped"})
			continue
		}

		metrics.EventsIngested.WithLabelValues(string(source)).Inc()
		resp.Accepted++
	}

	writeJSON(w, http.StatusMultiStatus, resp)
}

func (s *Server) newQueuedItem(source types.SourceType, raw []byte) (*types.QueuedItem, error) {
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	return &types.QueuedItem{
		SourceType:         source,
		IngestionID:        strconv.FormatUint(s.ingestSeq.Add(1), 10),
		IngestionTimestamp: time.Now().UTC(),
		Record:             record,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
