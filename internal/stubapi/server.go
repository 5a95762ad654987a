// Package stubapi serves an in-memory copy of the inspection record REST
// service for tests and local demos. Nothing is persisted.
package stubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/qc-desk/internal/inspection"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Logger is satisfied by logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Server holds the record list and the HTTP listener serving it.
type Server struct {
	settings Settings
	logger   Logger
	newID    func() string

	mu       sync.RWMutex
	records  []inspection.Record
	server   *http.Server
	listener net.Listener
	status   ServerStatus
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecords seeds the collection. IDs are assigned where missing.
func WithRecords(records ...inspection.Record) Option {
	return func(s *Server) {
		for _, rec := range records {
			s.records = append(s.records, rec.Clone())
		}
	}
}

// WithIDGenerator allows tests to control assigned identifiers.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewServer prepares a stub server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		logger:   nopLogger{},
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:24] },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for i := range s.records {
		if s.records[i].ID == "" {
			s.records[i].ID = s.newID()
		}
	}
	return s
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("stubapi: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("stubapi: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stubapi: listen %s: %w", addr, err)
	}
	s.listener = listener
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("stubapi: serve error: %v", err)
		}
	}()
	s.logger.Printf("stubapi: listening on %s%s", listener.Addr().String(), s.settings.ItemsPath)
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	server := s.server
	if s.listener == nil || server == nil {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusDraining
	s.mu.Unlock()

	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	// Handlers take s.mu, so the lock is released while draining.
	if err := server.Shutdown(deadline); err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = nil
	s.server = nil
	s.mu.Unlock()
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Records returns a copy of the collection in insertion order.
func (s *Server) Records() []inspection.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inspection.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(s.settings.ItemsPath, s.handleCollection)
	mux.HandleFunc(s.settings.ItemsPath+"/", s.handleItem)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.mu.RLock()
	count := len(s.records)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": string(s.Status()), "records": count})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.Records())
	case http.MethodPost:
		rec, ok := s.decodeRecord(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		rec.ID = s.newID()
		if rec.Department == "" {
			rec.Department = inspection.Text(s.settings.Department)
		}
		if rec.Defects == nil {
			rec.Defects = []inspection.Defect{}
		}
		s.records = append(s.records, rec.Clone())
		s.mu.Unlock()
		s.logger.Printf("stubapi: created %s (%s)", rec.ID, rec.ProductionOrder)
		writeJSON(w, http.StatusCreated, rec)
	default:
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodPost))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, s.settings.ItemsPath), "/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		idx := s.indexOf(id)
		var rec inspection.Record
		if idx >= 0 {
			rec = s.records[idx].Clone()
		}
		s.mu.RUnlock()
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		rec, ok := s.decodeRecord(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		idx := s.indexOf(id)
		if idx < 0 {
			s.mu.Unlock()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		current := s.records[idx]
		rec.ID = current.ID
		rec.Department = current.Department
		rec.FirstPieceInspection = current.FirstPieceInspection
		if rec.Defects == nil {
			rec.Defects = []inspection.Defect{}
		}
		s.records[idx] = rec.Clone()
		s.mu.Unlock()
		s.logger.Printf("stubapi: updated %s", id)
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		s.mu.Lock()
		idx := s.indexOf(id)
		if idx >= 0 {
			s.records = append(s.records[:idx], s.records[idx+1:]...)
		}
		s.mu.Unlock()
		if idx < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		s.logger.Printf("stubapi: deleted %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPut, http.MethodDelete}, ", "))
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// indexOf must be called with s.mu held.
func (s *Server) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (inspection.Record, bool) {
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return inspection.Record{}, false
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload exceeds limit"})
			return inspection.Record{}, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read body"})
		return inspection.Record{}, false
	}
	var rec inspection.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return inspection.Record{}, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
