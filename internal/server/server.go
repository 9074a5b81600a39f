// Package server exposes the audit pipeline over a local HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vincentbai/browsetrace-audit/internal/audit"
	"github.com/vincentbai/browsetrace-audit/internal/storage"
	"github.com/vincentbai/browsetrace-audit/internal/trace"
)

type Server struct {
	store   *storage.Store
	auditor *audit.Auditor
	log     *logrus.Logger
	address string
	server  *http.Server
}

func NewServer(store *storage.Store, auditor *audit.Auditor, log *logrus.Logger, address string) *Server {
	return &Server{
		store:   store,
		auditor: auditor,
		log:     log,
		address: address,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

type auditRequest struct {
	URL     string          `json:"url"`
	TraceID string          `json:"trace_id"`
	Trace   json.RawMessage `json:"trace"`
}

func (s *Server) handleAudits(w http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodPost:
		s.handleRunAudit(w, request)
	case http.MethodGet:
		s.handleListAudits(w, request)
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunAudit(w http.ResponseWriter, request *http.Request) {
	var req auditRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.URL == "" || len(req.Trace) == 0 {
		http.Error(w, "url and trace are required", http.StatusBadRequest)
		return
	}

	result, err := s.auditor.Run(req.TraceID, req.URL, req.Trace)
	if err != nil {
		if isTraceError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.WithError(err).Error("audit failed")
		http.Error(w, "Failed to audit trace", http.StatusInternalServerError)
		return
	}

	if err := s.store.InsertResults([]audit.Result{result}); err != nil {
		s.log.WithError(err).Error("database error")
		http.Error(w, "Failed to store audit result", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleListAudits(w http.ResponseWriter, _ *http.Request) {
	results, err := s.store.RecentResults(50)
	if err != nil {
		s.log.WithError(err).Error("database error")
		http.Error(w, "Failed to list audit results", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []audit.Result{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func isTraceError(err error) bool {
	for _, known := range []error{
		trace.ErrInvalidTrace,
		trace.ErrNoNavigationStart,
		trace.ErrNoFirstMeaningfulPaint,
		trace.ErrNoDOMContentLoaded,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/audits", s.handleAudits)
	return mux
}

func (s *Server) Start() error {
	mux := s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.log.WithField("address", s.address).Info("browsetrace-audit agent listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("server failed to start")
		}
	}()

	<-shutdownChannel
	s.log.Info("shutting down server")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		s.log.WithError(err).Fatal("server forced to shutdown")
	}

	s.log.Info("server exited")
	return nil
}
