// Package api serves the chat service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/memory"
	"estate-assistant/internal/nlu"
	"estate-assistant/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 64 << 10
)

type ChatService interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Analyze(text string) domain.Analysis
	FlowStatus(ctx context.Context, sessionID, visitorID string) flow.Status
	CancelFlow(sessionID string)
	AvailableFlows() []flow.Summary
	ClearSession(sessionID string)
	Summary(sessionID string) (memory.Summary, bool)
}

type Server struct {
	svc    ChatService
	logger *slog.Logger
	router *mux.Router
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId"`
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	domain.Analysis
	Plan          nlu.ResponsePlan      `json:"plan"`
	Qualification nlu.LeadQualification `json:"qualification"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewServer(svc ChatService, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("api: chat service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger, router: mux.NewRouter()}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(s.logging)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/chat", s.chat).Methods(http.MethodPost)
	v1.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	v1.HandleFunc("/flows", s.flows).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{sessionID}", s.clearSession).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{sessionID}/flow", s.flowStatus).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{sessionID}/flow", s.cancelFlow).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{sessionID}/summary", s.summary).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	s.router.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, usecase.ErrorInvalidInput, "invalid JSON body")
		return
	}
	out, err := s.svc.HandleMessage(r.Context(), usecase.ChatInput{
		SessionID: in.SessionID,
		VisitorID: in.VisitorID,
		Message:   in.Message,
	})
	if err != nil {
		code := usecase.CodeOf(err)
		s.logger.Error("api: chat failed", "code", code, "err", err)
		writeError(w, code, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var in analyzeRequest
	if err := decode(w, r, &in); err != nil || strings.TrimSpace(in.Text) == "" {
		writeError(w, usecase.ErrorInvalidInput, "text is required")
		return
	}
	a := s.svc.Analyze(in.Text)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Analysis:      a,
		Plan:          nlu.Plan(a),
		Qualification: nlu.ExtractLeadQualification(a.Entities),
	})
}

func (s *Server) flows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.AvailableFlows())
}

func (s *Server) flowStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	writeJSON(w, http.StatusOK, s.svc.FlowStatus(r.Context(), sessionID, r.URL.Query().Get("visitorId")))
}

func (s *Server) cancelFlow(w http.ResponseWriter, r *http.Request) {
	s.svc.CancelFlow(mux.Vars(r)["sessionID"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearSession(mux.Vars(r)["sessionID"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.svc.Summary(mux.Vars(r)["sessionID"])
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Message: "unknown session"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get(correlationHeader)
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set(correlationHeader, corrID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"correlation_id", corrID,
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, code usecase.ErrorCode, msg string) {
	writeJSON(w, code.HTTPStatus(), errorResponse{Error: string(code), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
