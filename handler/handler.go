// Package handler adapts API Gateway proxy events to the chat service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Analyze(text string) domain.Analysis
	AvailableFlows() []flow.Summary
}

type Handler struct {
	uc     ChatUseCase
	logger *slog.Logger
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId"`
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(uc ChatUseCase, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle routes POST /chat, POST /analyze and GET /flows.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID, "path", req.Path)

	route := strings.TrimSuffix(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodPost && strings.HasSuffix(route, "/chat"):
		return h.chat(ctx, req, corrID, logger), nil
	case req.HTTPMethod == http.MethodPost && strings.HasSuffix(route, "/analyze"):
		var in analyzeRequest
		if err := json.Unmarshal([]byte(req.Body), &in); err != nil || strings.TrimSpace(in.Text) == "" {
			return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "text is required", corrID), nil
		}
		return jsonResponse(http.StatusOK, h.uc.Analyze(in.Text), corrID), nil
	case req.HTTPMethod == http.MethodGet && strings.HasSuffix(route, "/flows"):
		return jsonResponse(http.StatusOK, h.uc.AvailableFlows(), corrID), nil
	}
	return jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, corrID), nil
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *slog.Logger) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		logger.Warn("handler: invalid request body", "err", err)
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid JSON body", corrID)
	}

	out, err := h.uc.HandleMessage(ctx, usecase.ChatInput{
		SessionID: in.SessionID,
		VisitorID: in.VisitorID,
		Message:   in.Message,
	})
	if err != nil {
		code := usecase.CodeOf(err)
		logger.Error("handler: chat failed", "code", code, "err", err)
		return errorJSON(code.HTTPStatus(), code, "", corrID)
	}
	logger.Info("handler: chat handled", "session_id", out.SessionID, "flow_active", out.FlowActive)
	return jsonResponse(http.StatusOK, out, corrID)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func errorJSON(status int, code usecase.ErrorCode, msg, corrID string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: string(code), Message: msg}, corrID)
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}
