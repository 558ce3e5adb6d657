// Package mcp exposes the assistant as Model Context Protocol tools so that
// agents can analyze messages, drive conversations and score leads.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/leadscore"
	"estate-assistant/internal/nlu"
	"estate-assistant/internal/usecase"
)

// ChatService is the subset of the chat use case the tools need.
type ChatService interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Analyze(text string) domain.Analysis
	FlowStatus(ctx context.Context, sessionID, visitorID string) flow.Status
	AvailableFlows() []flow.Summary
}

type Server struct {
	mcp    *mcpserver.MCPServer
	svc    ChatService
	logger *slog.Logger
}

// NewServer registers the tools. A nil service makes every conversation tool
// answer with an error result; score_lead still works.
func NewServer(svc ChatService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	srv := mcpserver.NewMCPServer(
		"estate-assistant",
		version,
		mcpserver.WithToolCapabilities(true),
	)
	srv.AddTool(buildAnalyzeTool(), s.handleAnalyze)
	srv.AddTool(buildHandleMessageTool(), s.handleMessage)
	srv.AddTool(buildFlowStatusTool(), s.handleFlowStatus)
	srv.AddTool(buildListFlowsTool(), s.handleListFlows)
	srv.AddTool(buildScoreLeadTool(), s.handleScoreLead)

	s.mcp = srv
	return s
}

func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) HandleAnalyze(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAnalyze(ctx, req)
}

func (s *Server) HandleMessage(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleMessage(ctx, req)
}

func (s *Server) HandleFlowStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleFlowStatus(ctx, req)
}

func (s *Server) HandleListFlows(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListFlows(ctx, req)
}

func (s *Server) HandleScoreLead(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleScoreLead(ctx, req)
}

func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildAnalyzeTool() mcpgo.Tool {
	return mcpgo.NewTool("analyze_message",
		mcpgo.WithDescription("Classify a visitor message and extract real-estate entities. Returns intent, confidence, entities and a response plan."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The visitor message to analyze"),
		),
	)
}

func buildHandleMessageTool() mcpgo.Tool {
	return mcpgo.NewTool("handle_message",
		mcpgo.WithDescription("Send a visitor message through the assistant and return its reply, flow state and suggestions."),
		mcpgo.WithString("message",
			mcpgo.Required(),
			mcpgo.Description("The visitor message"),
		),
		mcpgo.WithString("session_id",
			mcpgo.Description("Conversation session id (generated when empty)"),
		),
		mcpgo.WithString("visitor_id",
			mcpgo.Description("Visitor id (generated when empty)"),
		),
	)
}

func buildFlowStatusTool() mcpgo.Tool {
	return mcpgo.NewTool("flow_status",
		mcpgo.WithDescription("Report the guided flow active in a session, its current step and progress."),
		mcpgo.WithString("session_id",
			mcpgo.Required(),
			mcpgo.Description("Conversation session id"),
		),
		mcpgo.WithString("visitor_id",
			mcpgo.Description("Visitor id"),
		),
	)
}

func buildListFlowsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_flows",
		mcpgo.WithDescription("List the guided flows the assistant can run."),
	)
}

func buildScoreLeadTool() mcpgo.Tool {
	return mcpgo.NewTool("score_lead",
		mcpgo.WithDescription("Compute the BANT score, grade and priority for a set of qualification answers."),
		mcpgo.WithString("budget", mcpgo.Description("Budget answer, e.g. \"Acima de 400.000€\"")),
		mcpgo.WithString("authority", mcpgo.Description("Decision authority answer, e.g. \"Sou eu que decido\"")),
		mcpgo.WithString("need", mcpgo.Description("Purchase purpose answer, e.g. \"Habitação própria\"")),
		mcpgo.WithString("timeline", mcpgo.Description("Timeline answer, e.g. \"Imediatamente\"")),
	)
}

// --- tool handlers ---

func (s *Server) handleAnalyze(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.svc == nil {
		return mcpgo.NewToolResultError("chat service is unavailable"), nil
	}
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcpgo.NewToolResultError("text is required and must not be empty"), nil
	}
	a := s.svc.Analyze(text)
	return toolResultJSON(map[string]any{
		"intent":     a.Intent,
		"confidence": a.Confidence,
		"entities":   a.Entities,
		"plan":       nlu.Plan(a),
	})
}

func (s *Server) handleMessage(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.svc == nil {
		return mcpgo.NewToolResultError("chat service is unavailable"), nil
	}
	out, err := s.svc.HandleMessage(ctx, usecase.ChatInput{
		SessionID: req.GetString("session_id", ""),
		VisitorID: req.GetString("visitor_id", ""),
		Message:   req.GetString("message", ""),
	})
	if err != nil {
		s.logger.Warn("mcp: handle_message failed", "code", usecase.CodeOf(err), "error", err)
		return mcpgo.NewToolResultErrorf("%s: %s", usecase.CodeOf(err), err.Error()), nil
	}
	return toolResultJSON(out)
}

func (s *Server) handleFlowStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.svc == nil {
		return mcpgo.NewToolResultError("chat service is unavailable"), nil
	}
	sessionID := req.GetString("session_id", "")
	if strings.TrimSpace(sessionID) == "" {
		return mcpgo.NewToolResultError("session_id is required"), nil
	}
	return toolResultJSON(s.svc.FlowStatus(ctx, sessionID, req.GetString("visitor_id", "")))
}

func (s *Server) handleListFlows(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.svc == nil {
		return mcpgo.NewToolResultError("chat service is unavailable"), nil
	}
	return toolResultJSON(s.svc.AvailableFlows())
}

func (s *Server) handleScoreLead(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	q := leadscore.Score(map[string]string{
		leadscore.KeyBudget:    req.GetString("budget", ""),
		leadscore.KeyAuthority: req.GetString("authority", ""),
		leadscore.KeyNeed:      req.GetString("need", ""),
		leadscore.KeyTimeline:  req.GetString("timeline", ""),
	})
	return toolResultJSON(q)
}
