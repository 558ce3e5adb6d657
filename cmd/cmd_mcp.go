package main

import (
	"log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	assistantmcp "estate-assistant/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
Logs go to stderr so that stdout carries only protocol traffic.

Tools exposed:
  analyze_message  classify a message and extract entities
  handle_message   run a message through the assistant
  flow_status      report the active guided flow of a session
  list_flows       list the guided flows
  score_lead       BANT-score a set of qualification answers

If the chat service cannot be wired the server still starts and only
score_lead is usable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			var svc assistantmcp.ChatService
			app, err := buildApp(cmd.Context(), logger)
			if err != nil {
				logger.Error("mcp: chat service unavailable; conversation tools will fail", "error", err)
			} else {
				defer app.Close()
				svc = app.chat
			}

			srv := assistantmcp.NewServer(svc, version, logger)
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: estate-assistant MCP server starting", "transport", "stdio")
			return mcpserver.ServeStdio(srv.MCPServer(), mcpserver.WithErrorLogger(errLogger))
		},
	}
}
