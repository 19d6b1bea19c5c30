// Package mcp exposes the Lynkr agent tools over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	mcpTypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
	"github.com/lynkr-ai/lynkr-go-sdk/config"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/logger"
)

// Server wraps an MCP server whose tools share one Lynkr client.
type Server struct {
	mcpServer *server.MCPServer
	tools     []lynkr.Tool
	logger    *logrus.Logger

	// the client is not safe for concurrent use and mcp-go dispatches
	// requests concurrently
	mu sync.Mutex
}

type serverOptions struct {
	name    string
	version string
	logger  *logrus.Logger
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

// WithName sets the server name reported to MCP clients.
func WithName(name string) ServerOption {
	return func(o *serverOptions) { o.name = name }
}

// WithVersion sets the server version reported to MCP clients.
func WithVersion(version string) ServerOption {
	return func(o *serverOptions) { o.version = version }
}

// WithLogger sets the logger. Defaults to the client's logger.
func WithLogger(l *logrus.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// NewServer registers the client's agent tools on a new MCP server.
func NewServer(client *lynkr.Client, opts ...ServerOption) *Server {
	o := serverOptions{
		name:    "lynkr",
		version: lynkr.Version,
		logger:  client.Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		mcpServer: server.NewMCPServer(o.name, o.version, server.WithToolCapabilities(true)),
		tools:     client.AgentTools(),
		logger:    o.logger,
	}
	for _, tool := range s.tools {
		s.mcpServer.AddTool(ToolSpec(tool), s.Handler(tool))
	}

	s.logger.WithField("tools", len(s.tools)).Debug("MCP server initialized")
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tools.
func (s *Server) Tools() []lynkr.Tool {
	return s.tools
}

// ToolSpec converts a Lynkr tool into an MCP tool definition.
func ToolSpec(tool lynkr.Tool) mcpTypes.Tool {
	opts := []mcpTypes.ToolOption{mcpTypes.WithDescription(tool.Description)}
	for _, p := range tool.Params {
		propOpts := []mcpTypes.PropertyOption{mcpTypes.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcpTypes.Required())
		}
		switch p.Type {
		case "object":
			opts = append(opts, mcpTypes.WithObject(p.Name, propOpts...))
		case "boolean":
			opts = append(opts, mcpTypes.WithBoolean(p.Name, propOpts...))
		case "number", "integer":
			opts = append(opts, mcpTypes.WithNumber(p.Name, propOpts...))
		case "array":
			opts = append(opts, mcpTypes.WithArray(p.Name, propOpts...))
		default:
			opts = append(opts, mcpTypes.WithString(p.Name, propOpts...))
		}
	}
	return mcpTypes.NewTool(tool.Name, opts...)
}

// Handler adapts a Lynkr tool to an mcp-go handler. Tool failures become
// error results, never protocol errors.
func (s *Server) Handler(tool lynkr.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpTypes.CallToolRequest) (*mcpTypes.CallToolResult, error) {
		log := logger.NewContextualLogger(s.logger, "", tool.Name)

		s.mu.Lock()
		start := time.Now()
		res := tool.Invoke(ctx, req.GetArguments())
		s.mu.Unlock()

		if res.Failed() {
			log.Warnf("Tool call failed: %v", res.Err)
			return mcpTypes.NewToolResultError(res.Text()), nil
		}
		log.Debugf("Tool call completed in %s", time.Since(start))
		return mcpTypes.NewToolResultText(res.Text()), nil
	}
}

// Serve runs the server on the configured transport until ctx is cancelled
// or the transport stops.
func (s *Server) Serve(ctx context.Context, cfg config.MCPConfig) error {
	switch cfg.Transport {
	case "", config.TransportStdio:
		s.logger.Info("Serving MCP over stdio")
		stdio := server.NewStdioServer(s.mcpServer)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server error: %w", err)
		}
		return nil

	case config.TransportSSE:
		var sseOpts []server.SSEOption
		if cfg.BaseURL != "" {
			sseOpts = append(sseOpts, server.WithBaseURL(cfg.BaseURL))
		}
		sse := server.NewSSEServer(s.mcpServer, sseOpts...)

		errCh := make(chan error, 1)
		go func() {
			s.logger.Infof("Serving MCP over SSE on %s", cfg.Addr)
			errCh <- sse.Start(cfg.Addr)
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP SSE server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sse.Shutdown(shutdownCtx)
		}

	default:
		return fmt.Errorf("unsupported MCP transport %q", cfg.Transport)
	}
}
