// Package mcpserver exposes the task tool catalog over the Model Context
// Protocol so other assistants can read and update tasks through paimy.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/model"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// Catalog is the tool registry served over MCP.
type Catalog interface {
	ModelTools() []model.Tool
	Execute(ctx context.Context, name string, input map[string]any) (*executor.Result, error)
}

// Config configures the server. Every call runs on behalf of Requester.
type Config struct {
	Name      string
	Version   string
	Requester protocol.Requester
	Logger    *zap.Logger
}

// New builds an MCP server with every catalog tool registered.
func New(catalog Catalog, cfg Config) *mcp.Server {
	if cfg.Name == "" {
		cfg.Name = "paimy"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := logging.OrNop(cfg.Logger)

	server := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	for _, t := range catalog.ModelTools() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, handler(catalog, t.Name, cfg.Requester, logger))
	}
	return server
}

// Serve runs server over stdin/stdout until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func handler(catalog Catalog, name string, requester protocol.Requester, logger *zap.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		input := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return errorResult(apperrors.Wrap(err, apperrors.CodeToolInvalidParams, "arguments must be a JSON object", apperrors.CategoryUser)), nil
			}
		}

		res, err := catalog.Execute(executor.WithRequester(ctx, requester), name, input)
		log := logger.With(zap.String("tool", name), zap.Duration("duration", time.Since(start)))
		if err != nil {
			log.Warn("mcp tool call failed", zap.Error(err))
			return errorResult(err), nil
		}
		log.Debug("mcp tool call", zap.Bool("success", res.Success))

		payload := res.Payload()
		data, err := json.Marshal(payload)
		if err != nil {
			return errorResult(apperrors.Wrap(err, apperrors.CodeToolExecutionFailed, "encode tool result", apperrors.CategoryPermanent)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
			StructuredContent: payload,
		}, nil
	}
}

// errorResult reports err inside the result so the client model can see it.
func errorResult(err error) *mcp.CallToolResult {
	payload := protocol.ToolResult{Error: err.Error(), Code: apperrors.GetCode(err)}
	var coded interface{ Code() string }
	if payload.Code == "" && apperrors.As(err, &coded) {
		payload.Code = coded.Code()
	}
	data, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
