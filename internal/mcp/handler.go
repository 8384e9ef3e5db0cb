package mcp

import (
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/portfolio"
)

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	server     *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
	tools      []string
}

// NewHandler creates the MCP server with the portfolio tools registered.
// Amounts in tool output are formatted in currency.
func NewHandler(svc *portfolio.Service, currency string, logger *common.Logger) *Handler {
	mcpSrv := mcpserver.NewMCPServer(
		"folio-portal",
		config.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)

	tools := RegisterTools(mcpSrv, &toolset{svc: svc, currency: currency, logger: logger})

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", len(tools)).
		Msg("MCP handler initialized")

	return &Handler{
		server:     mcpSrv,
		streamable: streamable,
		logger:     logger,
		tools:      tools,
	}
}

// Server returns the underlying MCP server, for serving over stdio.
func (h *Handler) Server() *mcpserver.MCPServer {
	return h.server
}

// Tools returns the names of the registered tools.
func (h *Handler) Tools() []string {
	result := make([]string, len(h.tools))
	copy(result, h.tools)
	return result
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer. The portal is
// single-user: tools act on the session persisted by the portal.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}
