// Package mcpserver exposes the subscription admin operations as MCP tools.
package mcpserver

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/core"
)

const instructions = "Subscription admin: list users and their per-agent subscriptions, create subscriptions for existing users and edit subscription fields. " +
	"Dates are YYYY-MM-DD; an empty string clears a field."

// Server is the MCP tool endpoint. It acts for whichever operator the
// process is logged in as.
type Server struct {
	services     *core.Services
	defaultAgent int64
	logger       zerolog.Logger
	mcp          *server.MCPServer
}

func New(services *core.Services, defaultAgent int64, version string, logger zerolog.Logger) *Server {
	s := &Server{
		services:     services,
		defaultAgent: defaultAgent,
		logger:       logger,
	}
	s.mcp = server.NewMCPServer("subadmin", version, server.WithInstructions(instructions))
	tools := s.Tools()
	s.mcp.AddTools(tools...)
	logger.Info().Int("tools", len(tools)).Msg("registered MCP tools")
	return s
}

// Handler serves the streamable HTTP transport at the mount point.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath("/"))
}

func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("list_subscriptions",
				mcp.WithDescription("List users with their subscription to an agent, flattened into one row per user."),
				mcp.WithString("mode", mcp.Description("subscriptions (default) lists subscription rows; agent-users lists every user linked to the agent"), mcp.Enum(string(core.ModeSubscriptions), string(core.ModeAgentUsers))),
				mcp.WithNumber("agent_id", mcp.Description("Agent to scope the listing to")),
				mcp.WithString("name", mcp.Description("Case-insensitive substring of the user name")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.listSubscriptions,
		},
		{
			Tool: mcp.NewTool("create_subscription",
				mcp.WithDescription("Create a subscription for an existing user. Fails when the user already has one for the agent."),
				mcp.WithNumber("user_id", mcp.Required(), mcp.Description("User ID")),
				mcp.WithNumber("agent_id", mcp.Description("Agent ID, defaults to the configured agent")),
				mcp.WithBoolean("activation", mcp.Description("Whether the subscription is active, defaults to true")),
				mcp.WithString("status", mcp.Description("Free-form status label")),
				mcp.WithString("email", mcp.Description("Contact email for the subscription")),
				mcp.WithString("yearly_start", mcp.Description("Start of the validity window, YYYY-MM-DD")),
				mcp.WithString("yearly_end", mcp.Description("End of the validity window, YYYY-MM-DD")),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(false),
			),
			Handler: s.createSubscription,
		},
		{
			Tool: mcp.NewTool("update_subscription",
				mcp.WithDescription("Edit a subscription addressed by id, or by user_id and agent_id. Only the given fields change."),
				mcp.WithNumber("id", mcp.Description("Subscription ID")),
				mcp.WithNumber("user_id", mcp.Description("Owning user ID; required with agent_id when id is omitted, and to change user_identificator")),
				mcp.WithNumber("agent_id", mcp.Description("Agent ID")),
				mcp.WithBoolean("activation", mcp.Description("Whether the subscription is active")),
				mcp.WithString("status", mcp.Description("Status label, empty clears it")),
				mcp.WithString("email", mcp.Description("Contact email, empty clears it")),
				mcp.WithString("yearly_start", mcp.Description("YYYY-MM-DD, empty clears it")),
				mcp.WithString("yearly_end", mcp.Description("YYYY-MM-DD, empty clears it")),
				mcp.WithString("user_identificator", mcp.Description("External identifier written to the owning user")),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
			),
			Handler: s.updateSubscription,
		},
		{
			Tool: mcp.NewTool("list_users",
				mcp.WithDescription("List users ordered by name, to find the user_id for a new subscription."),
				mcp.WithString("name", mcp.Description("Case-insensitive substring of the user name")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.listUsers,
		},
	}
}
