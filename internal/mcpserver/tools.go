package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/edvin/subadmin/internal/core"
)

func (s *Server) listSubscriptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	mode, err := core.ParseListingMode(stringArg(args, "mode"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	agentID, _, err := intArg(args, "agent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rows, err := s.services.ReadModel.List(ctx, core.ListOptions{Mode: mode, AgentID: agentID, Name: stringArg(args, "name")})
	if err != nil {
		var fetchErr *core.FetchError
		if errors.As(err, &fetchErr) && rows != nil {
			res, encErr := jsonResult(map[string]any{"items": rows, "error": err.Error()})
			if encErr != nil {
				return nil, encErr
			}
			res.IsError = true
			return res, nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"items": rows})
}

func (s *Server) createSubscription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	userID, ok, err := intArg(args, "user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError("missing required parameter: user_id"), nil
	}
	agentID, ok, err := intArg(args, "agent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		agentID = s.defaultAgent
	}

	in := core.NewSubscription{
		UserID:      userID,
		AgentID:     agentID,
		Activation:  boolArg(args, "activation"),
		Status:      stringArg(args, "status"),
		Email:       stringArg(args, "email"),
		YearlyStart: stringArg(args, "yearly_start"),
		YearlyEnd:   stringArg(args, "yearly_end"),
	}
	if err := s.services.Creator.Create(ctx, in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"status":"created","user_id":%d,"agent_id":%d}`, userID, agentID)), nil
}

func (s *Server) updateSubscription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var key core.SubscriptionKey
	for name, dst := range map[string]*int64{"id": &key.ID, "user_id": &key.UserID, "agent_id": &key.AgentID} {
		v, _, err := intArg(args, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*dst = v
	}

	patch := core.SubscriptionPatch{
		Activation:        boolArg(args, "activation"),
		Status:            optionalString(args, "status"),
		Email:             optionalString(args, "email"),
		YearlyStart:       optionalString(args, "yearly_start"),
		YearlyEnd:         optionalString(args, "yearly_end"),
		UserIdentificator: optionalString(args, "user_identificator"),
		UserID:            key.UserID,
	}
	if err := s.services.Editor.Update(ctx, key, patch); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(`{"status":"updated"}`), nil
}

func (s *Server) listUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := s.services.Directory.ListUsers(ctx, stringArg(req.GetArguments(), "name"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"items": users})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// optionalString distinguishes an omitted argument (nil) from an empty one.
func optionalString(args map[string]any, name string) *string {
	v, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &v
}

func boolArg(args map[string]any, name string) *bool {
	v, ok := args[name].(bool)
	if !ok {
		return nil
	}
	return &v
}

// intArg reads a whole-number argument. JSON numbers arrive as float64.
func intArg(args map[string]any, name string) (int64, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("%s must be a whole number", name)
		}
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false, fmt.Errorf("%s is out of range", name)
		}
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a whole number", name)
		}
		return n, true, nil
	}
	return 0, false, fmt.Errorf("%s must be a number", name)
}
