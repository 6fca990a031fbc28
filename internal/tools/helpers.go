// Package tools provides the MCP tool handlers for Ember.
//
// Each handler follows the same pattern:
// - A struct with dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers never return Go errors for domain failures: domain faults are
// rendered as tool error results so the calling agent sees them as text.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// faultResult renders a domain error as a tool error result. Classified
// errors already carry their fault kind in the message, which is the
// contract the calling agent keys its retry policy on.
func faultResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
