// Package resources implements Ember's MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (ember://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emberhq/ember/internal/memory"
)

// statsCategories are the categories broken out individually in the
// stats resource; everything else is folded into the total.
var statsCategories = []string{
	"brief", "decision", "open_loop", "next_action", "recent_change", "session_summary",
}

// Handler serves Ember's resource endpoints.
type Handler struct {
	store *memory.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *memory.Store) *Handler {
	return &Handler{store: store}
}

// StatsResource returns the MCP resource definition for memory stats.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"ember://memory/stats",
		"Memory Statistics",
		mcp.WithResourceDescription("Entry counts per category and the last session capture time"),
		mcp.WithMIMEType("application/json"),
	)
}

// memoryStats is the JSON shape of the stats resource.
type memoryStats struct {
	Total         int            `json:"total"`
	ByCategory    map[string]int `json:"by_category"`
	LastSessionAt *time.Time     `json:"last_session_at,omitempty"`
}

// HandleStats returns the current memory statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats := memoryStats{ByCategory: make(map[string]int)}

	total, err := h.store.Count(ctx, "")
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	stats.Total = total

	for _, c := range statsCategories {
		n, err := h.store.Count(ctx, c)
		if err != nil {
			return errorResource(req.Params.URI, err.Error()), nil
		}
		if n > 0 {
			stats.ByCategory[c] = n
		}
	}

	if ts, ok := h.store.LatestSessionSummaryAt(ctx); ok {
		stats.LastSessionAt = &ts
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource carrying an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
