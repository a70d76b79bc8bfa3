package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/mcp"
)

// ToolName is the name the verifier sees.
const ToolName = "web_search"

const (
	missingCredentialsMessage = "Missing GOOGLE_SEARCH_API_KEY or GOOGLE_SEARCH_ENGINE_ID environment variables"
	setupInstructions         = "Set up Google Custom Search API: https://developers.google.com/custom-search/v1/overview"
	analysisInstructions      = "Analyze these search results to verify the claimed information. Look for consistency across multiple sources."
)

type searchArgs struct {
	Query string `json:"query"`
}

type resultsPayload struct {
	Query        string   `json:"query"`
	FoundResults bool     `json:"found_results"`
	ResultCount  int      `json:"result_count"`
	Results      []Result `json:"results"`
	Instructions string   `json:"instructions,omitempty"`
}

type errorPayload struct {
	Error        string `json:"error"`
	Query        string `json:"query,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Tool describes web_search for discovery.
func Tool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolName,
		Description: "Search the web to verify information about a person (name, company, school, etc.)",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": `Search query (e.g., "John Smith Stripe MIT")`,
				},
			},
			"required": []string{"query"},
		},
	}
}

// Handler answers web_search calls. Search failures are reported inside the
// JSON payload so the model can reason about them.
func Handler(searcher Searcher, log logging.Logger) mcp.ToolHandler {
	log = logging.OrNop(log)
	return func(ctx context.Context, raw json.RawMessage) (*mcp.CallToolResult, error) {
		var args searchArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return mcp.ErrorResult("invalid arguments: " + err.Error()), nil
			}
		}
		query := strings.TrimSpace(args.Query)
		if query == "" {
			return mcp.ErrorResult("query is required"), nil
		}

		log.Infof("search: query %q", query)
		if searcher == nil {
			return mcp.JSONResult(errorPayload{Error: missingCredentialsMessage, Instructions: setupInstructions})
		}

		results, err := searcher.Search(ctx, query)
		switch {
		case errors.Is(err, ErrMissingCredentials):
			log.Warnf("search: credentials not configured")
			return mcp.JSONResult(errorPayload{Error: missingCredentialsMessage, Instructions: setupInstructions})
		case err != nil:
			log.Errorf("search: %q failed: %v", query, err)
			return mcp.JSONResult(errorPayload{Error: "Web search failed: " + err.Error(), Query: query})
		case len(results) == 0:
			log.Infof("search: no results for %q", query)
			return mcp.JSONResult(resultsPayload{Query: query, Results: []Result{}})
		}

		if len(results) > MaxResults {
			results = results[:MaxResults]
		}
		log.Infof("search: %d results for %q", len(results), query)
		return mcp.JSONResult(resultsPayload{
			Query:        query,
			FoundResults: true,
			ResultCount:  len(results),
			Results:      results,
			Instructions: analysisInstructions,
		})
	}
}

// Register adds web_search to a tool server.
func Register(server *mcp.Server, searcher Searcher, log logging.Logger) error {
	return server.AddTool(Tool(), Handler(searcher, log))
}
