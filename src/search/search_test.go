package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenghchen/calhacks2025/src/mcp"
)

func cseServer(t *testing.T, hits *int32, items int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "cx", r.URL.Query().Get("cx"))
		list := make([]map[string]string, 0, items)
		for i := 0; i < items; i++ {
			list = append(list, map[string]string{
				"title":   fmt.Sprintf("<b>Result</b> %d &amp; more", i),
				"snippet": fmt.Sprintf("Snippet <script>x()</script>%d", i),
				"link":    fmt.Sprintf("https://example.com/%d", i),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": list})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleSearcherCapsAndSanitizes(t *testing.T) {
	var hits int32
	srv := cseServer(t, &hits, 8)
	g := NewGoogleSearcher(GoogleConfig{APIKey: "key", EngineID: "cx", BaseURL: srv.URL})

	results, err := g.Search(context.Background(), "Ada Lovelace Analytical Engines")
	require.NoError(t, err)
	require.Len(t, results, MaxResults)
	assert.Equal(t, "Result 0 & more", results[0].Title)
	assert.Equal(t, "Snippet 0", results[0].Snippet)
	assert.Equal(t, "https://example.com/0", results[0].URL)
}

func TestGoogleSearcherMissingCredentials(t *testing.T) {
	_, err := NewGoogleSearcher(GoogleConfig{APIKey: "key"}).Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGoogleSearcherUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewGoogleSearcher(GoogleConfig{APIKey: "k", EngineID: "c", BaseURL: srv.URL}).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403 Forbidden")
}

func TestCachedSearcherServesRepeatsFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var hits int32
	srv := cseServer(t, &hits, 2)
	cached := NewCachedSearcher(NewGoogleSearcher(GoogleConfig{APIKey: "key", EngineID: "cx", BaseURL: srv.URL}), rdb, time.Minute, nil)

	first, err := cached.Search(context.Background(), "Ada  Lovelace")
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), "ada lovelace")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, mr.Exists(CacheKey("ADA LOVELACE")))

	mr.FastForward(2 * time.Minute)
	_, err = cached.Search(context.Background(), "ada lovelace")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCachedSearcherDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	boom := errors.New("upstream down")
	cached := NewCachedSearcher(searcherFunc(func(context.Context, string) ([]Result, error) { return nil, boom }), rdb, time.Minute, nil)

	_, err := cached.Search(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(CacheKey("q")))
}

type searcherFunc func(ctx context.Context, query string) ([]Result, error)

func (f searcherFunc) Search(ctx context.Context, query string) ([]Result, error) { return f(ctx, query) }

func callTool(t *testing.T, s Searcher, args string) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	res, err := Handler(s, nil)(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	var payload map[string]any
	if !res.IsError {
		require.NoError(t, json.Unmarshal([]byte(res.Text()), &payload))
	}
	return res, payload
}

func TestHandlerPayloads(t *testing.T) {
	t.Run("missing credentials is data", func(t *testing.T) {
		res, payload := callTool(t, NewGoogleSearcher(GoogleConfig{}), `{"query":"x"}`)
		assert.False(t, res.IsError)
		assert.Equal(t, missingCredentialsMessage, payload["error"])
		assert.Contains(t, payload["instructions"], "developers.google.com")
	})

	t.Run("no results", func(t *testing.T) {
		empty := searcherFunc(func(context.Context, string) ([]Result, error) { return nil, nil })
		res, payload := callTool(t, empty, `{"query":"nobody at all"}`)
		assert.False(t, res.IsError)
		assert.Equal(t, false, payload["found_results"])
		assert.Equal(t, float64(0), payload["result_count"])
		assert.Equal(t, []any{}, payload["results"])
		assert.Equal(t, "nobody at all", payload["query"])
	})

	t.Run("results", func(t *testing.T) {
		var hits int32
		srv := cseServer(t, &hits, 3)
		_, payload := callTool(t, NewGoogleSearcher(GoogleConfig{APIKey: "key", EngineID: "cx", BaseURL: srv.URL}), `{"query":"Ada"}`)
		assert.Equal(t, true, payload["found_results"])
		assert.Equal(t, float64(3), payload["result_count"])
		assert.Len(t, payload["results"], 3)
		assert.Equal(t, analysisInstructions, payload["instructions"])
	})

	t.Run("upstream failure", func(t *testing.T) {
		failing := searcherFunc(func(context.Context, string) ([]Result, error) { return nil, errors.New("timeout") })
		res, payload := callTool(t, failing, `{"query":"Ada"}`)
		assert.False(t, res.IsError)
		assert.Equal(t, "Web search failed: timeout", payload["error"])
		assert.Equal(t, "Ada", payload["query"])
	})

	t.Run("empty query is a tool error", func(t *testing.T) {
		res, _ := callTool(t, searcherFunc(nil), `{"query":"  "}`)
		assert.True(t, res.IsError)
	})
}

func TestWebSearchOverProtocol(t *testing.T) {
	server := mcp.NewServer(mcp.Implementation{Name: "search-tool", Version: "test"}, nil)
	found := searcherFunc(func(ctx context.Context, q string) ([]Result, error) {
		return []Result{{Title: "Ada Lovelace", Snippet: "Mathematician", URL: "https://example.org/ada"}}, nil
	})
	require.NoError(t, Register(server, found, nil))

	client := mcp.NewClient(&mcp.InProcessTransport{Server: server}, mcp.Implementation{Name: "test"}, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, ToolName, tools[0].Name)
	assert.Equal(t, []any{"query"}, tools[0].InputSchema["required"])

	res, err := client.CallTool(context.Background(), ToolName, json.RawMessage(`{"query":"Ada Lovelace"}`))
	require.NoError(t, err)
	assert.Contains(t, res.Text(), "https://example.org/ada")
}
