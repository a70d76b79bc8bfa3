package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenghchen/calhacks2025/src/config"
	"github.com/zhenghchen/calhacks2025/src/data"
	"github.com/zhenghchen/calhacks2025/src/orchestrator"
	"github.com/zhenghchen/calhacks2025/src/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEvaluator struct {
	decision *types.DueDiligenceDecision
	err      error
	calls    int
}

func (s *stubEvaluator) Evaluate(ctx context.Context, transcript string) (*types.DueDiligenceDecision, error) {
	s.calls++
	return s.decision, s.err
}

type memStore struct {
	mu   sync.Mutex
	byID map[string]*types.DueDiligenceDecision
	ids  []string
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*types.DueDiligenceDecision{}}
}

func (m *memStore) Save(ctx context.Context, transcript string, d *types.DueDiligenceDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[d.ID] = d
	m.ids = append(m.ids, d.ID)
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*types.DueDiligenceDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return d, nil
}

func (m *memStore) Recent(ctx context.Context, limit int) ([]*types.DueDiligenceDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.DueDiligenceDecision, 0, len(m.ids))
	for i := len(m.ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.byID[m.ids[i]])
	}
	return out, nil
}

func testConfig() config.Config {
	return config.Config{
		AllowedOrigins:     []string{"http://localhost:3000"},
		MaxTranscriptBytes: 64,
		RateLimit:          100,
		RateWindow:         time.Minute,
	}
}

func sampleDecision() *types.DueDiligenceDecision {
	return types.NewDecision("eval-1", time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC),
		types.QuantitativeAnalysis{Verdict: types.VerdictPass},
		types.QualitativeAnalysis{Verdict: types.VerdictPass},
		types.StrategicAnalysis{Verdict: types.VerdictPass},
		types.VerificationResult{Verdict: types.VerdictPass, Confidence: types.ConfidenceHigh},
	)
}

func postTranscript(r http.Handler, transcript string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"transcript": transcript})
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEvaluationStoresDecision(t *testing.T) {
	ev := &stubEvaluator{decision: sampleDecision()}
	store := newMemStore()
	r := New(testConfig(), ev, store, nil)

	w := postTranscript(r, "We have 10 customers.")
	require.Equal(t, http.StatusCreated, w.Code)

	var got types.DueDiligenceDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "eval-1", got.ID)
	assert.True(t, got.Accept)

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/eval-1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/evaluations?limit=5", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Evaluations []types.DueDiligenceDecision `json:"evaluations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Evaluations, 1)
}

func TestCreateEvaluationRejectsBadInput(t *testing.T) {
	ev := &stubEvaluator{decision: sampleDecision()}
	r := New(testConfig(), ev, nil, nil)

	assert.Equal(t, http.StatusBadRequest, postTranscript(r, "   ").Code)
	assert.Equal(t, http.StatusBadRequest, postTranscript(r, strings.Repeat("x", 65)).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, ev.calls)
}

func TestCreateEvaluationSurfacesErrors(t *testing.T) {
	ev := &stubEvaluator{err: fmt.Errorf("quantitative agent: %w", errors.New("upstream 529"))}
	r := New(testConfig(), ev, nil, nil)

	w := postTranscript(r, "pitch")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["err"], "quantitative agent")

	ev.err = orchestrator.ErrEmptyTranscript
	assert.Equal(t, http.StatusBadRequest, postTranscript(r, "pitch").Code)
}

func TestGetEvaluationNotFound(t *testing.T) {
	r := New(testConfig(), &stubEvaluator{}, newMemStore(), nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = New(testConfig(), &stubEvaluator{}, nil, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/evaluations/any", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	r := New(testConfig(), &stubEvaluator{}, nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	r := New(cfg, &stubEvaluator{decision: sampleDecision()}, nil, nil)

	assert.Equal(t, http.StatusCreated, postTranscript(r, "a").Code)
	assert.Equal(t, http.StatusCreated, postTranscript(r, "b").Code)
	w := postTranscript(r, "c")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
}

// endlessTranscript is a JSON body whose transcript string never ends.
type endlessTranscript struct {
	prefix []byte
	read   int64
}

func (e *endlessTranscript) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(e.prefix) > 0 {
			p[n] = e.prefix[0]
			e.prefix = e.prefix[1:]
		} else {
			p[n] = 'x'
		}
		n++
	}
	e.read += int64(n)
	return n, nil
}

func TestCreateEvaluationStopsReadingOversizedBody(t *testing.T) {
	ev := &stubEvaluator{decision: sampleDecision()}
	cfg := testConfig()
	r := New(cfg, ev, nil, nil)

	body := &endlessTranscript{prefix: []byte(`{"transcript":"`)}
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluations", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "transcript exceeds")
	limit := NewEvaluations(ev, nil, cfg.MaxTranscriptBytes, nil).bodyLimit()
	assert.LessOrEqual(t, body.read, limit+1)
	assert.Equal(t, 0, ev.calls)
}
