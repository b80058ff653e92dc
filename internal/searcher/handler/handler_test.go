package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/analytics"
	"github.com/cvangysel/gondri/internal/repository/repotest"
	"github.com/cvangysel/gondri/internal/searcher/cache"
	"github.com/cvangysel/gondri/internal/searcher/handler"
	"github.com/cvangysel/gondri/pkg/logger"
)

type fixture struct {
	mux        *http.ServeMux
	aggregator *analytics.Aggregator
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	repo := repotest.Open(t)
	agg := analytics.NewAggregator(logger.Discard())
	opts := handler.Options{
		DefaultResults: 10,
		MaxResults:     20,
		Collector:      analytics.NewCollector(nil, agg, analytics.CollectorOptions{Logger: logger.Discard()}),
		Logger:         logger.Discard(),
	}
	if withCache {
		opts.Cache = cache.New(cache.NewLRUStore(32, time.Minute), nil, logger.Discard())
	}
	h, err := handler.New(repo, opts)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, aggregator: agg}
}

func (f *fixture) do(t *testing.T, method, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	if out != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out), rec.Body.String())
	}
	return rec.Code
}

type hit struct {
	Document   int     `json:"document"`
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
	Snippet    *string `json:"snippet"`
}

type queryResponse struct {
	Model     string   `json:"model"`
	Ascending bool     `json:"ascending"`
	Hits      []hit    `json:"hits"`
	OOVTerms  []string `json:"oov_terms"`
	CacheHit  bool     `json:"cache_hit"`
}

func TestQueryEndpoint(t *testing.T) {
	f := newFixture(t, false)

	var resp queryResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=ipsum", &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "lorem", resp.Hits[0].ExternalID)
	assert.Equal(t, 1, resp.Hits[0].Document)
	assert.Nil(t, resp.Hits[0].Snippet)
	assert.Equal(t, "method:dirichlet,mu:2500", resp.Model)

	resp = queryResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=his&snippets=true&model=okapi", &resp))
	require.Len(t, resp.Hits, 2)
	require.NotNil(t, resp.Hits[0].Snippet)
	assert.NotEmpty(t, *resp.Hits[0].Snippet)
	assert.Contains(t, resp.Model, "okapi")

	resp = queryResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=his&docs=romeo", &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "romeo", resp.Hits[0].ExternalID)

	resp = queryResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=the+wall+of+ipsum&n=-2", &resp))
	assert.True(t, resp.Ascending)
	require.Len(t, resp.Hits, 2)
	assert.LessOrEqual(t, resp.Hits[0].Score, resp.Hits[1].Score)

	resp = queryResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=zebra", &resp))
	assert.Empty(t, resp.Hits)
	assert.Equal(t, []string{"zebra"}, resp.OOVTerms)

	stats := f.aggregator.Stats()
	assert.Equal(t, int64(5), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
}

func TestQueryEndpointErrors(t *testing.T) {
	f := newFixture(t, false)

	for target, want := range map[string]int{
		"/api/v1/query":                                      http.StatusBadRequest,
		"/api/v1/query?q=ipsum&n=abc":                        http.StatusBadRequest,
		"/api/v1/query?q=ipsum&n=0":                          http.StatusBadRequest,
		"/api/v1/query?q=ipsum&model=nope":                   http.StatusBadRequest,
		"/api/v1/query?q=ipsum&model=method:dirichlet,mu:-5": http.StatusBadRequest,
		"/api/v1/query?q=ipsum&model=okapi,k1:NaN":           http.StatusBadRequest,
		"/api/v1/query?q=ipsum&snippets=sure":                http.StatusBadRequest,
		"/api/v1/query?q=hello+%5Bworld%5D":                  http.StatusBadRequest,
		"/api/v1/query?q=his&docs=macbeth":                   http.StatusNotFound,
	} {
		var body map[string]string
		assert.Equal(t, want, f.do(t, http.MethodGet, target, &body), target)
		assert.NotEmpty(t, body["error"], target)
	}
	assert.Equal(t, int64(1), f.aggregator.Stats().Errors)
}

func TestQueryEndpointCaches(t *testing.T) {
	f := newFixture(t, true)

	var first, second queryResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=his", &first))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=HIS", &second))
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Hits, second.Hits)

	var stats map[string]any
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cache/stats", &stats))
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, "50.0%", stats["hit_rate"])

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil))
	var third queryResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/query?q=his", &third))
	assert.False(t, third.CacheHit)
}

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t, false)

	var stats map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cache/stats", &stats))
	assert.Equal(t, "disabled", stats["status"])
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil))
}

func TestDocumentEndpoints(t *testing.T) {
	f := newFixture(t, false)

	var doc struct {
		ID         int    `json:"id"`
		ExternalID string `json:"external_id"`
		Length     int    `json:"length"`
		Text       string `json:"text"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/documents/1", &doc))
	assert.Equal(t, "lorem", doc.ExternalID)
	assert.Equal(t, 88, doc.Length)
	assert.Contains(t, doc.Text, "Lorem ipsum")

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/documents/4", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/documents/abc", nil))

	var resolved struct {
		Documents []struct {
			ExternalID string `json:"external_id"`
			ID         int    `json:"id"`
		} `json:"documents"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/documents?external=romeo,hamlet", &resolved))
	require.Len(t, resolved.Documents, 2)
	assert.Equal(t, 3, resolved.Documents[0].ID)
	assert.Equal(t, 2, resolved.Documents[1].ID)
}

func TestTermExpressionAndStats(t *testing.T) {
	f := newFixture(t, false)

	var term map[string]any
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/terms/His", &term))
	assert.Equal(t, "his", term["term"])
	assert.Equal(t, 2.0, term["df"])
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/terms/zebra", nil))

	var byID map[string]any
	target := fmt.Sprintf("/api/v1/terms/id/%d", int(term["id"].(float64)))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, target, &byID))
	assert.Equal(t, "his", byID["term"])
	assert.Equal(t, term["cf"], byID["cf"])
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/terms/id/100000", nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/terms/id/his", nil))

	var expr struct {
		Counts map[string]int `json:"counts"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/expression?expr=%23od1(your)", &expr))
	assert.Equal(t, map[string]int{"hamlet": 1, "romeo": 3}, expr.Counts)

	var stats map[string]any
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/stats", &stats))
	assert.Equal(t, 3.0, stats["documents"])
	assert.Equal(t, 1.0, stats["document_base"])
	assert.Equal(t, 4.0, stats["maximum_document"])
}
