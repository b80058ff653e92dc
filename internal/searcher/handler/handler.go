// Package handler serves a repository over HTTP: ranked queries,
// expression counts, document and term lookups, and result-cache
// administration.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cvangysel/gondri/internal/analytics"
	"github.com/cvangysel/gondri/internal/indexer"
	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher"
	"github.com/cvangysel/gondri/internal/searcher/cache"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
)

// maxEngines bounds the per-model engines kept warm.
const maxEngines = 16

// Repository is what the handler serves.
type Repository interface {
	NewEngine(m retrieval.Model, opts ...searcher.Option) (*searcher.Engine, error)
	DocumentIDs(external []string) ([]repository.DocumentIDPair, error)
	ExternalID(id int) (string, error)
	DocumentLength(id int) (int, error)
	DocumentText(id int) (string, error)
	ProcessTerm(raw string) (string, bool, error)
	LookupTerm(term string) (index.TermStats, bool, error)
	TermStatistics(id int) (index.TermStats, bool, error)
	Stats() (index.CollectionStats, error)
	UniqueTerms() (int, error)
	Manifest() indexer.Manifest
}

type Options struct {
	DefaultModel   retrieval.Model
	DefaultResults int
	MaxResults     int
	Cache          *cache.QueryCache
	Collector      *analytics.Collector
	Logger         *slog.Logger
}

type Handler struct {
	repo    Repository
	opts    Options
	engines *lru.Cache[string, *searcher.Engine]
	logger  *slog.Logger
}

func New(repo Repository, opts Options) (*Handler, error) {
	if opts.DefaultModel == nil {
		opts.DefaultModel = retrieval.DefaultModel()
	}
	if opts.DefaultResults <= 0 {
		opts.DefaultResults = searcher.DefaultResultsRequested
	}
	if opts.MaxResults < opts.DefaultResults {
		opts.MaxResults = opts.DefaultResults
	}
	engines, err := lru.New[string, *searcher.Engine](maxEngines)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		repo:    repo,
		opts:    opts,
		engines: engines,
		logger:  logger.Component(opts.Logger, "search-handler"),
	}
	if _, err := h.engine(opts.DefaultModel); err != nil {
		return nil, fmt.Errorf("default model: %w", err)
	}
	return h, nil
}

// Register adds the handler's routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/query", h.Query)
	mux.HandleFunc("GET /api/v1/expression", h.Expression)
	mux.HandleFunc("GET /api/v1/documents", h.ResolveDocuments)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/terms/id/{id}", h.TermByID)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// engine returns the engine for m, creating it on first use.
func (h *Handler) engine(m retrieval.Model) (*searcher.Engine, error) {
	rule := m.Rule()
	if e, ok := h.engines.Get(rule); ok {
		return e, nil
	}
	e, err := h.repo.NewEngine(m, searcher.WithLogger(h.opts.Logger))
	if err != nil {
		return nil, err
	}
	h.engines.Add(rule, e)
	return e, nil
}

type hitView struct {
	Document   int     `json:"document"`
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
	Snippet    *string `json:"snippet,omitempty"`
}

type queryResponse struct {
	Query      string    `json:"query"`
	Model      string    `json:"model"`
	Ascending  bool      `json:"ascending"`
	Hits       []hitView `json:"hits"`
	OOVTerms   []string  `json:"oov_terms,omitempty"`
	Candidates int       `json:"candidates"`
	CacheHit   bool      `json:"cache_hit"`
	TookMs     int64     `json:"took_ms"`
}

type queryRequest struct {
	text     string
	model    retrieval.Model
	n        int
	snippets bool
	docs     []int
}

// parseQuery reads q, n, model, snippets and docs. docs holds external
// document ids, comma separated or repeated.
func (h *Handler) parseQuery(r *http.Request) (queryRequest, error) {
	params := r.URL.Query()
	req := queryRequest{text: params.Get("q"), model: h.opts.DefaultModel, n: h.opts.DefaultResults}
	if strings.TrimSpace(req.text) == "" {
		return req, apperrors.Invalidf("query parameter 'q' is required")
	}
	if v := params.Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n == 0 {
			return req, apperrors.Invalidf("n must be a non-zero integer, got %q", v)
		}
		req.n = max(-h.opts.MaxResults, min(h.opts.MaxResults, n))
	}
	if v := params.Get("model"); v != "" {
		m, err := retrieval.ParseModel(v)
		if err != nil {
			return req, err
		}
		req.model = m
	}
	if v := params.Get("snippets"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, apperrors.Invalidf("snippets must be a boolean, got %q", v)
		}
		req.snippets = b
	}
	var external []string
	for _, v := range params["docs"] {
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				external = append(external, ext)
			}
		}
	}
	if len(external) > 0 {
		pairs, err := h.repo.DocumentIDs(external)
		if err != nil {
			return req, err
		}
		for _, p := range pairs {
			req.docs = append(req.docs, p.ID)
		}
	}
	return req, nil
}

// Query ranks documents for q.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	event := analytics.QueryEvent{
		Query:     req.text,
		Model:     req.model.Rule(),
		Requested: req.n,
		RequestID: logger.GetRequestID(ctx),
	}

	res, cacheHit, err := h.evaluate(ctx, req)
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()
	event.CacheHit = cacheHit
	if err != nil {
		event.Error = err.Error()
		h.track(event)
		h.writeError(w, r, err)
		return
	}
	event.Returned = len(res.Hits)
	event.Candidates = res.Candidates
	event.OOVTerms = res.OOVTerms
	h.track(event)

	resp := queryResponse{
		Query:      res.Query,
		Model:      res.Model,
		Ascending:  res.Ascending,
		Hits:       make([]hitView, 0, len(res.Hits)),
		OOVTerms:   res.OOVTerms,
		Candidates: res.Candidates,
		CacheHit:   cacheHit,
		TookMs:     event.LatencyMs,
	}
	for _, hit := range res.Hits {
		ext, err := h.repo.ExternalID(hit.Document)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		view := hitView{Document: hit.Document, ExternalID: ext, Score: hit.Score}
		if hit.Arity() == 3 {
			snippet := hit.Snippet
			view.Snippet = &snippet
		}
		resp.Hits = append(resp.Hits, view)
	}

	log.Info("query completed",
		"query", req.text,
		"model", res.Model,
		"returned", len(res.Hits),
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) evaluate(ctx context.Context, req queryRequest) (*searcher.Result, bool, error) {
	engine, err := h.engine(req.model)
	if err != nil {
		return nil, false, err
	}
	compute := func(ctx context.Context) (*searcher.Result, error) {
		return engine.Query(ctx, req.text, searcher.QueryOptions{
			DocumentSet:      req.docs,
			ResultsRequested: req.n,
			IncludeSnippets:  req.snippets,
		})
	}
	if h.opts.Cache == nil {
		res, err := compute(ctx)
		return res, false, err
	}
	key := cache.Key{
		Model:     req.model.Rule(),
		Query:     req.text,
		Results:   req.n,
		Snippets:  req.snippets,
		Documents: req.docs,
	}
	return h.opts.Cache.GetOrCompute(ctx, key, compute)
}

func (h *Handler) track(event analytics.QueryEvent) {
	if h.opts.Collector == nil {
		return
	}
	event.Classify()
	h.opts.Collector.Track(event)
}

// Expression counts matches of a term or proximity expression per
// external document id.
func (h *Handler) Expression(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if strings.TrimSpace(expr) == "" {
		h.writeError(w, r, apperrors.Invalidf("query parameter 'expr' is required"))
		return
	}
	engine, err := h.engine(h.opts.DefaultModel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	counts, err := engine.ExpressionList(r.Context(), expr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"expression": expr, "counts": counts})
}

// ResolveDocuments maps ?external=a,b to internal ids.
func (h *Handler) ResolveDocuments(w http.ResponseWriter, r *http.Request) {
	var external []string
	for _, v := range r.URL.Query()["external"] {
		external = append(external, strings.Split(v, ",")...)
	}
	if len(external) == 0 {
		h.writeError(w, r, apperrors.Invalidf("query parameter 'external' is required"))
		return
	}
	pairs, err := h.repo.DocumentIDs(external)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"documents": pairs})
}

type documentView struct {
	ID         int    `json:"id"`
	ExternalID string `json:"external_id"`
	Length     int    `json:"length"`
	Text       string `json:"text"`
}

// Document returns an internal document.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, apperrors.Invalidf("document id must be an integer, got %q", r.PathValue("id")))
		return
	}
	var doc documentView
	doc.ID = id
	if doc.ExternalID, err = h.repo.ExternalID(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if doc.Length, err = h.repo.DocumentLength(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if doc.Text, err = h.repo.DocumentText(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Term normalizes a raw term and reports its statistics.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("term")
	term, ok, err := h.repo.ProcessTerm(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.writeError(w, r, apperrors.Lookupf("term %q normalizes to nothing", raw))
		return
	}
	stats, found, err := h.repo.LookupTerm(term)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		h.writeError(w, r, apperrors.Lookupf("term %q not in vocabulary", term))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"raw":  raw,
		"term": stats.Term,
		"id":   stats.ID,
		"df":   stats.DF,
		"cf":   stats.CF,
	})
}

// TermByID reports the statistics of a term id.
func (h *Handler) TermByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, apperrors.Invalidf("term id must be an integer, got %q", r.PathValue("id")))
		return
	}
	stats, found, err := h.repo.TermStatistics(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		h.writeError(w, r, apperrors.Lookupf("term id %d not in vocabulary", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"term": stats.Term,
		"id":   stats.ID,
		"df":   stats.DF,
		"cf":   stats.CF,
	})
}

// Stats describes the served repository.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unique, err := h.repo.UniqueTerms()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	m := h.repo.Manifest()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":        stats.Documents,
		"document_base":    m.DocumentBase,
		"maximum_document": m.MaximumDocument,
		"total_terms":      stats.TotalTerms,
		"unique_terms":     unique,
		"avg_doc_length":   stats.AvgDocLength(),
		"stemmer":          m.Stemmer,
		"store_text":       m.StoreText,
		"default_model":    h.opts.DefaultModel.Rule(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.opts.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.opts.Cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError answers with the status err maps to. Server-side failures are
// logged and their detail withheld.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
