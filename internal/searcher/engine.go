// Package searcher is the query engine of a repository. An Engine binds a
// collection to one retrieval model; several engines with different models
// may share a collection.
package searcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher/executor"
	"github.com/cvangysel/gondri/internal/searcher/merger"
	"github.com/cvangysel/gondri/internal/searcher/parser"
	"github.com/cvangysel/gondri/internal/searcher/ranker"
	"github.com/cvangysel/gondri/internal/searcher/snippet"
	"github.com/cvangysel/gondri/internal/textnorm"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

// DefaultResultsRequested applies when a query asks for zero results.
const DefaultResultsRequested = 100

// Collection is what an Engine needs from a repository. Every method fails
// with ErrIllegalState once the repository is closed.
type Collection interface {
	parser.Lexicon
	executor.Source
	DocumentBase() (int, error)
	MaximumDocument() (int, error)
	DocumentText(id int) (string, error)
	ExternalID(id int) (string, error)
}

// QueryOptions shape a query.
type QueryOptions struct {
	// DocumentSet restricts results to these internal ids when non-empty.
	DocumentSet []int
	// ResultsRequested bounds the number of hits. Positive values rank by
	// descending score; negative values return the |n| lowest-scoring
	// candidates in ascending order. Zero means DefaultResultsRequested.
	ResultsRequested int
	// IncludeSnippets makes every hit a three-element hit.
	IncludeSnippets bool
}

type Engine struct {
	coll     Collection
	model    retrieval.Model
	exec     *executor.Executor
	snippets *snippet.Builder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.Component(l, "searcher") }
}

// New binds coll to model. The model's rule is validated up front.
func New(coll Collection, model retrieval.Model, opts ...Option) (*Engine, error) {
	if model == nil {
		model = retrieval.DefaultModel()
	}
	if _, err := ranker.New(model.Rule(), index.CollectionStats{}); err != nil {
		return nil, err
	}
	e := &Engine{
		coll:     coll,
		model:    model,
		snippets: snippet.NewBuilder(),
		logger:   logger.Component(nil, "searcher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.exec = executor.New(coll, 4, e.logger)
	return e, nil
}

// Model returns the engine's retrieval model.
func (e *Engine) Model() retrieval.Model {
	return e.model
}

// Query ranks documents for text. Unknown query terms are reported in
// Result.OOVTerms; a query with no known terms yields no hits.
func (e *Engine) Query(ctx context.Context, text string, opts QueryOptions) (*Result, error) {
	start := time.Now()
	res, err := e.query(ctx, text, opts)
	e.observe(res, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("query evaluated",
		"component", "searcher",
		"query", text,
		"model", e.model.Rule(),
		"hits", len(res.Hits),
		"oov", len(res.OOVTerms),
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Engine) query(ctx context.Context, text string, opts QueryOptions) (*Result, error) {
	n := opts.ResultsRequested
	if n == 0 {
		n = DefaultResultsRequested
	}
	order := merger.Descending
	if n < 0 {
		order, n = merger.Ascending, -n
	}

	filter, err := e.documentFilter(opts.DocumentSet)
	if err != nil {
		return nil, err
	}
	plan, err := parser.Parse(e.coll, text)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Query:     text,
		Model:     e.model.Rule(),
		Ascending: order == merger.Ascending,
		Hits:      []Hit{},
		OOVTerms:  plan.OOV,
	}
	out, err := e.exec.Execute(ctx, executor.Request{
		Plan:   plan,
		Rule:   e.model.Rule(),
		Filter: filter,
		Limit:  n,
		Order:  order,
	})
	if err != nil {
		return nil, err
	}
	res.Candidates = out.Candidates

	var match snippet.Matcher
	if opts.IncludeSnippets {
		match = e.matcher(plan.TermSet())
	}
	for _, d := range out.Docs {
		if !opts.IncludeSnippets {
			res.Hits = append(res.Hits, NewHit(d.DocID, d.Score))
			continue
		}
		body, err := e.coll.DocumentText(d.DocID)
		if err != nil {
			return nil, err
		}
		res.Hits = append(res.Hits, NewSnippetHit(d.DocID, d.Score, e.snippets.Build(body, match)))
	}
	return res, nil
}

// documentFilter validates the restriction set; every id must name a
// document.
func (e *Engine) documentFilter(ids []int) (*roaring.Bitmap, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	base, err := e.coll.DocumentBase()
	if err != nil {
		return nil, err
	}
	maximum, err := e.coll.MaximumDocument()
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	for _, id := range ids {
		if id < base || id >= maximum {
			return nil, apperrors.Lookupf("document %d outside [%d, %d)", id, base, maximum)
		}
		bm.Add(uint32(id))
	}
	return bm, nil
}

// matcher normalizes each raw word of document text the way the
// repository does and compares it with the query terms.
func (e *Engine) matcher(terms map[string]struct{}) snippet.Matcher {
	return func(word string) bool {
		for _, piece := range textnorm.Split(textnorm.Escape(word)) {
			term, ok, err := e.coll.ProcessTerm(piece)
			if err != nil || !ok {
				continue
			}
			if _, hit := terms[term]; hit {
				return true
			}
		}
		return false
	}
}

// ExpressionList counts the matches of a term or proximity expression per
// document, keyed by external document id.
func (e *Engine) ExpressionList(ctx context.Context, expr string) (map[string]int, error) {
	parsed, err := parser.ParseExpression(e.coll, expr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	if len(parsed.OOV) > 0 {
		return out, nil
	}
	postings := make([]index.PostingList, 0, len(parsed.Terms))
	for _, term := range parsed.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, _, err := e.coll.LookupTerm(term)
		if err != nil {
			return nil, err
		}
		list, err := e.coll.Postings(stats.ID)
		if err != nil {
			return nil, err
		}
		postings = append(postings, list)
	}
	for doc, n := range executor.CountMatches(parsed, postings) {
		ext, err := e.coll.ExternalID(doc)
		if err != nil {
			return nil, err
		}
		out[ext] = n
	}
	return out, nil
}

func (e *Engine) observe(res *Result, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	name := e.model.Name()
	e.metrics.QueryLatency.WithLabelValues(name).Observe(elapsed.Seconds())
	switch {
	case err != nil:
		e.metrics.QueriesTotal.WithLabelValues(name, "error").Inc()
	case len(res.Hits) == 0:
		e.metrics.QueriesTotal.WithLabelValues(name, "zero_result").Inc()
	default:
		e.metrics.QueriesTotal.WithLabelValues(name, "ok").Inc()
	}
	if res != nil {
		e.metrics.QueryResultsCount.Observe(float64(len(res.Hits)))
		e.metrics.QueryOOVTermsTotal.Add(float64(len(res.OOVTerms)))
	}
}
