// Package executor evaluates resolved query plans against a repository:
// it gathers postings, builds the candidate set, scores every candidate
// under a retrieval rule and keeps the requested number of hits.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/searcher/merger"
	"github.com/cvangysel/gondri/internal/searcher/parser"
	"github.com/cvangysel/gondri/internal/searcher/ranker"
	"github.com/cvangysel/gondri/pkg/logger"
)

// cancelCheckEvery bounds how many candidates are scored between context
// checks.
const cancelCheckEvery = 1024

// Source is the part of a repository the executor reads.
type Source interface {
	Postings(termID int) (index.PostingList, error)
	DocumentLength(id int) (int, error)
	Stats() (index.CollectionStats, error)
}

type Request struct {
	Plan *parser.QueryPlan
	Rule string
	// Filter restricts candidates when non-nil.
	Filter *roaring.Bitmap
	Limit  int
	Order  merger.Order
}

type Outcome struct {
	Docs       []ranker.ScoredDoc
	Candidates int
}

type Executor struct {
	src     Source
	workers int
	logger  *slog.Logger
}

func New(src Source, workers int, l *slog.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		src:     src,
		workers: workers,
		logger:  logger.Component(l, "query-executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, req Request) (*Outcome, error) {
	if req.Plan.Empty() || req.Limit == 0 {
		return &Outcome{Docs: []ranker.ScoredDoc{}}, nil
	}
	stats, err := e.src.Stats()
	if err != nil {
		return nil, err
	}
	scorer, err := ranker.New(req.Rule, stats)
	if err != nil {
		return nil, err
	}

	postings, err := e.fetch(ctx, req.Plan.Terms)
	if err != nil {
		return nil, err
	}

	candidates := roaring.New()
	tfs := make(map[uint32][]int)
	for i, list := range postings {
		for _, p := range list {
			id := uint32(p.DocID)
			if req.Filter != nil && !req.Filter.Contains(id) {
				continue
			}
			tf, ok := tfs[id]
			if !ok {
				tf = make([]int, len(postings))
				tfs[id] = tf
				candidates.Add(id)
			}
			tf[i] = p.Frequency
		}
	}

	sel := merger.NewSelector(req.Limit, req.Order)
	it := candidates.Iterator()
	for n := 0; it.HasNext(); n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		id := it.Next()
		docLen, err := e.src.DocumentLength(int(id))
		if err != nil {
			return nil, fmt.Errorf("scoring document %d: %w", id, err)
		}
		var sum float64
		for i, t := range req.Plan.Terms {
			sum += scorer.TermScore(tfs[id][i], t.QTF, docLen, t.TermStats)
		}
		sel.Offer(ranker.ScoredDoc{DocID: int(id), Score: scorer.Finish(sum, req.Plan.Length)})
	}

	docs := sel.Results()
	e.logger.Debug("query executed",
		"query", req.Plan.RawQuery,
		"rule", req.Rule,
		"terms", len(req.Plan.Terms),
		"candidates", candidates.GetCardinality(),
		"results", len(docs),
	)
	return &Outcome{Docs: docs, Candidates: int(candidates.GetCardinality())}, nil
}

// fetch reads the posting list of every term concurrently.
func (e *Executor) fetch(ctx context.Context, terms []parser.QueryTerm) ([]index.PostingList, error) {
	out := make([]index.PostingList, len(terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, t := range terms {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			list, err := e.src.Postings(t.ID)
			if err != nil {
				return fmt.Errorf("reading postings of %q: %w", t.Term, err)
			}
			out[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
