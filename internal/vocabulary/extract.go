package vocabulary

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

// Source supplies the raw vocabulary of a repository.
type Source interface {
	Dictionary() (repository.Vocabulary, error)
	TermFrequencies() (map[int]int64, error)
}

type ExtractOptions struct {
	// MaxTerms keeps only the terms with the highest collection frequency
	// when positive.
	MaxTerms int
	// MakeContiguous renumbers the surviving terms 0..N-1 in ascending
	// order of their repository ids.
	MakeContiguous bool

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Extract builds a Dictionary from src. When opts.MakeContiguous is set the
// second result maps repository term ids to the new ids; otherwise it is
// nil. The Dictionary never translates ids on its own, so callers apply
// the mapping with RemapDocument.
func Extract(ctx context.Context, src Source, opts ExtractOptions) (*Dictionary, map[int]int, error) {
	log := logger.Component(opts.Logger, "vocabulary")

	vocab, err := src.Dictionary()
	if err != nil {
		return nil, nil, fmt.Errorf("reading dictionary: %w", err)
	}
	token2id, id2token, id2df := vocab.Token2ID, vocab.ID2Token, vocab.ID2DF

	if opts.MaxTerms > 0 {
		cf, err := src.TermFrequencies()
		if err != nil {
			return nil, nil, fmt.Errorf("reading term frequencies: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		keep := topByFrequency(cf, opts.MaxTerms)
		token2id, id2token, id2df = restrict(id2token, id2df, keep)
	}

	var mapping map[int]int
	if opts.MakeContiguous {
		ids := make([]int, 0, len(id2token))
		for id := range id2token {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		mapping = make(map[int]int, len(ids))
		newToken2ID := make(map[string]int, len(ids))
		newID2Token := make(map[int]string, len(ids))
		newID2DF := make(map[int]int, len(ids))
		for cid, id := range ids {
			mapping[id] = cid
			newID2Token[cid] = id2token[id]
			newToken2ID[id2token[id]] = cid
			newID2DF[cid] = id2df[id]
		}
		token2id, id2token, id2df = newToken2ID, newID2Token, newID2DF
	}

	dict, err := NewDictionary(token2id, id2token, id2df)
	if err != nil {
		return nil, nil, err
	}
	if opts.Metrics != nil {
		opts.Metrics.DictionaryExtractions.WithLabelValues(extractMode(opts)).Inc()
	}
	log.Debug("dictionary extracted",
		"terms", dict.Len(),
		"max_terms", opts.MaxTerms,
		"contiguous", opts.MakeContiguous,
	)
	return dict, mapping, nil
}

func extractMode(opts ExtractOptions) string {
	switch {
	case opts.MaxTerms > 0 && opts.MakeContiguous:
		return "top_contiguous"
	case opts.MaxTerms > 0:
		return "top"
	case opts.MakeContiguous:
		return "contiguous"
	default:
		return "full"
	}
}

func restrict(id2token map[int]string, id2df map[int]int, keep map[int]struct{}) (map[string]int, map[int]string, map[int]int) {
	token2id := make(map[string]int, len(keep))
	outTokens := make(map[int]string, len(keep))
	outDF := make(map[int]int, len(keep))
	for id := range keep {
		token, ok := id2token[id]
		if !ok {
			continue
		}
		token2id[token] = id
		outTokens[id] = token
		outDF[id] = id2df[id]
	}
	return token2id, outTokens, outDF
}

// RemapDocument translates repository term ids through mapping, dropping
// ids the mapping does not cover.
func RemapDocument(ids []int, mapping map[int]int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if cid, ok := mapping[id]; ok {
			out = append(out, cid)
		}
	}
	return out
}

type termFreq struct {
	id int
	cf int64
}

// freqHeap is a min-heap on collection frequency; among equal frequencies
// the larger id sits nearer the root so smaller ids survive.
type freqHeap []termFreq

func (h freqHeap) Len() int { return len(h) }
func (h freqHeap) Less(i, j int) bool {
	if h[i].cf != h[j].cf {
		return h[i].cf < h[j].cf
	}
	return h[i].id > h[j].id
}
func (h freqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *freqHeap) Push(x any)   { *h = append(*h, x.(termFreq)) }
func (h *freqHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topByFrequency selects the k ids with the highest collection frequency.
func topByFrequency(cf map[int]int64, k int) map[int]struct{} {
	h := make(freqHeap, 0, k)
	for id, f := range cf {
		tf := termFreq{id: id, cf: f}
		if h.Len() < k {
			heap.Push(&h, tf)
			continue
		}
		if freqHeap([]termFreq{h[0], tf}).Less(0, 1) {
			h[0] = tf
			heap.Fix(&h, 0)
		}
	}
	keep := make(map[int]struct{}, h.Len())
	for _, tf := range h {
		keep[tf.id] = struct{}{}
	}
	return keep
}
