// Package merger selects the best or worst k scored documents.
package merger

import (
	"container/heap"

	"github.com/cvangysel/gondri/internal/searcher/ranker"
)

// Order fixes how hits are ranked. Ties on score are broken on document id
// so that Ascending is the exact reverse of Descending.
type Order int

const (
	// Descending ranks by score high to low, then document id low to high.
	Descending Order = iota
	// Ascending ranks by score low to high, then document id high to low.
	Ascending
)

// Before reports whether a ranks ahead of b.
func (o Order) Before(a, b ranker.ScoredDoc) bool {
	if o == Ascending {
		a, b = b, a
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Selector accumulates documents and keeps the k that rank first.
type Selector struct {
	h rankHeap
	k int
}

func NewSelector(k int, order Order) *Selector {
	return &Selector{k: k, h: rankHeap{order: order, docs: make([]ranker.ScoredDoc, 0, min(k, 1024))}}
}

func (s *Selector) Offer(doc ranker.ScoredDoc) {
	if s.k <= 0 {
		return
	}
	if s.h.Len() < s.k {
		heap.Push(&s.h, doc)
		return
	}
	// root is the last-ranked kept document
	if s.h.order.Before(doc, s.h.docs[0]) {
		s.h.docs[0] = doc
		heap.Fix(&s.h, 0)
	}
}

// Results drains the selector in rank order.
func (s *Selector) Results() []ranker.ScoredDoc {
	out := make([]ranker.ScoredDoc, s.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&s.h).(ranker.ScoredDoc)
	}
	return out
}

type rankHeap struct {
	order Order
	docs  []ranker.ScoredDoc
}

func (h rankHeap) Len() int { return len(h.docs) }

func (h rankHeap) Less(i, j int) bool { return h.order.Before(h.docs[j], h.docs[i]) }

func (h rankHeap) Swap(i, j int) { h.docs[i], h.docs[j] = h.docs[j], h.docs[i] }

func (h *rankHeap) Push(x any) {
	h.docs = append(h.docs, x.(ranker.ScoredDoc))
}

func (h *rankHeap) Pop() any {
	old := h.docs
	n := len(old)
	item := old[n-1]
	h.docs = old[:n-1]
	return item
}
