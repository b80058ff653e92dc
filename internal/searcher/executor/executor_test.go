package executor

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher/merger"
	"github.com/cvangysel/gondri/internal/searcher/parser"
	"github.com/cvangysel/gondri/pkg/logger"
)

// memSource serves a hand-built MemoryIndex snapshot.
type memSource struct {
	snap index.Snapshot
}

func newMemSource(t *testing.T, docs ...[]string) *memSource {
	t.Helper()
	m := index.NewMemoryIndex(1, false)
	for i, d := range docs {
		_, err := m.AddDocument(string(rune('a'+i)), d, "")
		require.NoError(t, err)
	}
	return &memSource{snap: m.Snapshot()}
}

func (s *memSource) Postings(id int) (index.PostingList, error) {
	return s.snap.Terms[id-1].Postings, nil
}

func (s *memSource) DocumentLength(id int) (int, error) {
	return len(s.snap.Documents[id-1].Terms), nil
}

func (s *memSource) Stats() (index.CollectionStats, error) {
	return index.CollectionStats{Documents: len(s.snap.Documents), TotalTerms: s.snap.TotalTerms()}, nil
}

func (s *memSource) plan(terms ...string) *parser.QueryPlan {
	p := &parser.QueryPlan{}
	for _, term := range terms {
		for _, e := range s.snap.Terms {
			if e.Term == term {
				p.Terms = append(p.Terms, parser.QueryTerm{
					TermStats: index.TermStats{ID: e.ID, Term: e.Term, DF: e.DF(), CF: e.CF},
					QTF:       1,
				})
				p.Length++
			}
		}
	}
	return p
}

func TestExecuteRanksAndFilters(t *testing.T) {
	src := newMemSource(t,
		[]string{"apple", "banana", "apple"},
		[]string{"banana", "cherry"},
		[]string{"cherry", "cherry", "durian"},
	)
	ex := New(src, 2, logger.Discard())
	ctx := context.Background()

	out, err := ex.Execute(ctx, Request{Plan: src.plan("apple"), Rule: retrieval.DefaultModel().Rule(), Limit: 10})
	require.NoError(t, err)
	require.Len(t, out.Docs, 1)
	assert.Equal(t, 1, out.Docs[0].DocID)

	out, err = ex.Execute(ctx, Request{Plan: src.plan("banana", "cherry"), Rule: retrieval.DefaultTFIDF().Rule(), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Candidates)
	require.Len(t, out.Docs, 3)
	assert.Equal(t, 2, out.Docs[0].DocID, "the document with both terms ranks first")

	out, err = ex.Execute(ctx, Request{
		Plan:   src.plan("banana", "cherry"),
		Rule:   retrieval.DefaultTFIDF().Rule(),
		Limit:  10,
		Filter: roaring.BitmapOf(1, 3),
	})
	require.NoError(t, err)
	assert.Len(t, out.Docs, 2)
	for _, d := range out.Docs {
		assert.NotEqual(t, 2, d.DocID)
	}

	asc, err := ex.Execute(ctx, Request{Plan: src.plan("banana", "cherry"), Rule: retrieval.DefaultTFIDF().Rule(), Limit: 1, Order: merger.Ascending})
	require.NoError(t, err)
	require.Len(t, asc.Docs, 1)
	assert.NotEqual(t, 2, asc.Docs[0].DocID)

	out, err = ex.Execute(ctx, Request{Plan: &parser.QueryPlan{}, Rule: retrieval.DefaultTFIDF().Rule(), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, out.Docs)
}

func TestExecuteHonoursCancellation(t *testing.T) {
	src := newMemSource(t, []string{"x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(src, 1, logger.Discard()).Execute(ctx, Request{Plan: src.plan("x"), Rule: retrieval.DefaultModel().Rule(), Limit: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountMatches(t *testing.T) {
	src := newMemSource(t,
		[]string{"lorem", "consectetur", "adipiscing", "x", "consectetur", "adipiscing"},
		[]string{"adipiscing", "consectetur"},
		[]string{"consectetur", "y", "adipiscing"},
	)
	c, _ := src.Postings(2)
	a, _ := src.Postings(3)

	od1 := CountMatches(&parser.Expression{Op: parser.Ordered, Window: 1}, []index.PostingList{c, a})
	assert.Equal(t, map[int]int{1: 2}, od1)

	od2 := CountMatches(&parser.Expression{Op: parser.Ordered, Window: 2}, []index.PostingList{c, a})
	assert.Equal(t, map[int]int{1: 2, 3: 1}, od2)

	uw2 := CountMatches(&parser.Expression{Op: parser.Unordered, Window: 2}, []index.PostingList{c, a})
	assert.Equal(t, map[int]int{1: 2, 2: 1}, uw2)

	term := CountMatches(&parser.Expression{Op: parser.Term}, []index.PostingList{c})
	assert.Equal(t, map[int]int{1: 2, 2: 1, 3: 1}, term)
}
