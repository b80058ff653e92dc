package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/repository/repotest"
	"github.com/cvangysel/gondri/internal/vocabulary"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

type stubSource struct {
	docs [][]int
	fail int
}

func (s stubSource) DocumentBase() (int, error)    { return 1, nil }
func (s stubSource) MaximumDocument() (int, error) { return 1 + len(s.docs), nil }
func (s stubSource) Document(id int) (string, []int, error) {
	if id == s.fail {
		return "", nil, apperrors.Lookupf("document %d", id)
	}
	return "", s.docs[id-1], nil
}

func dictionary(t *testing.T) *vocabulary.Dictionary {
	t.Helper()
	d, err := vocabulary.NewDictionary(
		map[string]int{"a": 1, "b": 2},
		map[int]string{1: "a", 2: "b"},
		map[int]int{1: 1, 2: 1},
	)
	require.NoError(t, err)
	return d
}

func TestSentencesSkipsUnknownIDs(t *testing.T) {
	s := New(stubSource{docs: [][]int{{1, 0, 2, 9}, {2, 2}, {}}}, dictionary(t))

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var got [][]string
	for tokens, err := range s.All() {
		require.NoError(t, err)
		got = append(got, tokens)
	}
	assert.Equal(t, [][]string{{"a", "b"}, {"b", "b"}, {}}, got)
}

func TestSentencesRestartable(t *testing.T) {
	s := New(stubSource{docs: [][]int{{1}, {2}}}, dictionary(t))

	for pass := 0; pass < 2; pass++ {
		it := s.Iterator()
		var count int
		for it.Next() {
			count++
		}
		require.NoError(t, it.Err())
		assert.Equal(t, 2, count, "pass %d", pass)
	}
}

func TestSentencesMaxDocuments(t *testing.T) {
	src := stubSource{docs: [][]int{{1}, {2}, {1}}}

	s := New(src, dictionary(t), WithMaxDocuments(2))
	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s = New(src, dictionary(t), WithMaxDocuments(10))
	n, err = s.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSentencesStopsOnError(t *testing.T) {
	s := New(stubSource{docs: [][]int{{1}, {2}, {1}}, fail: 2}, dictionary(t))

	var seen int
	var last error
	for _, err := range s.All() {
		if err != nil {
			last = err
			break
		}
		seen++
	}
	assert.Equal(t, 1, seen)
	assert.ErrorIs(t, last, apperrors.ErrLookup)
}

func TestSentencesOverRepository(t *testing.T) {
	repo := repotest.Open(t)
	dict, mapping, err := vocabulary.Extract(context.Background(), repo, vocabulary.ExtractOptions{MakeContiguous: true})
	require.NoError(t, err)

	s := New(repo, dict, WithMapping(mapping), WithMaxDocuments(1))
	it := s.Iterator()
	require.True(t, it.Next())
	assert.Equal(t, []string{"lorem", "ipsum", "dolor"}, it.Tokens()[:3])
	assert.Len(t, it.Tokens(), 88)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}
