package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/retrieval"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

var stats = index.CollectionStats{Documents: 10, TotalTerms: 1000}

func TestDirichletPrefersHigherTF(t *testing.T) {
	s, err := New("method:dirichlet,mu:100", stats)
	require.NoError(t, err)
	term := index.TermStats{ID: 1, DF: 3, CF: 20}

	low := s.Finish(s.TermScore(1, 1, 100, term), 1)
	high := s.Finish(s.TermScore(5, 1, 100, term), 1)
	absent := s.Finish(s.TermScore(0, 1, 100, term), 1)
	assert.Greater(t, high, low)
	assert.Greater(t, low, absent)
	assert.Less(t, high, 0.0, "log probabilities are negative")

	want := math.Log((5 + 100*0.02) / 200.0)
	assert.InDelta(t, want, high, 1e-12)
}

func TestDirichletAveragesQueryTokens(t *testing.T) {
	s, err := New(retrieval.DefaultModel().Rule(), stats)
	require.NoError(t, err)
	term := index.TermStats{ID: 1, DF: 3, CF: 20}
	one := s.TermScore(2, 1, 50, term)
	assert.InDelta(t, one, s.Finish(s.TermScore(2, 2, 50, term), 2), 1e-12)
}

func TestLinearStaysFinite(t *testing.T) {
	s, err := New("method:linear,collectionLambda:0,documentLambda:0", stats)
	require.NoError(t, err)
	v := s.TermScore(0, 1, 10, index.TermStats{CF: 5})
	assert.False(t, math.IsInf(v, 0))
}

func TestOkapiIDFCanBeNegative(t *testing.T) {
	s, err := New(retrieval.DefaultOkapi().Rule(), stats)
	require.NoError(t, err)

	common := index.TermStats{DF: 9, CF: 50}
	rare := index.TermStats{DF: 1, CF: 1}
	assert.Less(t, s.TermScore(1, 1, 100, common), 0.0)
	assert.Greater(t, s.TermScore(1, 1, 100, rare), 0.0)
	assert.Zero(t, s.TermScore(0, 1, 100, rare))
}

func TestTFIDFLengthNormalization(t *testing.T) {
	s, err := New(retrieval.DefaultTFIDF().Rule(), stats)
	require.NoError(t, err)
	term := index.TermStats{DF: 2, CF: 4}
	short := s.TermScore(2, 1, 50, term)
	long := s.TermScore(2, 1, 400, term)
	assert.Greater(t, short, long)
	assert.Equal(t, short, s.Finish(short, 3))
}

func TestNewRejectsUnknownRule(t *testing.T) {
	_, err := New("method:twostage,mu:1", stats)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestNewRejectsOutOfRangeParameters(t *testing.T) {
	for _, rule := range []string{
		"method:dirichlet,mu:-5",
		"method:linear,collectionLambda:1.7",
		"okapi,k1:-1",
		"tfidf,b:2",
	} {
		_, err := New(rule, stats)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, rule)
	}

	s, err := New("method:jm,lambda:1", stats)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.(*linear).lambda)
}
