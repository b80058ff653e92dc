package searcher_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/repository/repotest"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/metrics"
)

func TestQuerySingleDocument(t *testing.T) {
	repo := repotest.Open(t)

	res, err := repo.Query(context.Background(), "ipsum", searcher.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 1, res.Hits[0].Document)
	assert.Less(t, res.Hits[0].Score, 0.0, "language model scores are log probabilities")
	assert.Equal(t, 2, res.Hits[0].Arity())
	assert.Equal(t, "method:dirichlet,mu:2500", res.Model)
}

func TestQueryRanksDescending(t *testing.T) {
	repo := repotest.Open(t)

	res, err := repo.Query(context.Background(), "his", searcher.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.ElementsMatch(t, []int{2, 3}, []int{res.Hits[0].Document, res.Hits[1].Document})
	assert.GreaterOrEqual(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.False(t, res.Ascending)

	top, err := repo.Query(context.Background(), "his", searcher.QueryOptions{ResultsRequested: 1})
	require.NoError(t, err)
	require.Len(t, top.Hits, 1)
	assert.Equal(t, res.Hits[0], top.Hits[0])
}

func TestQuerySignInversion(t *testing.T) {
	repo := repotest.Open(t)
	ctx := context.Background()
	const query = "the wall of ipsum"

	all, err := repo.Query(ctx, query, searcher.QueryOptions{ResultsRequested: 10})
	require.NoError(t, err)
	require.Len(t, all.Hits, 3)

	desc, err := repo.Query(ctx, query, searcher.QueryOptions{ResultsRequested: 2})
	require.NoError(t, err)
	assert.Equal(t, all.Hits[:2], desc.Hits)

	asc, err := repo.Query(ctx, query, searcher.QueryOptions{ResultsRequested: -2})
	require.NoError(t, err)
	assert.True(t, asc.Ascending)
	require.Len(t, asc.Hits, 2)
	assert.Equal(t, all.Hits[2], asc.Hits[0], "ascending starts with the lowest score")
	assert.Equal(t, all.Hits[1], asc.Hits[1])
	assert.LessOrEqual(t, asc.Hits[0].Score, asc.Hits[1].Score)
}

func TestQueryDocumentSet(t *testing.T) {
	repo := repotest.Open(t)
	ctx := context.Background()

	pairs, err := repo.DocumentIDs([]string{"hamlet"})
	require.NoError(t, err)

	res, err := repo.Query(ctx, "his", searcher.QueryOptions{DocumentSet: []int{pairs[0].ID}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 2, res.Hits[0].Document)

	_, err = repo.Query(ctx, "his", searcher.QueryOptions{DocumentSet: []int{2, 4}})
	assert.ErrorIs(t, err, apperrors.ErrLookup)
	_, err = repo.Query(ctx, "his", searcher.QueryOptions{DocumentSet: []int{0}})
	assert.ErrorIs(t, err, apperrors.ErrLookup)
}

func TestQuerySnippets(t *testing.T) {
	repo := repotest.Open(t)

	res, err := repo.Query(context.Background(), "ipsum", searcher.QueryOptions{IncludeSnippets: true})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, 3, hit.Arity())
	assert.Len(t, hit.Tuple(), 3)
	assert.Equal(t, "Lorem IPSUM dolor sit amet, consectetur adipiscing\nelit. Duis...", hit.Snippet)

	raw, err := json.Marshal(hit)
	require.NoError(t, err)
	var decoded searcher.Hit
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, hit, decoded)
}

func TestQueryOutOfVocabulary(t *testing.T) {
	repo := repotest.Open(t)

	res, err := repo.Query(context.Background(), "zebra ipsum", searcher.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra"}, res.OOVTerms)
	assert.Len(t, res.Hits, 1)

	res, err = repo.Query(context.Background(), "zebra", searcher.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.NotNil(t, res.Hits)
}

func TestQueryMalformed(t *testing.T) {
	repo := repotest.Open(t)

	_, err := repo.Query(context.Background(), "hello [world]", searcher.QueryOptions{})
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestQueryEnvironments(t *testing.T) {
	repo := repotest.Open(t)
	ctx := context.Background()

	linear, err := retrieval.Linear(0.4, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "method:linear,collectionLambda:0.4,documentLambda:0.2", linear.Rule())

	for _, model := range []retrieval.Model{
		linear,
		retrieval.DefaultTFIDF(),
		retrieval.DefaultOkapi(),
	} {
		t.Run(model.Name(), func(t *testing.T) {
			eng, err := repo.NewEngine(model)
			require.NoError(t, err)
			assert.Equal(t, model, eng.Model())

			res, err := eng.Query(ctx, "ipsum", searcher.QueryOptions{})
			require.NoError(t, err)
			require.Len(t, res.Hits, 1)
			assert.Equal(t, 1, res.Hits[0].Document)
			assert.Equal(t, model.Rule(), res.Model)

			res, err = eng.Query(ctx, "his", searcher.QueryOptions{})
			require.NoError(t, err)
			assert.Len(t, res.Hits, 2)
		})
	}

	tfidf, err := repo.NewEngine(retrieval.DefaultTFIDF())
	require.NoError(t, err)
	res, err := tfidf.Query(ctx, "ipsum", searcher.QueryOptions{})
	require.NoError(t, err)
	assert.Greater(t, res.Hits[0].Score, 0.0)
}

func TestQueryRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := repotest.Open(t, repository.WithMetrics(metrics.New(reg)))

	_, err := repo.Query(context.Background(), "ipsum", searcher.QueryOptions{})
	require.NoError(t, err)
	_, err = repo.Query(context.Background(), "zebra", searcher.QueryOptions{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "gondri_queries_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result_type" {
					counts[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, counts["ok"])
	assert.Equal(t, 1.0, counts["zero_result"])
}

func TestQueryCancelled(t *testing.T) {
	repo := repotest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Query(ctx, "his", searcher.QueryOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
