package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/indexer/segment"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

func toyDocs() []Document {
	return []Document{
		{ExternalID: "lorem", Text: "Lorem ipsum dolor sit amet, consectetur adipiscing elit."},
		{ExternalID: "hamlet", Text: "To be, or not to be: that is the question."},
		{ExternalID: "romeo", Text: "But, soft! what light through yonder window breaks? It is the east."},
	}
}

func newBuilder(t *testing.T, opts Options) *Builder {
	t.Helper()
	b, err := NewBuilder(opts, metrics.New(prometheus.NewRegistry()), logger.Discard())
	require.NoError(t, err)
	return b
}

func TestBuildWritesManifestAndSegment(t *testing.T) {
	dir := t.TempDir()
	b := newBuilder(t, Options{Workers: 2, BatchSize: 2, StoreText: true})

	m, err := b.Build(context.Background(), dir, NewSliceSource(toyDocs()...))
	require.NoError(t, err)

	assert.Equal(t, 1, m.DocumentBase)
	assert.Equal(t, 4, m.MaximumDocument)
	assert.Equal(t, 3, m.DocumentCount)
	assert.Equal(t, "krovetz", m.Stemmer)

	reread, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Segment, reread.Segment)
	assert.Equal(t, m.TotalTerms, reread.TotalTerms)

	r, err := segment.OpenReader(m.SegmentPath(dir))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.DocCount())
	assert.Equal(t, m.UniqueTerms, r.TermCount())
	assert.Equal(t, m.TotalTerms, r.TotalTerms())

	id, ok := r.DocumentID("hamlet")
	require.True(t, ok)
	assert.Equal(t, 2, id)
	entry, _ := r.DocEntry(id)
	assert.Equal(t, 10, entry.Length)

	beID, ok := r.TermID("be")
	require.True(t, ok)
	postings, err := r.Postings(beID)
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, []int{1, 5}, postings[0].Positions)
}

func TestBuildRefusesExistingRepository(t *testing.T) {
	dir := t.TempDir()
	b := newBuilder(t, Options{})
	first, err := b.Build(context.Background(), dir, NewSliceSource(toyDocs()...))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), dir, NewSliceSource(toyDocs()...))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	over := newBuilder(t, Options{Overwrite: true, Stemmer: "none"})
	second, err := over.Build(context.Background(), dir, NewSliceSource(toyDocs()[:1]...))
	require.NoError(t, err)
	assert.Equal(t, 2, second.MaximumDocument)
	assert.Equal(t, "none", second.Stemmer)

	_, err = os.Stat(first.SegmentPath(dir))
	assert.True(t, os.IsNotExist(err), "replaced segment should be removed")
}

func TestBuildErrors(t *testing.T) {
	b := newBuilder(t, Options{})

	_, err := b.Build(context.Background(), t.TempDir(), NewSliceSource())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	dup := NewSliceSource(Document{ExternalID: "a"}, Document{ExternalID: "a"})
	_, err = b.Build(context.Background(), t.TempDir(), dup)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, t.TempDir(), NewSliceSource(toyDocs()...))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewBuilder(Options{Stemmer: "lovins"}, nil, logger.Discard())
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestBuildRespectsLock(t *testing.T) {
	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, LockFile))
	ok, err := held.TryRLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	_, err = newBuilder(t, Options{}).Build(context.Background(), dir, NewSliceSource(toyDocs()...))
	assert.ErrorIs(t, err, ErrLocked)
}

func TestMultiSource(t *testing.T) {
	docs := toyDocs()
	src := NewMultiSource(NewSliceSource(docs[0]), NewSliceSource(), NewSliceSource(docs[1], docs[2]))
	var ids []string
	for {
		d, err := src.Next()
		if err != nil {
			break
		}
		ids = append(ids, d.ExternalID)
	}
	assert.Equal(t, []string{"lorem", "hamlet", "romeo"}, ids)
}
