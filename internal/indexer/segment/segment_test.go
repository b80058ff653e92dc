package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvangysel/gondri/internal/indexer/index"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

func buildSnapshot(t *testing.T) index.Snapshot {
	t.Helper()
	m := index.NewMemoryIndex(1, true)
	_, err := m.AddDocument("doc-a", []string{"lorem", "ipsum", "lorem"}, "Lorem ipsum lorem")
	require.NoError(t, err)
	_, err = m.AddDocument("doc-b", []string{"dolor", "lorem"}, "dolor lorem")
	require.NoError(t, err)
	return m.Snapshot()
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(buildSnapshot(t))
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.DocumentBase())
	assert.Equal(t, 2, r.DocCount())
	assert.Equal(t, 3, r.TermCount())
	assert.Equal(t, int64(5), r.TotalTerms())

	id, ok := r.TermID("lorem")
	require.True(t, ok)
	entry, ok := r.Term(id)
	require.True(t, ok)
	assert.Equal(t, 2, entry.DocFreq)
	assert.Equal(t, int64(3), entry.CollFreq)

	postings, err := r.Postings(id)
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, []int{0, 2}, postings[0].Positions)

	postings, err = r.Postings(r.TermCount() + 1)
	require.NoError(t, err)
	assert.Nil(t, postings)

	docID, ok := r.DocumentID("doc-b")
	require.True(t, ok)
	assert.Equal(t, 2, docID)
	rec, err := r.Document(docID)
	require.NoError(t, err)
	assert.Equal(t, "dolor lorem", rec.Text)
	assert.Equal(t, []int{3, 1}, rec.Terms)

	_, err = r.Document(3)
	assert.ErrorIs(t, err, apperrors.ErrLookup)
	_, ok = r.Term(0)
	assert.False(t, ok)
}

func TestWriteEmptySegment(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(index.Snapshot{DocumentBase: 1})
	assert.Error(t, err)
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(buildSnapshot(t))
	require.NoError(t, err)
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// flip a byte inside the directory section, just before the footer
	data[len(data)-FooterSize-2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorrupt)

	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize), 0o644))
	_, err = OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorrupt)
}
