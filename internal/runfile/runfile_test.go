package runfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
)

func TestReadQueries(t *testing.T) {
	input := "1;hello world\n\n2;second query\nbroken line\n1;hello again\n3;third;with delimiter\n"

	got, err := ReadQueries(ReadOptions{Logger: logger.Discard()}, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Query{
		{ID: "1", Text: "hello again"},
		{ID: "2", Text: "second query"},
		{ID: "3", Text: "third;with delimiter"},
	}, got)

	got, err = ReadQueries(ReadOptions{MaxQueries: 2, Logger: logger.Discard()},
		strings.NewReader("a;x\n"), strings.NewReader("b;y\nc;z\n"))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ReadQueries(ReadOptions{Delimiter: "\t", Logger: logger.Discard()}, strings.NewReader("q1\tfoo bar\n"))
	require.NoError(t, err)
	assert.Equal(t, []Query{{ID: "q1", Text: "foo bar"}}, got)
}

type splitTokenizer struct{}

func (splitTokenizer) Tokenize(text string) ([]string, error) {
	if strings.Contains(text, "(") {
		return nil, apperrors.Parsef("grammar")
	}
	return strings.Fields(text), nil
}

type mapTranslator map[string]int

func (m mapTranslator) TranslateToken(token string) (int, bool) {
	id, ok := m[token]
	return id, ok
}

func TestParseQueries(t *testing.T) {
	dict := mapTranslator{"a": 1, "b": 2}
	queries := []Query{{"q1", "a b"}, {"q2", "a zzz"}, {"q3", "zzz yyy"}}

	got, err := ParseQueries(splitTokenizer{}, dict, queries, false, logger.Discard())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2}, got[0].TokenIDs)
	assert.Equal(t, []int{1, -1}, got[1].TokenIDs)
	assert.True(t, got[2].Skipped())

	got, err = ParseQueries(splitTokenizer{}, dict, queries, true, logger.Discard())
	require.NoError(t, err)
	assert.False(t, got[0].Skipped())
	assert.True(t, got[1].Skipped())

	_, err = ParseQueries(splitTokenizer{}, dict, []Query{{"bad", "a (b"}}, false, logger.Discard())
	assert.ErrorIs(t, err, apperrors.ErrParse)
	assert.Contains(t, err.Error(), "bad")
}

func TestWriteRanking(t *testing.T) {
	var buf bytes.Buffer
	ranking := []Assessment{{1.5, "d1"}, {2.5, "d2"}, {1.5, "d3"}, {0.5, "d4"}}

	require.NoError(t, writeRanking(&buf, "run", "q1", ranking, 3, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "q1 Q0 d2 1 2.5000"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "q1 Q0 d3 2 "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "q1 Q0 d1 3 "), lines[2])
	assert.True(t, strings.HasSuffix(lines[0], " run"))

	fields := strings.Fields(lines[0])
	require.Len(t, fields, 6)
	assert.Len(t, strings.SplitN(fields[4], ".", 2)[1], 40)
}

func TestWriterCloseAndWrite(t *testing.T) {
	w, err := NewWriter("gondri", WithRankCutoff(1), WithLogger(logger.Discard()))
	require.NoError(t, err)

	require.NoError(t, w.AddRanking("q1", []Assessment{{-1, "a"}, {-2, "b"}}))
	require.NoError(t, w.AddRanking("q2", nil))
	require.NoError(t, w.AddRanking("q3", []Assessment{{3, "c"}}))

	out := filepath.Join(t.TempDir(), "run.txt")
	require.NoError(t, w.CloseAndWrite(out, false))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "q1 Q0 a 1 -1.0000"))
	assert.True(t, strings.HasPrefix(lines[1], "q3 Q0 c 1 3.0000"))

	err = w.AddRanking("q4", []Assessment{{1, "d"}})
	assert.True(t, errors.Is(err, apperrors.ErrIllegalState))

	w2, err := NewWriter("gondri", WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.ErrorIs(t, w2.CloseAndWrite(out, false), apperrors.ErrInvalidArgument)
	require.NoError(t, w2.Discard())
}
