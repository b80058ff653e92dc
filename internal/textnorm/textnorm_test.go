package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello (world)", "hello world"},
		{"it's \"quoted\"", "its quoted"},
		{"a.b:c/d", "a b c d"},
		{"x*y\\z$`", "xyz"},
		{"mail@host;50%", "mail host 50 "},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Escape(tt.in), tt.in)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"hello-world", []string{"hello", "world"}},
		{"hello.world", []string{"hello"}},
		{"hello \"world\"", []string{"hello", "world"}},
		{"Hello   World", []string{"hello", "world"}},
		{"", nil},
	}
	for _, tt := range tests {
		got, err := Tokenize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTokenizeRejectsGrammar(t *testing.T) {
	for _, in := range []string{"hello (world)", "#combine", "a*", "x=y"} {
		_, err := Tokenize(in)
		assert.ErrorIs(t, err, apperrors.ErrParse, in)
	}
}

func TestSplitIsLenient(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "x"}, Split("hello (world) [x]"))
}

func TestKStem(t *testing.T) {
	s := KStem{}
	tests := map[string]string{
		"predictions": "prediction",
		"strategies":  "strategy",
		"marketing":   "marketing",
		"boxes":       "box",
		"classes":     "class",
		"class":       "class",
		"ties":        "tie",
		"news":        "news",
		"cat":         "cat",
	}
	for in, want := range tests {
		assert.Equal(t, want, s.Stem(in), in)
	}
}

func TestStemmerFor(t *testing.T) {
	for _, name := range []string{"", "krovetz", "snowball", "none"} {
		s, err := StemmerFor(name)
		require.NoError(t, err)
		assert.NotEmpty(t, s.Name())
	}
	_, err := StemmerFor("lovins")
	assert.Error(t, err)
}

func TestSnowball(t *testing.T) {
	assert.Equal(t, "run", Snowball{}.Stem("running"))
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(KStem{}, logger.Discard())

	term, ok := n.ProcessTerm("HELLO")
	assert.True(t, ok)
	assert.Equal(t, "hello", term)

	_, ok = n.ProcessTerm("\xff\xfe")
	assert.False(t, ok)

	_, ok = n.ProcessTerm("   ")
	assert.False(t, ok)

	terms, err := n.Tokenize("Hello (World), predictions!")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world", "prediction"}, terms)

	_, err = n.Tokenize("#od1[a]")
	assert.ErrorIs(t, err, apperrors.ErrParse)

	assert.Equal(t, []string{"od1", "a"}, n.TokenizeDocument("#od1[a]"))
}
