package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const lorem = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. " +
	"Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore."

func matchWord(words ...string) Matcher {
	return func(w string) bool {
		w = strings.ToLower(strings.Trim(w, ".,;:!?"))
		for _, x := range words {
			if w == x {
				return true
			}
		}
		return false
	}
}

func TestBuildHighlightsAndWraps(t *testing.T) {
	got := NewBuilder().Build(lorem, matchWord("ipsum"))
	assert.Equal(t, "Lorem IPSUM dolor sit amet, consectetur adipiscing\nelit. Duis...", got)
}

func TestBuildLeadingEllipsisAndPassages(t *testing.T) {
	b := NewBuilder()
	got := b.Build(lorem, matchWord("voluptate"))
	assert.True(t, strings.HasPrefix(got, "..."), got)
	assert.Contains(t, got, "VOLUPTATE")
	assert.False(t, strings.HasSuffix(got, "..."), "window reaches the end of the text")

	b.Before, b.After = 0, 0
	got = b.Build(lorem, matchWord("lorem", "elit"))
	assert.Equal(t, "LOREM...ELIT....", got)
}

func TestBuildWithoutMatch(t *testing.T) {
	got := NewBuilder().Build("a b c", matchWord("zzz"))
	assert.Equal(t, "a b c", got)
	assert.Empty(t, NewBuilder().Build("   ", matchWord("a")))
}

func TestWrapWidth(t *testing.T) {
	b := &Builder{Width: 10}
	got := b.wrap(strings.Fields("aaaa bbbb cccc dddd"))
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, len(line), 10)
	}
	assert.Equal(t, "aaaa bbbb\ncccc dddd", got)
}
