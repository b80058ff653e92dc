// Package snippet builds short query-biased excerpts of document text.
// Matching words are uppercased, passages are joined with "..." and lines
// wrap at a fixed width.
package snippet

import (
	"strings"
)

const (
	DefaultWidth    = 50
	DefaultBefore   = 3
	DefaultAfter    = 7
	DefaultPassages = 3
	Ellipsis        = "..."
)

// Matcher reports whether a raw word of document text matches the query.
type Matcher func(word string) bool

type Builder struct {
	Width    int
	Before   int
	After    int
	Passages int
}

// NewBuilder returns a Builder with the default layout.
func NewBuilder() *Builder {
	return &Builder{
		Width:    DefaultWidth,
		Before:   DefaultBefore,
		After:    DefaultAfter,
		Passages: DefaultPassages,
	}
}

type span struct{ start, end int }

// Build excerpts text around the words match accepts. Without any match
// the opening words of the document are used.
func (b *Builder) Build(text string, match Matcher) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	matched := make([]bool, len(words))
	var spans []span
	for i, w := range words {
		if !match(w) {
			continue
		}
		matched[i] = true
		s := span{start: max(0, i-b.Before), end: min(len(words)-1, i+b.After)}
		if n := len(spans); n > 0 && s.start <= spans[n-1].end+1 {
			spans[n-1].end = max(spans[n-1].end, s.end)
			continue
		}
		if len(spans) == b.Passages {
			break
		}
		spans = append(spans, s)
	}
	if len(spans) == 0 {
		spans = []span{{0, min(len(words)-1, b.Before+b.After)}}
	}

	var out []string
	if spans[0].start > 0 {
		out = append(out, Ellipsis)
	}
	for i, s := range spans {
		if i > 0 {
			out = append(out, Ellipsis)
		}
		for j := s.start; j <= s.end; j++ {
			w := words[j]
			if matched[j] {
				w = strings.ToUpper(w)
			}
			out = append(out, w)
		}
	}
	if spans[len(spans)-1].end < len(words)-1 {
		out = append(out, Ellipsis)
	}
	return b.wrap(out)
}

// wrap joins words with spaces, breaking lines before they exceed Width.
// Ellipses attach to their neighbours without spaces.
func (b *Builder) wrap(words []string) string {
	var (
		sb      strings.Builder
		lineLen int
		glue    bool
	)
	for _, w := range words {
		if w == Ellipsis {
			sb.WriteString(w)
			lineLen += len(w)
			glue = true
			continue
		}
		switch {
		case sb.Len() == 0 || glue:
		case lineLen+1+len(w) > b.Width:
			sb.WriteByte('\n')
			lineLen = 0
		default:
			sb.WriteByte(' ')
			lineLen++
		}
		glue = false
		sb.WriteString(w)
		lineLen += len(w)
	}
	return sb.String()
}
