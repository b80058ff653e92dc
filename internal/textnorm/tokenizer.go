package textnorm

import (
	"strings"
	"unicode"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// grammarRunes are operators of the structured query language. They must be
// escaped before free text is tokenized.
const grammarRunes = "()[]{}#*$\\`=^"

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// Tokenize splits query text into lowercase tokens. A "term.field"
// restriction contributes only the term. Grammar operators that survive
// unescaped are reported as an error wrapping ErrParse.
func Tokenize(text string) ([]string, error) {
	return scan(text, true)
}

// Split is the lenient form of Tokenize used for document bodies: grammar
// operators act as separators instead of failing.
func Split(text string) []string {
	tokens, _ := scan(text, false)
	return tokens
}

func scan(text string, strict bool) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inField bool
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for pos, r := range text {
		switch {
		case isTokenRune(r):
			if inField {
				continue
			}
			current.WriteRune(r)
		case r == '.' && strict:
			if current.Len() > 0 {
				flush()
				inField = true
				continue
			}
			inField = false
		case strict && strings.ContainsRune(grammarRunes, r):
			return nil, apperrors.Parsef("unexpected %q at offset %d in %q", r, pos, text)
		default:
			flush()
			inField = false
		}
	}
	flush()
	return tokens, nil
}
