// Package textnorm turns raw text into the normalized terms stored in a
// repository. The same Normalizer must be used when a repository is built
// and when it is queried, otherwise query terms will not meet their
// postings.
package textnorm

import "strings"

// escaper deletes characters with meaning in the query grammar and turns
// separator punctuation into spaces.
var escaper = strings.NewReplacer(
	"(", "", ")", "", "'", "", "\"", "", "`", "", "$", "", "*", "", "\\", "",
	".", " ", ":", " ", "\t", " ", "/", " ", "&", " ", ",", " ", "-", " ",
	"?", " ", "+", " ", ";", " ", "<", " ", ">", " ", "%", " ", "@", " ",
)

// Escape makes free text safe to hand to Tokenize. It never fails.
func Escape(text string) string {
	return escaper.Replace(text)
}
