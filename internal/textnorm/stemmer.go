package textnorm

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

// Stemmer reduces a lowercase token to its index form.
type Stemmer interface {
	Name() string
	Stem(token string) string
}

// StemmerFor returns the stemmer recorded under name in a repository
// manifest. The empty name selects KStem.
func StemmerFor(name string) (Stemmer, error) {
	switch name {
	case "", "krovetz":
		return KStem{}, nil
	case "snowball", "porter":
		return Snowball{}, nil
	case "none":
		return NoStemmer{}, nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q", name)
	}
}

// NoStemmer leaves tokens untouched.
type NoStemmer struct{}

func (NoStemmer) Name() string { return "none" }

func (NoStemmer) Stem(token string) string { return token }

// Snowball applies the English Porter2 algorithm.
type Snowball struct{}

func (Snowball) Name() string { return "snowball" }

func (Snowball) Stem(token string) string {
	stemmed, err := snowball.Stem(token, "english", false)
	if err != nil || stemmed == "" {
		return token
	}
	return stemmed
}

// KStem is a light inflectional stemmer in the spirit of Krovetz: it folds
// plural nouns to their singular and leaves derivational suffixes alone, so
// "strategies" becomes "strategy" while "marketing" is kept.
type KStem struct{}

func (KStem) Name() string { return "krovetz" }

var kstemInvariant = map[string]struct{}{
	"news": {}, "series": {}, "species": {}, "always": {}, "perhaps": {},
	"physics": {}, "mathematics": {}, "economics": {}, "politics": {},
	"ethics": {}, "lens": {}, "means": {}, "analysis": {}, "basis": {},
	"thesis": {}, "crisis": {}, "corpus": {}, "status": {}, "virus": {},
	"bus": {}, "gas": {}, "yes": {}, "this": {}, "was": {}, "has": {},
	"does": {}, "is": {}, "us": {}, "its": {}, "his": {}, "hers": {},
}

func (KStem) Stem(token string) string {
	if len(token) <= 3 {
		return token
	}
	if _, ok := kstemInvariant[token]; ok {
		return token
	}
	switch {
	case strings.HasSuffix(token, "ies"):
		if len(token) > 4 {
			return token[:len(token)-3] + "y"
		}
		return token[:len(token)-1]
	case strings.HasSuffix(token, "sses"),
		strings.HasSuffix(token, "shes"),
		strings.HasSuffix(token, "ches"),
		strings.HasSuffix(token, "xes"),
		strings.HasSuffix(token, "zzes"):
		return token[:len(token)-2]
	case strings.HasSuffix(token, "ss"),
		strings.HasSuffix(token, "us"),
		strings.HasSuffix(token, "is"):
		return token
	case strings.HasSuffix(token, "s"):
		return token[:len(token)-1]
	}
	return token
}
