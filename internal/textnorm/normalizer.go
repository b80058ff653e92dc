package textnorm

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/cvangysel/gondri/pkg/logger"
)

// Normalizer is the full text pipeline: escape, tokenize, lowercase,
// Unicode NFC, stem.
type Normalizer struct {
	stemmer Stemmer
	logger  *slog.Logger
}

// NewNormalizer returns a Normalizer using s. A nil stemmer means KStem.
func NewNormalizer(s Stemmer, l *slog.Logger) *Normalizer {
	if s == nil {
		s = KStem{}
	}
	return &Normalizer{stemmer: s, logger: logger.Component(l, "textnorm")}
}

// Stemmer returns the stemmer applied by ProcessTerm.
func (n *Normalizer) Stemmer() Stemmer {
	return n.stemmer
}

// ProcessTerm normalizes one raw token. It reports false when the token
// cannot be represented (invalid UTF-8 or nothing left after
// normalization); such tokens are treated as out of vocabulary.
func (n *Normalizer) ProcessTerm(raw string) (string, bool) {
	if !utf8.ValidString(raw) {
		n.logger.Debug("dropping token with invalid utf-8", "token", raw)
		return "", false
	}
	term := strings.TrimSpace(norm.NFC.String(strings.ToLower(raw)))
	if term == "" {
		return "", false
	}
	term = n.stemmer.Stem(term)
	return term, term != ""
}

// Tokenize runs free query text through the whole pipeline. Tokens that
// fail ProcessTerm are dropped; the only error is a parse error from
// grammar characters Escape does not remove.
func (n *Normalizer) Tokenize(text string) ([]string, error) {
	raw, err := Tokenize(Escape(text))
	if err != nil {
		return nil, err
	}
	return n.process(raw), nil
}

// TokenizeDocument is Tokenize for document bodies. It never fails.
func (n *Normalizer) TokenizeDocument(text string) []string {
	return n.process(Split(Escape(text)))
}

func (n *Normalizer) process(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if term, ok := n.ProcessTerm(tok); ok {
			out = append(out, term)
		}
	}
	return out
}
