// Package parser resolves query text against a repository vocabulary.
package parser

import (
	"strconv"
	"strings"

	"github.com/cvangysel/gondri/internal/indexer/index"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// Lexicon is the part of a repository the parser needs.
type Lexicon interface {
	Tokenize(text string) ([]string, error)
	ProcessTerm(raw string) (string, bool, error)
	LookupTerm(term string) (index.TermStats, bool, error)
}

// QueryTerm is an in-vocabulary query term and its query frequency.
type QueryTerm struct {
	index.TermStats
	QTF int
}

type QueryPlan struct {
	RawQuery string
	// Terms holds distinct in-vocabulary terms in first-occurrence order.
	Terms []QueryTerm
	// OOV lists normalized query tokens missing from the vocabulary.
	OOV []string
	// Length counts in-vocabulary query tokens, repeats included.
	Length int
}

// Empty reports whether no query term can match anything.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// TermSet returns the normalized in-vocabulary terms.
func (p *QueryPlan) TermSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Terms))
	for _, t := range p.Terms {
		set[t.Term] = struct{}{}
	}
	return set
}

// Parse normalizes query text and resolves each token. Out-of-vocabulary
// tokens are collected in OOV rather than failing the query.
func Parse(lex Lexicon, query string) (*QueryPlan, error) {
	plan := &QueryPlan{RawQuery: query}
	tokens, err := lex.Tokenize(query)
	if err != nil {
		return nil, err
	}
	pos := make(map[int]int, len(tokens))
	for _, tok := range tokens {
		stats, ok, err := lex.LookupTerm(tok)
		if err != nil {
			return nil, err
		}
		if !ok {
			plan.OOV = append(plan.OOV, tok)
			continue
		}
		plan.Length++
		if i, seen := pos[stats.ID]; seen {
			plan.Terms[i].QTF++
			continue
		}
		pos[stats.ID] = len(plan.Terms)
		plan.Terms = append(plan.Terms, QueryTerm{TermStats: stats, QTF: 1})
	}
	return plan, nil
}

// Operator is a proximity operator of the structured query language.
type Operator int

const (
	Term Operator = iota
	// Ordered is #odN(...) or #N(...): terms in order, each within N
	// positions of the previous one.
	Ordered
	// Unordered is #uwN(...): all terms inside a window of N positions.
	Unordered
)

// Expression is a single term or a proximity operator over terms.
type Expression struct {
	Op     Operator
	Window int
	// Terms are normalized; OOV terms are kept so the expression can
	// report that it matches nothing.
	Terms []string
	OOV   []string
}

// ParseExpression parses "term", "#odN(a b ...)", "#N(a b ...)" or
// "#uwN(a b ...)". Terms are normalized with lex.
func ParseExpression(lex Lexicon, expr string) (*Expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, apperrors.Parsef("empty expression")
	}
	if !strings.HasPrefix(expr, "#") {
		tokens, err := lex.Tokenize(expr)
		if err != nil {
			return nil, err
		}
		if len(tokens) != 1 {
			return nil, apperrors.Parsef("expression %q must be one term or an operator", expr)
		}
		return resolve(lex, &Expression{Op: Term}, tokens)
	}

	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return nil, apperrors.Parsef("expression %q: missing parentheses", expr)
	}
	head, body := expr[1:open], expr[open+1:len(expr)-1]

	e := &Expression{}
	var digits string
	switch {
	case strings.HasPrefix(head, "od"):
		e.Op, digits = Ordered, head[2:]
	case strings.HasPrefix(head, "uw"):
		e.Op, digits = Unordered, head[2:]
	default:
		e.Op, digits = Ordered, head
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return nil, apperrors.Parsef("expression %q: operator #%s needs a positive window", expr, head)
	}
	e.Window = n

	var raw []string
	for _, field := range strings.Fields(body) {
		term, ok, err := lex.ProcessTerm(field)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.Parsef("expression %q: cannot normalize %q", expr, field)
		}
		raw = append(raw, term)
	}
	if len(raw) == 0 {
		return nil, apperrors.Parsef("expression %q has no terms", expr)
	}
	return resolve(lex, e, raw)
}

func resolve(lex Lexicon, e *Expression, terms []string) (*Expression, error) {
	e.Terms = terms
	for _, t := range terms {
		_, ok, err := lex.LookupTerm(t)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.OOV = append(e.OOV, t)
		}
	}
	return e, nil
}
