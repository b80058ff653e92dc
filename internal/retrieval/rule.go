// Package retrieval describes retrieval models as immutable values and
// renders them into the rule strings the query engine evaluates, e.g.
//
//	method:dirichlet,mu:2500
//	tfidf,k1:1.20000,b:0.75000
//	okapi,k1:1.20000,b:0.75000,k3:7.00000
package retrieval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// Param is one key:value pair of a rule.
type Param struct {
	Key   string
	Value float64
}

// Rule is a parsed rule string. Params keep their textual order so a
// parsed rule renders back to an equivalent string.
type Rule struct {
	Method string
	Params []Param
	// Baseline is true for "name,k:v" rules and false for
	// "method:name,k:v" smoothing rules.
	Baseline bool
}

// Get returns the value of key, or def when absent.
func (r Rule) Get(key string, def float64) float64 {
	for _, p := range r.Params {
		if p.Key == key {
			return p.Value
		}
	}
	return def
}

// Has reports whether key is present.
func (r Rule) Has(key string) bool {
	for _, p := range r.Params {
		if p.Key == key {
			return true
		}
	}
	return false
}

// CollectionLambda is the collection weight of a linear rule. The older
// "lambda" key is read when "collectionLambda" is absent.
func (r Rule) CollectionLambda() float64 {
	if r.Has("collectionLambda") {
		return r.Get("collectionLambda", 0)
	}
	return r.Get("lambda", DefaultLambda)
}

func (r Rule) String() string {
	var b strings.Builder
	if r.Baseline {
		b.WriteString(r.Method)
	} else {
		b.WriteString("method:")
		b.WriteString(r.Method)
	}
	for _, p := range r.Params {
		b.WriteByte(',')
		b.WriteString(p.Key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(p.Value, 'f', -1, 64))
	}
	return b.String()
}

var methodAliases = map[string]string{
	"dirichlet": "dirichlet",
	"dir":       "dirichlet",
	"d":         "dirichlet",
	"linear":    "linear",
	"jm":        "linear",
	"tfidf":     "tfidf",
	"okapi":     "okapi",
	"bm25":      "okapi",
}

// ParseRule parses either rule form. Unknown methods are rejected here so
// a bad configuration fails before the first query.
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, apperrors.Invalidf("empty retrieval rule")
	}
	var r Rule
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		key, value, found := strings.Cut(part, ":")
		if !found {
			if i != 0 {
				return Rule{}, apperrors.Invalidf("rule %q: parameter %q has no value", s, part)
			}
			r.Method = strings.ToLower(part)
			r.Baseline = true
			continue
		}
		if key == "method" {
			if r.Method != "" {
				return Rule{}, apperrors.Invalidf("rule %q names more than one method", s)
			}
			r.Method = strings.ToLower(value)
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Rule{}, apperrors.Invalidf("rule %q: %s is not a finite number: %q", s, key, value)
		}
		r.Params = append(r.Params, Param{Key: key, Value: v})
	}
	canonical, ok := methodAliases[r.Method]
	if !ok {
		return Rule{}, apperrors.Invalidf("rule %q: unknown method %q", s, r.Method)
	}
	r.Method = canonical
	return r, nil
}

// formatBaseline renders a baseline rule with five decimals per value.
func formatBaseline(name string, params ...Param) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range params {
		fmt.Fprintf(&b, ",%s:%.5f", p.Key, p.Value)
	}
	return b.String()
}
