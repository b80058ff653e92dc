package retrieval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// Model is an immutable retrieval-model configuration. Rule is the rule
// string the engine scores with.
type Model interface {
	Name() string
	Rule() string
}

const (
	DefaultMu  = 2500.0
	DefaultK1  = 1.2
	DefaultB   = 0.75
	DefaultK3  = 7.0
	MethodDir  = "dirichlet"
	MethodLin  = "linear"
	MethodTF   = "tfidf"
	MethodBM25 = "okapi"
)

// DefaultLambda is the collection weight of linear smoothing.
const DefaultLambda = 0.4

// LanguageModel is query likelihood under a smoothing rule. raw holds the
// caller's text for models built from a rule string.
type LanguageModel struct {
	rule Rule
	raw  string
}

// Dirichlet smooths with a Dirichlet prior of strength mu.
func Dirichlet(mu float64) (LanguageModel, error) {
	if !finite(mu) || mu < 0 {
		return LanguageModel{}, apperrors.Invalidf("dirichlet mu must be non-negative, got %g", mu)
	}
	return LanguageModel{rule: Rule{Method: MethodDir, Params: []Param{{"mu", mu}}}}, nil
}

// Linear interpolates the document model with the collection model.
// documentLambda weights the enclosing-document model, which for
// unfielded repositories is the document itself.
func Linear(collectionLambda, documentLambda float64) (LanguageModel, error) {
	for name, v := range map[string]float64{"collectionLambda": collectionLambda, "documentLambda": documentLambda} {
		if !finite(v) || v < 0 || v > 1 {
			return LanguageModel{}, apperrors.Invalidf("linear %s must be in [0,1], got %g", name, v)
		}
	}
	if collectionLambda+documentLambda > 1 {
		return LanguageModel{}, apperrors.Invalidf("linear lambdas sum to %g, above 1", collectionLambda+documentLambda)
	}
	return LanguageModel{rule: Rule{Method: MethodLin, Params: []Param{
		{"collectionLambda", collectionLambda},
		{"documentLambda", documentLambda},
	}}}, nil
}

// LanguageModelFromRule accepts a raw smoothing rule such as
// "method:dirichlet,mu:5000". The parameters are range checked like the
// constructors'; the rule text itself is kept as written.
func LanguageModelFromRule(s string) (LanguageModel, error) {
	r, err := ParseRule(s)
	if err != nil {
		return LanguageModel{}, err
	}
	if r.Baseline || (r.Method != MethodDir && r.Method != MethodLin) {
		return LanguageModel{}, apperrors.Invalidf("%q is not a smoothing rule", s)
	}
	if _, err := smoothing(r); err != nil {
		return LanguageModel{}, err
	}
	return LanguageModel{rule: r, raw: strings.TrimSpace(s)}, nil
}

// smoothing validates a language-model rule through the constructors.
func smoothing(r Rule) (LanguageModel, error) {
	if r.Method == MethodDir {
		return Dirichlet(r.Get("mu", DefaultMu))
	}
	return Linear(r.CollectionLambda(), r.Get("documentLambda", 0))
}

// DefaultModel is the model a repository queries with unless configured
// otherwise.
func DefaultModel() LanguageModel {
	m, _ := Dirichlet(DefaultMu)
	return m
}

func (m LanguageModel) Name() string { return m.rule.Method }

func (m LanguageModel) Rule() string {
	if m.raw != "" {
		return m.raw
	}
	return m.rule.String()
}

// TFIDF is the vector-space baseline with BM25-style tf saturation.
type TFIDF struct {
	K1 float64
	B  float64
}

func DefaultTFIDF() TFIDF {
	return TFIDF{K1: DefaultK1, B: DefaultB}
}

// NewTFIDF validates k1 >= 0 and 0 <= b <= 1.
func NewTFIDF(k1, b float64) (TFIDF, error) {
	if err := checkK1B(k1, b); err != nil {
		return TFIDF{}, err
	}
	return TFIDF{K1: k1, B: b}, nil
}

func (TFIDF) Name() string { return MethodTF }

func (m TFIDF) Rule() string {
	return formatBaseline(MethodTF, Param{"k1", m.K1}, Param{"b", m.B})
}

// OkapiBM25 is the probabilistic baseline. Its idf term goes negative for
// terms in more than half the documents, so scores may be negative.
type OkapiBM25 struct {
	K1 float64
	B  float64
	K3 float64
}

func DefaultOkapi() OkapiBM25 {
	return OkapiBM25{K1: DefaultK1, B: DefaultB, K3: DefaultK3}
}

// NewOkapi validates k1 >= 0, 0 <= b <= 1 and k3 >= 0.
func NewOkapi(k1, b, k3 float64) (OkapiBM25, error) {
	if err := checkK1B(k1, b); err != nil {
		return OkapiBM25{}, err
	}
	if !finite(k3) || k3 < 0 {
		return OkapiBM25{}, apperrors.Invalidf("k3 must be non-negative, got %g", k3)
	}
	return OkapiBM25{K1: k1, B: b, K3: k3}, nil
}

func (OkapiBM25) Name() string { return MethodBM25 }

func (m OkapiBM25) Rule() string {
	return formatBaseline(MethodBM25, Param{"k1", m.K1}, Param{"b", m.B}, Param{"k3", m.K3})
}

func checkK1B(k1, b float64) error {
	if !finite(k1) || k1 < 0 {
		return apperrors.Invalidf("k1 must be non-negative, got %g", k1)
	}
	if !finite(b) || b < 0 || b > 1 {
		return apperrors.Invalidf("b must be in [0,1], got %g", b)
	}
	return nil
}

// ParseModel builds a Model from a rule string as written in configuration
// or on the command line. Baseline parameters that are omitted take their
// defaults.
func ParseModel(s string) (Model, error) {
	r, err := ParseRule(s)
	if err != nil {
		return nil, err
	}
	switch r.Method {
	case MethodDir, MethodLin:
		if r.Baseline {
			return smoothing(r)
		}
		return LanguageModelFromRule(s)
	case MethodTF:
		return NewTFIDF(r.Get("k1", DefaultK1), r.Get("b", DefaultB))
	case MethodBM25:
		return NewOkapi(r.Get("k1", DefaultK1), r.Get("b", DefaultB), r.Get("k3", DefaultK3))
	}
	return nil, apperrors.Invalidf("unsupported model %q", s)
}

// Validate checks the parameters of a parsed rule of any method.
func Validate(r Rule) error {
	var err error
	switch r.Method {
	case MethodDir, MethodLin:
		_, err = smoothing(r)
	case MethodTF:
		_, err = NewTFIDF(r.Get("k1", DefaultK1), r.Get("b", DefaultB))
	case MethodBM25:
		_, err = NewOkapi(r.Get("k1", DefaultK1), r.Get("b", DefaultB), r.Get("k3", DefaultK3))
	default:
		err = apperrors.Invalidf("unsupported method %q", r.Method)
	}
	return err
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Describe renders a model for logs and CLI output.
func Describe(m Model) string {
	return fmt.Sprintf("%s(%s)", m.Name(), strconv.Quote(strings.TrimSpace(m.Rule())))
}
