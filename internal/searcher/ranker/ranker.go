// Package ranker turns a retrieval rule into per-term scoring functions.
package ranker

import (
	"math"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/retrieval"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// ScoredDoc is a document id with its retrieval score.
type ScoredDoc struct {
	DocID int
	Score float64
}

// Scorer scores one document against a query term by term.
type Scorer interface {
	// TermScore is the contribution of a query term occurring qtf times in
	// the query and tf times in a document of docLen tokens. It is called
	// with tf == 0 for query terms the document lacks.
	TermScore(tf, qtf, docLen int, term index.TermStats) float64
	// Finish turns the summed contributions into the document score;
	// queryLen is the number of in-vocabulary query tokens.
	Finish(sum float64, queryLen int) float64
}

// New builds the scorer for rule over a collection.
func New(rule string, stats index.CollectionStats) (Scorer, error) {
	r, err := retrieval.ParseRule(rule)
	if err != nil {
		return nil, err
	}
	if err := retrieval.Validate(r); err != nil {
		return nil, err
	}
	switch r.Method {
	case retrieval.MethodDir:
		mu := r.Get("mu", retrieval.DefaultMu)
		return &dirichlet{mu: mu, collLen: float64(stats.TotalTerms)}, nil
	case retrieval.MethodLin:
		return &linear{lambda: r.CollectionLambda(), collLen: float64(stats.TotalTerms)}, nil
	case retrieval.MethodTF:
		return &tfidf{
			k1:     r.Get("k1", retrieval.DefaultK1),
			b:      r.Get("b", retrieval.DefaultB),
			docs:   float64(stats.Documents),
			avgLen: stats.AvgDocLength(),
		}, nil
	case retrieval.MethodBM25:
		return &okapi{
			k1:     r.Get("k1", retrieval.DefaultK1),
			b:      r.Get("b", retrieval.DefaultB),
			k3:     r.Get("k3", retrieval.DefaultK3),
			docs:   float64(stats.Documents),
			avgLen: stats.AvgDocLength(),
		}, nil
	}
	return nil, apperrors.Invalidf("no scorer for method %q", r.Method)
}

// dirichlet is query likelihood with Dirichlet smoothing, averaged over
// query tokens like #combine.
type dirichlet struct {
	mu      float64
	collLen float64
}

func (d *dirichlet) TermScore(tf, qtf, docLen int, t index.TermStats) float64 {
	pc := float64(t.CF) / d.collLen
	p := (float64(tf) + d.mu*pc) / (float64(docLen) + d.mu)
	if p <= 0 || math.IsNaN(p) {
		p = math.SmallestNonzeroFloat64
	}
	return float64(qtf) * math.Log(p)
}

func (d *dirichlet) Finish(sum float64, queryLen int) float64 {
	return sum / float64(queryLen)
}

// linear is Jelinek-Mercer interpolation.
type linear struct {
	lambda  float64
	collLen float64
}

func (l *linear) TermScore(tf, qtf, docLen int, t index.TermStats) float64 {
	pc := float64(t.CF) / l.collLen
	var pd float64
	if docLen > 0 {
		pd = float64(tf) / float64(docLen)
	}
	p := (1-l.lambda)*pd + l.lambda*pc
	if p <= 0 {
		// lambda 0 leaves absent terms with no mass; keep scores finite
		p = math.SmallestNonzeroFloat64
	}
	return float64(qtf) * math.Log(p)
}

func (l *linear) Finish(sum float64, queryLen int) float64 {
	return sum / float64(queryLen)
}

type tfidf struct {
	k1, b        float64
	docs, avgLen float64
}

func (s *tfidf) TermScore(tf, qtf, docLen int, t index.TermStats) float64 {
	if tf == 0 {
		return 0
	}
	idf := math.Log((s.docs + 1) / (float64(t.DF) + 0.5))
	return float64(qtf) * idf * saturate(float64(tf), float64(docLen), s.k1, s.b, s.avgLen)
}

func (s *tfidf) Finish(sum float64, _ int) float64 { return sum }

type okapi struct {
	k1, b, k3    float64
	docs, avgLen float64
}

func (s *okapi) TermScore(tf, qtf, docLen int, t index.TermStats) float64 {
	if tf == 0 {
		return 0
	}
	df := float64(t.DF)
	idf := math.Log((s.docs - df + 0.5) / (df + 0.5))
	q := float64(qtf)
	qtfPart := ((s.k3 + 1) * q) / (s.k3 + q)
	norm := 1.0
	if s.avgLen > 0 {
		norm = 1 - s.b + s.b*float64(docLen)/s.avgLen
	}
	f := float64(tf)
	return idf * ((s.k1 + 1) * f / (f + s.k1*norm)) * qtfPart
}

func (s *okapi) Finish(sum float64, _ int) float64 { return sum }

// saturate is k1*tf / (tf + k1*(1-b+b*dl/avgdl)).
func saturate(tf, docLen, k1, b, avgLen float64) float64 {
	norm := 1.0
	if avgLen > 0 {
		norm = 1 - b + b*docLen/avgLen
	}
	denom := tf + k1*norm
	if denom == 0 {
		return 0
	}
	return k1 * tf / denom
}
