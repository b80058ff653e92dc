package searcher_test

import (
	"context"
	"testing"

	"github.com/cvangysel/gondri/internal/repository/repotest"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher"
)

func BenchmarkQuery(b *testing.B) {
	repo := repotest.Open(b)
	queries := map[string]string{
		"single": "thumb",
		"multi":  "the wall of montague",
	}
	for _, rule := range []string{"method:dirichlet,mu:2500", "okapi", "tfidf"} {
		m, err := retrieval.ParseModel(rule)
		if err != nil {
			b.Fatal(err)
		}
		engine, err := repo.NewEngine(m)
		if err != nil {
			b.Fatal(err)
		}
		for name, q := range queries {
			b.Run(m.Name()+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					if _, err := engine.Query(context.Background(), q, searcher.QueryOptions{ResultsRequested: 10}); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkQueryParallel(b *testing.B) {
	repo := repotest.Open(b)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := repo.Query(context.Background(), "his", searcher.QueryOptions{}); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkExpressionList(b *testing.B) {
	repo := repotest.Open(b)
	for _, expr := range []string{"thumb", "#od1(your thumb)", "#uw8(bite thumb sir)"} {
		b.Run(expr, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := repo.ExpressionList(context.Background(), expr); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
