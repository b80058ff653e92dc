package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/repository"
)

type collectionSummary struct {
	Documents   int
	MeanLength  float64
	StdLength   float64
	TotalTerms  int64
	UniqueTerms int
}

func summarize(repo *repository.Repository) (collectionSummary, error) {
	var s collectionSummary
	base, err := repo.DocumentBase()
	if err != nil {
		return s, err
	}
	maxDoc, err := repo.MaximumDocument()
	if err != nil {
		return s, err
	}
	if s.TotalTerms, err = repo.TotalTerms(); err != nil {
		return s, err
	}
	if s.UniqueTerms, err = repo.UniqueTerms(); err != nil {
		return s, err
	}
	var sum, sumSq float64
	for id := base; id < maxDoc; id++ {
		n, err := repo.DocumentLength(id)
		if err != nil {
			return s, err
		}
		sum += float64(n)
		sumSq += float64(n) * float64(n)
		s.Documents++
	}
	if s.Documents > 0 {
		s.MeanLength = sum / float64(s.Documents)
		s.StdLength = math.Sqrt(max(0, sumSq/float64(s.Documents)-s.MeanLength*s.MeanLength))
	}
	return s, nil
}

func newStatsCmd(g *globals) *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRepository(func(repo *repository.Repository) error {
				s, err := summarize(repo)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if export {
					fmt.Fprintf(out, "export NUM_DOCUMENTS=%d\n", s.Documents)
					fmt.Fprintf(out, "export AVG_DOCUMENT_LENGTH=%f\n", s.MeanLength)
					fmt.Fprintf(out, "export STD_DOCUMENT_LENGTH=%f\n", s.StdLength)
					fmt.Fprintf(out, "export TOTAL_TERMS=%d\n", s.TotalTerms)
					fmt.Fprintf(out, "export UNIQUE_TERMS=%d\n", s.UniqueTerms)
					return nil
				}
				fmt.Fprintf(out, "%s\n", repo)
				fmt.Fprintf(out, "documents:      %d\n", s.Documents)
				fmt.Fprintf(out, "mean length:    %.2f (std %.2f)\n", s.MeanLength, s.StdLength)
				fmt.Fprintf(out, "total terms:    %d\n", s.TotalTerms)
				fmt.Fprintf(out, "unique terms:   %d\n", s.UniqueTerms)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "print shell export statements")
	return cmd
}
