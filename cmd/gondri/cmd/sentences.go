package cmd

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/corpus"
	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/vocabulary"
)

func newSentencesCmd(g *globals) *cobra.Command {
	var (
		maxDocuments int
		maxTerms     int
		contiguous   bool
	)
	cmd := &cobra.Command{
		Use:   "sentences",
		Short: "Print every document as a line of in-vocabulary tokens",
		Long: `Print every document as one line of tokens, restricted to the
dictionary. This is the input format word-embedding trainers expect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRepository(func(repo *repository.Repository) error {
				dict, mapping, err := vocabulary.Extract(cmd.Context(), repo, vocabulary.ExtractOptions{
					MaxTerms:       maxTerms,
					MakeContiguous: contiguous,
					Logger:         g.log,
				})
				if err != nil {
					return err
				}
				opts := []corpus.Option{corpus.WithMapping(mapping)}
				if maxDocuments > 0 {
					opts = append(opts, corpus.WithMaxDocuments(maxDocuments))
				}
				w := bufio.NewWriter(cmd.OutOrStdout())
				for tokens, err := range corpus.New(repo, dict, opts...).All() {
					if err != nil {
						return err
					}
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					w.WriteString(strings.Join(tokens, " "))
					w.WriteByte('\n')
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&maxDocuments, "max-documents", 0, "stop after this many documents")
	cmd.Flags().IntVar(&maxTerms, "max-terms", 0, "restrict to the most frequent terms")
	cmd.Flags().BoolVar(&contiguous, "contiguous", false, "translate through a contiguous dictionary")
	return cmd
}
