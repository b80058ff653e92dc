package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/searcher"
)

func newQueryCmd(g *globals) *cobra.Command {
	var (
		n        int
		model    string
		snippets bool
		docs     []string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Rank documents for a query",
		Long: `Rank documents for a query. A negative --results returns the lowest
scoring candidates in ascending order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.model(model)
			if err != nil {
				return err
			}
			if n == 0 {
				n = g.cfg.Query.DefaultResults
			}
			return g.withRepository(func(repo *repository.Repository) error {
				opts := searcher.QueryOptions{ResultsRequested: n, IncludeSnippets: snippets}
				if len(docs) > 0 {
					pairs, err := repo.DocumentIDs(docs)
					if err != nil {
						return err
					}
					for _, p := range pairs {
						opts.DocumentSet = append(opts.DocumentSet, p.ID)
					}
				}
				engine, err := repo.NewEngine(m)
				if err != nil {
					return err
				}
				res, err := engine.Query(cmd.Context(), strings.Join(args, " "), opts)
				if err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				return printHits(cmd, repo, res)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "results", "n", 0, "number of results; negative for ascending (defaults to query.defaultResults)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "retrieval rule, e.g. method:dirichlet,mu:1000 or okapi")
	cmd.Flags().BoolVarP(&snippets, "snippets", "s", false, "include snippets")
	cmd.Flags().StringSliceVar(&docs, "docs", nil, "restrict to these external document ids")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw result as JSON")
	return cmd
}

func printHits(cmd *cobra.Command, repo *repository.Repository, res *searcher.Result) error {
	out := cmd.OutOrStdout()
	if len(res.OOVTerms) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "out of vocabulary: %s\n", strings.Join(res.OOVTerms, ", "))
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for rank, hit := range res.Hits {
		ext, err := repo.ExternalID(hit.Document)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.6f", rank+1, ext, hit.Document, hit.Score)
		if hit.Arity() == 3 {
			fmt.Fprintf(tw, "\t%s", strings.ReplaceAll(hit.Snippet, "\n", " "))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func newExpressionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "expression <expr>",
		Short: "Count matches of a term or #odN(...) expression per document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRepository(func(repo *repository.Repository) error {
				counts, err := repo.ExpressionList(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(counts))
				for ext := range counts {
					ids = append(ids, ext)
				}
				sort.Strings(ids)
				for _, ext := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", ext, counts[ext])
				}
				return nil
			})
		},
	}
}
