package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/runfile"
	"github.com/cvangysel/gondri/internal/searcher"
	"github.com/cvangysel/gondri/internal/textnorm"
	"github.com/cvangysel/gondri/internal/vocabulary"
)

func newRunCmd(g *globals) *cobra.Command {
	var (
		queryFiles []string
		outPath    string
		name       string
		results    int
		model      string
		strict     bool
		delimiter  string
		maxQueries int
		workers    int
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rank a query file and write a TREC run",
		Long: `Read "id;text" query lines, rank every query against the repository
and write the rankings as a TREC run file. Queries without any
in-vocabulary term are skipped, as are queries with any out-of-vocabulary
term under --strict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(queryFiles) == 0 {
				return fmt.Errorf("no query files given")
			}
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			m, err := g.model(model)
			if err != nil {
				return err
			}
			queries, err := readQueryFiles(queryFiles, runfile.ReadOptions{
				Delimiter:  delimiter,
				MaxQueries: maxQueries,
				Logger:     g.log,
			})
			if err != nil {
				return err
			}

			return g.withRepository(func(repo *repository.Repository) error {
				dict, _, err := vocabulary.Extract(cmd.Context(), repo, vocabulary.ExtractOptions{Logger: g.log})
				if err != nil {
					return err
				}
				parsed, err := runfile.ParseQueries(repo, dict, queries, strict, g.log)
				if err != nil {
					return err
				}
				engine, err := repo.NewEngine(m)
				if err != nil {
					return err
				}

				rankings := make([][]runfile.Assessment, len(parsed))
				eg, ctx := errgroup.WithContext(cmd.Context())
				eg.SetLimit(max(1, workers))
				for i, q := range parsed {
					if q.Skipped() {
						continue
					}
					text := queries[i].Text
					eg.Go(func() error {
						res, err := engine.Query(ctx, textnorm.Escape(text), searcher.QueryOptions{ResultsRequested: results})
						if err != nil {
							return fmt.Errorf("query %s: %w", q.ID, err)
						}
						ranking := make([]runfile.Assessment, 0, len(res.Hits))
						for _, hit := range res.Hits {
							ext, err := repo.ExternalID(hit.Document)
							if err != nil {
								return err
							}
							ranking = append(ranking, runfile.Assessment{Score: hit.Score, ObjectID: ext})
						}
						rankings[i] = ranking
						return nil
					})
				}
				if err := eg.Wait(); err != nil {
					return err
				}

				if name == "" {
					name = m.Name()
				}
				w, err := runfile.NewWriter(name, runfile.WithRankCutoff(results), runfile.WithLogger(g.log))
				if err != nil {
					return err
				}
				for i, q := range parsed {
					if err := w.AddRanking(q.ID, rankings[i]); err != nil {
						w.Discard()
						return err
					}
				}
				if err := w.CloseAndWrite(outPath, overwrite); err != nil {
					return err
				}
				g.log.Info("run written", "path", outPath, "queries", len(parsed), "model", m.Rule())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&queryFiles, "queries", "q", nil, "query files with id;text lines")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "run file to write")
	cmd.Flags().StringVar(&name, "name", "", "run name (defaults to the model name)")
	cmd.Flags().IntVarP(&results, "results", "n", 1000, "rank cutoff per query")
	cmd.Flags().StringVarP(&model, "model", "m", "", "retrieval rule (defaults to query.model)")
	cmd.Flags().BoolVar(&strict, "strict", false, "skip queries with any out-of-vocabulary term")
	cmd.Flags().StringVar(&delimiter, "delimiter", runfile.DefaultDelimiter, "separator between query id and text")
	cmd.Flags().IntVar(&maxQueries, "max-queries", 0, "stop after this many queries")
	cmd.Flags().IntVar(&workers, "workers", 4, "queries evaluated in parallel")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing run file")
	return cmd
}

func readQueryFiles(paths []string, opts runfile.ReadOptions) ([]runfile.Query, error) {
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return runfile.ReadQueries(opts, readers...)
}
