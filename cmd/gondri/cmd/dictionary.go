package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/vocabulary"
	"github.com/cvangysel/gondri/pkg/postgres"
)

// dictionaryExport is the JSON layout of an exported dictionary. Map keys
// are strings so the file reads back with any JSON decoder.
type dictionaryExport struct {
	Token2ID map[string]int    `json:"token2id"`
	ID2Token map[string]string `json:"id2token"`
	ID2DF    map[string]int    `json:"id2df"`
	Mapping  map[string]int    `json:"mapping,omitempty"`
}

func exportDictionary(dict *vocabulary.Dictionary, mapping map[int]int) dictionaryExport {
	out := dictionaryExport{
		Token2ID: make(map[string]int, dict.Len()),
		ID2Token: make(map[string]string, dict.Len()),
		ID2DF:    make(map[string]int, dict.Len()),
	}
	for _, id := range dict.IDs() {
		token, _ := dict.Token(id)
		key := strconv.Itoa(id)
		out.Token2ID[token] = id
		out.ID2Token[key] = token
		out.ID2DF[key] = dict.DocumentFrequency(id)
	}
	if mapping != nil {
		out.Mapping = make(map[string]int, len(mapping))
		for from, to := range mapping {
			out.Mapping[strconv.Itoa(from)] = to
		}
	}
	return out
}

func newDictionaryCmd(g *globals) *cobra.Command {
	var (
		maxTerms   int
		contiguous bool
		outPath    string
		storeName  string
	)
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Export the vocabulary as JSON or into PostgreSQL",
		Long: `Export the vocabulary. --max-terms keeps the most frequent terms and
--contiguous renumbers them from zero. With --store the dictionary is
written to the PostgreSQL database in the postgres config section.`,
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
				if storeName != "" {
					db, err := postgres.New(cmd.Context(), g.cfg.Postgres)
					if err != nil {
						return err
					}
					defer db.Close()
					store := vocabulary.NewStore(db, g.log)
					if err := store.EnsureSchema(cmd.Context()); err != nil {
						return err
					}
					if err := store.SaveDictionary(cmd.Context(), storeName, dict, mapping); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "stored %s as %q\n", dict, storeName)
					return nil
				}

				out := cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(exportDictionary(dict, mapping))
			})
		},
	}
	cmd.Flags().IntVar(&maxTerms, "max-terms", 0, "keep only the most frequent terms")
	cmd.Flags().BoolVar(&contiguous, "contiguous", false, "renumber term ids from zero")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write JSON here instead of stdout")
	cmd.Flags().StringVar(&storeName, "store", "", "save under this name in PostgreSQL")
	return cmd
}
