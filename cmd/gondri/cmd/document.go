package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/repository"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

func newDocumentCmd(g *globals) *cobra.Command {
	var (
		external bool
		terms    bool
	)
	cmd := &cobra.Command{
		Use:   "document <id>...",
		Short: "Print documents by internal or external id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRepository(func(repo *repository.Repository) error {
				ids, err := resolveIDs(repo, args, external)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, id := range ids {
					var ext, body string
					if terms {
						var tokens []string
						ext, tokens, err = repo.DocumentTerms(id)
						body = strings.Join(tokens, " ")
					} else {
						if ext, err = repo.ExternalID(id); err == nil {
							body, err = repo.DocumentText(id)
						}
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "# %d %s\n%s\n", id, ext, body)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&external, "external", "e", false, "arguments are external document ids")
	cmd.Flags().BoolVarP(&terms, "terms", "t", false, "print normalized terms instead of text")
	return cmd
}

func resolveIDs(repo *repository.Repository, args []string, external bool) ([]int, error) {
	if external {
		pairs, err := repo.DocumentIDs(args)
		if err != nil {
			return nil, err
		}
		ids := make([]int, len(pairs))
		for i, p := range pairs {
			ids[i] = p.ID
		}
		return ids, nil
	}
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, apperrors.Invalidf("document id must be an integer, got %q", arg)
		}
		ids[i] = id
	}
	return ids, nil
}
