// Package cmd implements the gondri command line: querying, inspecting and
// exporting repositories built by the indexer.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/pkg/config"
	"github.com/cvangysel/gondri/pkg/logger"
)

// globals is the state every subcommand shares after PersistentPreRunE.
type globals struct {
	configPath string
	repoPath   string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

func (g *globals) load(*cobra.Command, []string) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.repoPath != "" {
		cfg.Repository.Path = g.repoPath
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	g.cfg = cfg
	g.log = logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// model parses override, falling back to query.model.
func (g *globals) model(override string) (retrieval.Model, error) {
	rule := g.cfg.Query.Model
	if override != "" {
		rule = override
	}
	return retrieval.ParseModel(rule)
}

func (g *globals) openRepository() (*repository.Repository, error) {
	if g.cfg.Repository.Path == "" {
		return nil, fmt.Errorf("no repository given: pass --repository or set repository.path")
	}
	m, err := g.model("")
	if err != nil {
		return nil, fmt.Errorf("query.model: %w", err)
	}
	return repository.Open(g.cfg.Repository.Path,
		repository.WithLogger(g.log),
		repository.WithDefaultModel(m),
		repository.WithDocumentCacheSize(g.cfg.Repository.DocumentCacheSize),
	)
}

// withRepository opens the repository for the duration of fn.
func (g *globals) withRepository(fn func(*repository.Repository) error) error {
	repo, err := g.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func NewRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   "gondri",
		Short: "Query and inspect gondri repositories",
		Long: `gondri reads repositories built by the indexer: ranked retrieval under
language-model and baseline scoring rules, document and term lookup,
dictionary export and TREC run generation.`,
		SilenceUsage:      true,
		PersistentPreRunE: g.load,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&g.repoPath, "repository", "r", "", "repository directory (overrides repository.path)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(newQueryCmd(g))
	cmd.AddCommand(newExpressionCmd(g))
	cmd.AddCommand(newDocumentCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newDictionaryCmd(g))
	cmd.AddCommand(newSentencesCmd(g))
	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newAnalyticsCmd(g))
	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
