package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvangysel/gondri/internal/indexer"
	"github.com/cvangysel/gondri/internal/indexer/trectext"
	"github.com/cvangysel/gondri/pkg/config"
	"github.com/cvangysel/gondri/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	out := flag.String("out", "", "repository directory (defaults to repository.path)")
	stemmer := flag.String("stemmer", "", "krovetz, snowball or none (defaults to build.stemmer)")
	workers := flag.Int("workers", 0, "normalization workers (defaults to build.workers)")
	noText := flag.Bool("no-text", false, "do not store document text")
	overwrite := flag.Bool("overwrite", false, "replace an existing repository")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] trectext-file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	dir := *out
	if dir == "" {
		dir = cfg.Repository.Path
	}
	if dir == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	opts := indexer.Options{
		Stemmer:   cfg.Build.Stemmer,
		Workers:   cfg.Build.Workers,
		StoreText: cfg.Build.StoreText && !*noText,
		Overwrite: *overwrite,
	}
	if *stemmer != "" {
		opts.Stemmer = *stemmer
	}
	if *workers > 0 {
		opts.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, dir, opts, flag.Args(), log); err != nil {
		log.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, opts indexer.Options, paths []string, log *slog.Logger) error {
	sources := make([]indexer.Source, 0, len(paths))
	for _, p := range paths {
		f, err := trectext.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		sources = append(sources, f)
	}

	b, err := indexer.NewBuilder(opts, nil, log)
	if err != nil {
		return err
	}
	log.Info("indexing", "dir", dir, "files", len(paths), "stemmer", opts.Stemmer, "workers", opts.Workers)
	manifest, err := b.Build(ctx, dir, indexer.NewMultiSource(sources...))
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d documents, %d unique terms, %d tokens\n",
		dir, manifest.DocumentCount, manifest.UniqueTerms, manifest.TotalTerms)
	return nil
}
