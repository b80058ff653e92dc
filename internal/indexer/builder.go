// Package indexer builds repositories: it normalizes raw documents, assigns
// dense document and term ids, and writes a segment plus manifest into the
// repository directory.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/indexer/segment"
	"github.com/cvangysel/gondri/internal/textnorm"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

// DocumentBase is the id of the first document in every repository built
// here.
const DocumentBase = 1

// ErrLocked is returned when another process holds the repository lock.
var ErrLocked = errors.New("repository is locked")

type Options struct {
	Stemmer   string
	Workers   int
	StoreText bool
	BatchSize int
	Overwrite bool
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.BatchSize < 1 {
		o.BatchSize = 256
	}
	return o
}

type Builder struct {
	opts       Options
	normalizer *textnorm.Normalizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewBuilder validates opts and prepares the normalizer recorded in the
// manifest. m may be nil.
func NewBuilder(opts Options, m *metrics.Metrics, l *slog.Logger) (*Builder, error) {
	opts = opts.withDefaults()
	stemmer, err := textnorm.StemmerFor(opts.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}
	return &Builder{
		opts:       opts,
		normalizer: textnorm.NewNormalizer(stemmer, l),
		metrics:    m,
		logger:     logger.Component(l, "indexer"),
	}, nil
}

// Build consumes src and writes a repository into dir. The directory is
// created if needed; an existing repository is replaced only with
// Options.Overwrite. The exclusive repository lock is held throughout.
func (b *Builder) Build(ctx context.Context, dir string, src Source) (*Manifest, error) {
	start := time.Now()
	manifest, err := b.build(ctx, dir, src)
	if b.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.BuildsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		b.logger.Error("build failed", "dir", dir, "error", err)
		return nil, err
	}
	b.logger.Info("repository built",
		"dir", dir,
		"documents", manifest.DocumentCount,
		"unique_terms", manifest.UniqueTerms,
		"total_terms", manifest.TotalTerms,
		"duration", time.Since(start),
	)
	return manifest, nil
}

func (b *Builder) build(ctx context.Context, dir string, src Source) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking repository: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("building %s: %w", dir, ErrLocked)
	}
	defer lock.Unlock()

	previous, err := ReadManifest(dir)
	if err == nil && !b.opts.Overwrite {
		return nil, apperrors.Invalidf("%s already holds a repository", dir)
	}

	mem := index.NewMemoryIndex(DocumentBase, b.opts.StoreText)
	if err := b.consume(ctx, src, mem); err != nil {
		return nil, err
	}
	if mem.DocCount() == 0 {
		return nil, apperrors.Invalidf("no documents to index")
	}

	snap := mem.Snapshot()
	segDir := filepath.Join(dir, SegmentDir)
	name, err := segment.NewWriter(segDir).Write(snap)
	if err != nil {
		return nil, fmt.Errorf("writing segment: %w", err)
	}

	manifest := &Manifest{
		FormatVersion:   ManifestVersion,
		Stemmer:         b.normalizer.Stemmer().Name(),
		DocumentBase:    DocumentBase,
		MaximumDocument: DocumentBase + len(snap.Documents),
		DocumentCount:   len(snap.Documents),
		TotalTerms:      snap.TotalTerms(),
		UniqueTerms:     len(snap.Terms),
		StoreText:       b.opts.StoreText,
		Segment:         name,
		CreatedAt:       time.Now().UTC(),
	}
	if err := manifest.Write(dir); err != nil {
		os.Remove(filepath.Join(segDir, name))
		return nil, err
	}
	if previous != nil && previous.Segment != name {
		if err := os.Remove(previous.SegmentPath(dir)); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("removing replaced segment", "segment", previous.Segment, "error", err)
		}
	}
	return manifest, nil
}

// consume reads src in batches, normalizing each batch concurrently and
// adding documents in source order so ids follow the input.
func (b *Builder) consume(ctx context.Context, src Source, mem *index.MemoryIndex) error {
	batch := make([]Document, 0, b.opts.BatchSize)
	terms := make([][]string, b.opts.BatchSize)

	flush := func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.opts.Workers)
		for i := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				terms[i] = b.normalizer.TokenizeDocument(batch[i].Text)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, doc := range batch {
			if _, err := mem.AddDocument(doc.ExternalID, terms[i], doc.Text); err != nil {
				return fmt.Errorf("adding document %q: %w", doc.ExternalID, err)
			}
		}
		if b.metrics != nil {
			b.metrics.DocsIndexedTotal.Add(float64(len(batch)))
		}
		b.logger.Debug("batch indexed", "documents", mem.DocCount(), "mem_size", mem.Size())
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}
		batch = append(batch, doc)
		if len(batch) == b.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 {
		return flush()
	}
	return nil
}
