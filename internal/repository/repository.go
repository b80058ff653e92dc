// Package repository opens built repositories and exposes their identifier
// space: dense document ids, term ids with 0 reserved, term statistics,
// stored documents, and querying through an explicit default model.
//
// A Repository is safe for concurrent use. After Close every operation
// fails with ErrIllegalState.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/cvangysel/gondri/internal/indexer"
	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/indexer/segment"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher"
	"github.com/cvangysel/gondri/internal/textnorm"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
)

const DefaultDocumentCacheSize = 1024

type Repository struct {
	mu         sync.RWMutex
	closed     bool
	path       string
	manifest   *indexer.Manifest
	reader     *segment.Reader
	lock       *flock.Flock
	normalizer *textnorm.Normalizer
	docs       *lru.Cache[int, index.DocumentRecord]
	engine     *searcher.Engine
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type options struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	model     retrieval.Model
	cacheSize int
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithDefaultModel sets the model Query uses. The default is Dirichlet
// smoothing with mu 2500.
func WithDefaultModel(m retrieval.Model) Option {
	return func(o *options) { o.model = m }
}

// WithDocumentCacheSize bounds the decoded-document cache; 0 disables it.
func WithDocumentCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// Open validates path and opens the repository it holds. It fails with
// ErrConfiguration when path is not a directory or has no manifest.
func Open(path string, opts ...Option) (*Repository, error) {
	o := options{cacheSize: DefaultDocumentCacheSize, model: retrieval.DefaultModel()}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 500, "%s is not a directory", path)
	}
	if _, err := os.Stat(filepath.Join(path, indexer.ManifestFile)); err != nil {
		return nil, apperrors.Newf(apperrors.ErrConfiguration, 500, "%s has no %s", path, indexer.ManifestFile)
	}
	manifest, err := indexer.ReadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}
	stemmer, err := textnorm.StemmerFor(manifest.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	lock := flock.New(filepath.Join(path, indexer.LockFile))
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("locking repository: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("opening %s: %w", path, indexer.ErrLocked)
	}

	reader, err := segment.OpenReader(manifest.SegmentPath(path))
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening segment: %w", err)
	}
	if reader.DocCount() != manifest.DocumentCount || reader.DocumentBase() != manifest.DocumentBase {
		reader.Close()
		lock.Unlock()
		return nil, fmt.Errorf("segment disagrees with manifest: %w", apperrors.ErrCorrupt)
	}

	r := &Repository{
		path:       path,
		manifest:   manifest,
		reader:     reader,
		lock:       lock,
		normalizer: textnorm.NewNormalizer(stemmer, o.logger),
		metrics:    o.metrics,
		logger:     logger.Component(o.logger, "repository").With("path", path),
	}
	if o.cacheSize > 0 {
		r.docs, _ = lru.New[int, index.DocumentRecord](o.cacheSize)
	}
	r.engine, err = searcher.New(r, o.model, searcher.WithMetrics(o.metrics), searcher.WithLogger(o.logger))
	if err != nil {
		reader.Close()
		lock.Unlock()
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.OpenRepositories.Inc()
	}
	r.logger.Info("repository opened",
		"documents", manifest.DocumentCount,
		"unique_terms", manifest.UniqueTerms,
		"stemmer", manifest.Stemmer,
	)
	return r, nil
}

// Close releases the repository. It is idempotent.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var result error
	if err := r.reader.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing segment: %w", err))
	}
	if err := r.lock.Unlock(); err != nil {
		result = multierror.Append(result, fmt.Errorf("releasing lock: %w", err))
	}
	if r.docs != nil {
		r.docs.Purge()
	}
	if r.metrics != nil {
		r.metrics.OpenRepositories.Dec()
	}
	r.logger.Info("repository closed")
	return result
}

// acquire takes the read lock and fails once closed. Callers must call
// the returned release.
func (r *Repository) acquire(op string) (func(), error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%s on closed repository: %w", op, apperrors.ErrIllegalState)
	}
	return r.mu.RUnlock, nil
}

// Path is the directory the repository was opened from.
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) String() string {
	return fmt.Sprintf("<gondri.Repository of %d documents>", r.manifest.DocumentCount)
}

// Manifest returns a copy of the repository manifest.
func (r *Repository) Manifest() indexer.Manifest {
	return *r.manifest
}

// DocumentBase is the smallest valid document id.
func (r *Repository) DocumentBase() (int, error) {
	release, err := r.acquire("DocumentBase")
	if err != nil {
		return 0, err
	}
	defer release()
	return r.manifest.DocumentBase, nil
}

// MaximumDocument is one past the largest valid document id.
func (r *Repository) MaximumDocument() (int, error) {
	release, err := r.acquire("MaximumDocument")
	if err != nil {
		return 0, err
	}
	defer release()
	return r.manifest.MaximumDocument, nil
}

func (r *Repository) DocumentCount() (int, error) {
	release, err := r.acquire("DocumentCount")
	if err != nil {
		return 0, err
	}
	defer release()
	return r.manifest.DocumentCount, nil
}

// TotalTerms is the number of token occurrences in the repository.
func (r *Repository) TotalTerms() (int64, error) {
	release, err := r.acquire("TotalTerms")
	if err != nil {
		return 0, err
	}
	defer release()
	return r.reader.TotalTerms(), nil
}

// UniqueTerms is the vocabulary size.
func (r *Repository) UniqueTerms() (int, error) {
	release, err := r.acquire("UniqueTerms")
	if err != nil {
		return 0, err
	}
	defer release()
	return r.reader.TermCount(), nil
}

// Stats summarizes the collection for scoring.
func (r *Repository) Stats() (index.CollectionStats, error) {
	release, err := r.acquire("Stats")
	if err != nil {
		return index.CollectionStats{}, err
	}
	defer release()
	return index.CollectionStats{Documents: r.reader.DocCount(), TotalTerms: r.reader.TotalTerms()}, nil
}

// ProcessTerm normalizes a raw token the way the repository was built. The
// bool is false for tokens that cannot be represented.
func (r *Repository) ProcessTerm(raw string) (string, bool, error) {
	release, err := r.acquire("ProcessTerm")
	if err != nil {
		return "", false, err
	}
	defer release()
	term, ok := r.normalizer.ProcessTerm(raw)
	return term, ok, nil
}

// Tokenize escapes, tokenizes and normalizes free text.
func (r *Repository) Tokenize(text string) ([]string, error) {
	release, err := r.acquire("Tokenize")
	if err != nil {
		return nil, err
	}
	defer release()
	return r.normalizer.Tokenize(text)
}

// Query evaluates text with the repository's default model.
func (r *Repository) Query(ctx context.Context, text string, opts searcher.QueryOptions) (*searcher.Result, error) {
	return r.engine.Query(ctx, text, opts)
}

// ExpressionList counts matches of a term or proximity expression per
// external document id.
func (r *Repository) ExpressionList(ctx context.Context, expr string) (map[string]int, error) {
	return r.engine.ExpressionList(ctx, expr)
}

// NewEngine binds another retrieval model to this repository.
func (r *Repository) NewEngine(m retrieval.Model, opts ...searcher.Option) (*searcher.Engine, error) {
	release, err := r.acquire("NewEngine")
	if err != nil {
		return nil, err
	}
	release()
	opts = append([]searcher.Option{searcher.WithMetrics(r.metrics), searcher.WithLogger(r.logger)}, opts...)
	return searcher.New(r, m, opts...)
}
