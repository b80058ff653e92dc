package runfile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
	"github.com/cvangysel/gondri/pkg/logger"
)

// Assessment is one scored object of a ranking.
type Assessment struct {
	Score    float64
	ObjectID string
}

// Writer accumulates rankings in a temporary file and publishes them as a
// TREC run: "qid Q0 docno rank score run" per line.
type Writer struct {
	name        string
	cutoff      int
	skipSorting bool
	tmp         *os.File
	buf         *bufio.Writer
	logger      *slog.Logger
}

type WriterOption func(*Writer)

// WithRankCutoff keeps at most n objects per query.
func WithRankCutoff(n int) WriterOption {
	return func(w *Writer) { w.cutoff = n }
}

// WithSkipSorting writes rankings in the order given.
func WithSkipSorting() WriterOption {
	return func(w *Writer) { w.skipSorting = true }
}

func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger.Component(l, "runfile") }
}

// NewWriter creates a run called name backed by a temporary file.
func NewWriter(name string, opts ...WriterOption) (*Writer, error) {
	tmp, err := os.CreateTemp("", "gondri-run-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary run: %w", err)
	}
	w := &Writer{
		name:   name,
		tmp:    tmp,
		buf:    bufio.NewWriter(tmp),
		logger: logger.Component(nil, "runfile"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger.Info("writing temporary run", "path", tmp.Name())
	return w, nil
}

// AddRanking appends the ranking of one query. Rankings are sorted by
// descending score unless sorting was disabled. Empty rankings are
// ignored.
func (w *Writer) AddRanking(queryID string, ranking []Assessment) error {
	if w.tmp == nil {
		return fmt.Errorf("adding ranking to closed run: %w", apperrors.ErrIllegalState)
	}
	if len(ranking) == 0 {
		w.logger.Warn("received empty ranking, ignoring", "query", queryID)
		return nil
	}
	return writeRanking(w.buf, w.name, queryID, ranking, w.cutoff, w.skipSorting)
}

func writeRanking(out io.Writer, name, queryID string, ranking []Assessment, cutoff int, skipSorting bool) error {
	if !skipSorting {
		ranking = append([]Assessment(nil), ranking...)
		sort.SliceStable(ranking, func(i, j int) bool {
			if ranking[i].Score != ranking[j].Score {
				return ranking[i].Score > ranking[j].Score
			}
			return ranking[i].ObjectID > ranking[j].ObjectID
		})
	}
	if cutoff > 0 && len(ranking) > cutoff {
		ranking = ranking[:cutoff]
	}
	for rank, a := range ranking {
		if _, err := fmt.Fprintf(out, "%s Q0 %s %d %.40f %s\n", queryID, a.ObjectID, rank+1, a.Score, name); err != nil {
			return fmt.Errorf("writing run line: %w", err)
		}
	}
	return nil
}

// closeTemp flushes and closes the temporary file and returns its path.
func (w *Writer) closeTemp() (string, error) {
	if w.tmp == nil {
		return "", fmt.Errorf("run already closed: %w", apperrors.ErrIllegalState)
	}
	path := w.tmp.Name()
	err := w.buf.Flush()
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	w.tmp = nil
	if err != nil {
		return "", fmt.Errorf("closing temporary run: %w", err)
	}
	return path, nil
}

// CloseAndWrite publishes the run at path. Without overwrite an existing
// file is an error.
func (w *Writer) CloseAndWrite(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return apperrors.Invalidf("run %s already exists", path)
		}
		w.logger.Warn("overwriting run", "path", path)
	}

	tmpPath, err := w.closeTemp()
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	src, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("reopening temporary run: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying run: %w", err)
	}
	return dst.Close()
}

// Discard drops the run and its temporary file.
func (w *Writer) Discard() error {
	path, err := w.closeTemp()
	if err != nil {
		return err
	}
	return os.Remove(path)
}
