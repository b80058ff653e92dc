package repository

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cvangysel/gondri/internal/indexer/index"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// DocumentIDPair maps an external document id to its internal id.
type DocumentIDPair struct {
	ExternalID string `json:"external_id"`
	ID         int    `json:"id"`
}

// record loads a document, consulting the cache first. The caller holds the
// read lock.
func (r *Repository) record(id int) (index.DocumentRecord, error) {
	if id < r.manifest.DocumentBase || id >= r.manifest.MaximumDocument {
		return index.DocumentRecord{}, apperrors.Lookupf("document %d outside [%d, %d)",
			id, r.manifest.DocumentBase, r.manifest.MaximumDocument)
	}
	if r.docs != nil {
		if rec, ok := r.docs.Get(id); ok {
			if r.metrics != nil {
				r.metrics.CacheHitsTotal.WithLabelValues("documents").Inc()
			}
			return rec, nil
		}
		if r.metrics != nil {
			r.metrics.CacheMissesTotal.WithLabelValues("documents").Inc()
		}
	}
	rec, err := r.reader.Document(id)
	if err != nil {
		return index.DocumentRecord{}, err
	}
	if r.docs != nil {
		r.docs.Add(id, rec)
	}
	return rec, nil
}

// Document returns the external id and term ids of an internal document.
func (r *Repository) Document(id int) (string, []int, error) {
	release, err := r.acquire("Document")
	if err != nil {
		return "", nil, err
	}
	defer release()
	rec, err := r.record(id)
	if err != nil {
		return "", nil, err
	}
	terms := make([]int, len(rec.Terms))
	copy(terms, rec.Terms)
	return rec.ExternalID, terms, nil
}

// DocumentTerms returns the external id and the tokens of a document in
// document order.
func (r *Repository) DocumentTerms(id int) (string, []string, error) {
	release, err := r.acquire("DocumentTerms")
	if err != nil {
		return "", nil, err
	}
	defer release()
	rec, err := r.record(id)
	if err != nil {
		return "", nil, err
	}
	return rec.ExternalID, r.tokens(rec.Terms), nil
}

func (r *Repository) tokens(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, tid := range ids {
		if entry, ok := r.reader.Term(tid); ok {
			out = append(out, entry.Term)
		}
	}
	return out
}

// DocumentLength is the number of tokens in a document.
func (r *Repository) DocumentLength(id int) (int, error) {
	release, err := r.acquire("DocumentLength")
	if err != nil {
		return 0, err
	}
	defer release()
	entry, ok := r.reader.DocEntry(id)
	if !ok {
		return 0, apperrors.Lookupf("document %d outside [%d, %d)",
			id, r.manifest.DocumentBase, r.manifest.MaximumDocument)
	}
	return entry.Length, nil
}

// ExternalID resolves an internal document id.
func (r *Repository) ExternalID(id int) (string, error) {
	release, err := r.acquire("ExternalID")
	if err != nil {
		return "", err
	}
	defer release()
	entry, ok := r.reader.DocEntry(id)
	if !ok {
		return "", apperrors.Lookupf("document %d outside [%d, %d)",
			id, r.manifest.DocumentBase, r.manifest.MaximumDocument)
	}
	return entry.ExternalID, nil
}

// DocumentText returns the stored text of a document. Repositories built
// without stored text return the normalized tokens joined by spaces.
func (r *Repository) DocumentText(id int) (string, error) {
	release, err := r.acquire("DocumentText")
	if err != nil {
		return "", err
	}
	defer release()
	rec, err := r.record(id)
	if err != nil {
		return "", err
	}
	if rec.Text != "" || r.manifest.StoreText {
		return rec.Text, nil
	}
	return strings.Join(r.tokens(rec.Terms), " "), nil
}

// DocumentIDs resolves external ids in input order. Every unknown id is
// reported and no partial result is returned.
func (r *Repository) DocumentIDs(external []string) ([]DocumentIDPair, error) {
	release, err := r.acquire("DocumentIDs")
	if err != nil {
		return nil, err
	}
	defer release()

	out := make([]DocumentIDPair, 0, len(external))
	var missing error
	for _, ext := range external {
		id, ok := r.reader.DocumentID(ext)
		if !ok {
			missing = multierror.Append(missing, fmt.Errorf("external id %q: %w", ext, apperrors.ErrLookup))
			continue
		}
		out = append(out, DocumentIDPair{ExternalID: ext, ID: id})
	}
	if missing != nil {
		return nil, missing
	}
	return out, nil
}
