package repository

import (
	"github.com/cvangysel/gondri/internal/indexer/index"
)

// Vocabulary is the full term dictionary of a repository. The three maps
// always have the same length.
type Vocabulary struct {
	Token2ID map[string]int `json:"token2id"`
	ID2Token map[int]string `json:"id2token"`
	ID2DF    map[int]int    `json:"id2df"`
}

// Dictionary exports every term with its document frequency.
func (r *Repository) Dictionary() (Vocabulary, error) {
	release, err := r.acquire("Dictionary")
	if err != nil {
		return Vocabulary{}, err
	}
	defer release()

	terms := r.reader.Terms()
	v := Vocabulary{
		Token2ID: make(map[string]int, len(terms)),
		ID2Token: make(map[int]string, len(terms)),
		ID2DF:    make(map[int]int, len(terms)),
	}
	for _, t := range terms {
		v.Token2ID[t.Term] = t.ID
		v.ID2Token[t.ID] = t.Term
		v.ID2DF[t.ID] = t.DocFreq
	}
	if r.metrics != nil {
		r.metrics.DictionaryExtractions.WithLabelValues("export").Inc()
	}
	return v, nil
}

// TermFrequencies maps every term id to its collection frequency.
func (r *Repository) TermFrequencies() (map[int]int64, error) {
	release, err := r.acquire("TermFrequencies")
	if err != nil {
		return nil, err
	}
	defer release()

	terms := r.reader.Terms()
	out := make(map[int]int64, len(terms))
	for _, t := range terms {
		out[t.ID] = t.CollFreq
	}
	return out, nil
}

// LookupTerm resolves a normalized term. Term id 0 is never returned for a
// known term.
func (r *Repository) LookupTerm(term string) (index.TermStats, bool, error) {
	release, err := r.acquire("LookupTerm")
	if err != nil {
		return index.TermStats{}, false, err
	}
	defer release()

	id, ok := r.reader.TermID(term)
	if !ok {
		return index.TermStats{}, false, nil
	}
	entry, _ := r.reader.Term(id)
	return index.TermStats{ID: id, Term: entry.Term, DF: entry.DocFreq, CF: entry.CollFreq}, true, nil
}

// TermStatistics returns the statistics of a term id.
func (r *Repository) TermStatistics(id int) (index.TermStats, bool, error) {
	release, err := r.acquire("TermStatistics")
	if err != nil {
		return index.TermStats{}, false, err
	}
	defer release()

	entry, ok := r.reader.Term(id)
	if !ok {
		return index.TermStats{}, false, nil
	}
	return index.TermStats{ID: id, Term: entry.Term, DF: entry.DocFreq, CF: entry.CollFreq}, true, nil
}

// Postings reads the posting list of a term id; unknown ids have none.
func (r *Repository) Postings(termID int) (index.PostingList, error) {
	release, err := r.acquire("Postings")
	if err != nil {
		return nil, err
	}
	defer release()
	return r.reader.Postings(termID)
}
