package index

import (
	"fmt"
	"sync"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// MemoryIndex accumulates documents before they are written as a segment.
// Document ids are dense from the base in insertion order; term ids are
// dense from 1 in order of first occurrence, 0 being reserved for
// out-of-vocabulary tokens.
type MemoryIndex struct {
	mu        sync.RWMutex
	base      int
	termIDs   map[string]int
	terms     []string
	postings  [][]Posting
	cf        []int64
	docs      []DocumentRecord
	external  map[string]int
	storeText bool
	size      int64
}

func NewMemoryIndex(base int, storeText bool) *MemoryIndex {
	m := &MemoryIndex{base: base, storeText: storeText}
	m.reset()
	return m
}

// AddDocument appends a document whose normalized terms are given in order
// and returns its internal id.
func (m *MemoryIndex) AddDocument(externalID string, terms []string, text string) (int, error) {
	if externalID == "" {
		return 0, apperrors.Invalidf("document without external id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, dup := m.external[externalID]; dup {
		return 0, apperrors.Invalidf("duplicate external id %q (first seen as document %d)", externalID, prev)
	}
	docID := m.base + len(m.docs)

	local := make(map[int]*Posting, len(terms))
	order := make([]int, 0, len(terms))
	ids := make([]int, len(terms))
	for pos, term := range terms {
		id, ok := m.termIDs[term]
		if !ok {
			id = len(m.terms)
			m.termIDs[term] = id
			m.terms = append(m.terms, term)
			m.postings = append(m.postings, nil)
			m.cf = append(m.cf, 0)
			m.size += int64(len(term)) + 48
		}
		ids[pos] = id
		p, seen := local[id]
		if !seen {
			p = &Posting{DocID: docID, Positions: make([]int, 0, 2)}
			local[id] = p
			order = append(order, id)
		}
		p.Frequency++
		p.Positions = append(p.Positions, pos)
		m.cf[id]++
	}
	for _, id := range order {
		m.postings[id] = append(m.postings[id], *local[id])
		m.size += int64(len(local[id].Positions)*8 + 24)
	}

	rec := DocumentRecord{ExternalID: externalID, Terms: ids}
	if m.storeText {
		rec.Text = text
		m.size += int64(len(text))
	}
	m.docs = append(m.docs, rec)
	m.external[externalID] = docID
	m.size += int64(len(ids)*8 + len(externalID))
	return docID, nil
}

// TermID reports the id assigned to term.
func (m *MemoryIndex) TermID(term string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.termIDs[term]
	return id, ok
}

// Snapshot copies the index contents ordered by term id.
func (m *MemoryIndex) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.terms)-1)
	for id := 1; id < len(m.terms); id++ {
		postings := make(PostingList, len(m.postings[id]))
		copy(postings, m.postings[id])
		entries = append(entries, TermEntry{
			ID:       id,
			Term:     m.terms[id],
			CF:       m.cf[id],
			Postings: postings,
		})
	}
	docs := make([]DocumentRecord, len(m.docs))
	copy(docs, m.docs)
	return Snapshot{DocumentBase: m.base, Terms: entries, Documents: docs}
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// TermCount is the number of distinct terms, excluding the reserved id 0.
func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms) - 1
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *MemoryIndex) reset() {
	m.termIDs = make(map[string]int)
	m.terms = []string{""}
	m.postings = [][]Posting{nil}
	m.cf = []int64{0}
	m.docs = nil
	m.external = make(map[string]int)
	m.size = 0
}

func (m *MemoryIndex) String() string {
	return fmt.Sprintf("MemoryIndex(docs=%d, terms=%d)", m.DocCount(), m.TermCount())
}
