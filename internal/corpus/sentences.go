// Package corpus streams repository documents as token sequences for
// embedding and topic-model training.
package corpus

import (
	"iter"

	"github.com/cvangysel/gondri/internal/vocabulary"
)

// Source is the part of a repository Sentences reads.
type Source interface {
	DocumentBase() (int, error)
	MaximumDocument() (int, error)
	Document(id int) (string, []int, error)
}

// Sentences is a restartable view of a repository as token sequences. Each
// document's term ids are translated through a dictionary; ids that are 0
// or unknown to the dictionary are skipped.
type Sentences struct {
	src          Source
	dict         *vocabulary.Dictionary
	maxDocuments int
	mapping      map[int]int
}

type Option func(*Sentences)

// WithMaxDocuments bounds iteration to the first n documents.
func WithMaxDocuments(n int) Option {
	return func(s *Sentences) { s.maxDocuments = n }
}

// WithMapping translates repository term ids through mapping before the
// dictionary lookup, for dictionaries extracted with contiguous ids.
func WithMapping(mapping map[int]int) Option {
	return func(s *Sentences) { s.mapping = mapping }
}

func New(src Source, dict *vocabulary.Dictionary, opts ...Option) *Sentences {
	s := &Sentences{src: src, dict: dict}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bounds returns the id range iteration covers.
func (s *Sentences) bounds() (int, int, error) {
	base, err := s.src.DocumentBase()
	if err != nil {
		return 0, 0, err
	}
	maximum, err := s.src.MaximumDocument()
	if err != nil {
		return 0, 0, err
	}
	if s.maxDocuments > 0 && base+s.maxDocuments < maximum {
		maximum = base + s.maxDocuments
	}
	return base, maximum, nil
}

// Len is the number of sequences an iteration yields.
func (s *Sentences) Len() (int, error) {
	base, maximum, err := s.bounds()
	if err != nil {
		return 0, err
	}
	return maximum - base, nil
}

// Iterator starts a new pass from the first document.
func (s *Sentences) Iterator() *Iterator {
	it := &Iterator{s: s}
	it.next, it.end, it.err = s.bounds()
	return it
}

// All yields every sequence of a fresh pass. Iteration stops after the
// first error.
func (s *Sentences) All() iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		it := s.Iterator()
		for it.Next() {
			if !yield(it.Tokens(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (s *Sentences) translate(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.mapping != nil {
			cid, ok := s.mapping[id]
			if !ok {
				continue
			}
			id = cid
		} else if id <= 0 {
			continue
		}
		if token, ok := s.dict.Token(id); ok {
			out = append(out, token)
		}
	}
	return out
}

// Iterator walks one pass over Sentences.
type Iterator struct {
	s         *Sentences
	next, end int
	tokens    []string
	err       error
}

// Next advances to the next document. It returns false at the end or on
// error.
func (it *Iterator) Next() bool {
	if it.err != nil || it.next >= it.end {
		return false
	}
	_, ids, err := it.s.src.Document(it.next)
	if err != nil {
		it.err = err
		return false
	}
	it.next++
	it.tokens = it.s.translate(ids)
	return true
}

// Tokens returns the current document's tokens.
func (it *Iterator) Tokens() []string {
	return it.tokens
}

func (it *Iterator) Err() error {
	return it.err
}
