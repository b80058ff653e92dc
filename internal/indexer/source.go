package indexer

import "io"

// Document is raw input to a build.
type Document struct {
	ExternalID string
	Text       string
}

// Source yields documents in the order they receive internal ids. Next
// returns io.EOF when exhausted.
type Source interface {
	Next() (Document, error)
}

// SliceSource serves documents from memory.
type SliceSource struct {
	docs []Document
	pos  int
}

func NewSliceSource(docs ...Document) *SliceSource {
	return &SliceSource{docs: docs}
}

func (s *SliceSource) Next() (Document, error) {
	if s.pos >= len(s.docs) {
		return Document{}, io.EOF
	}
	d := s.docs[s.pos]
	s.pos++
	return d, nil
}

// MultiSource drains each source in turn.
type MultiSource struct {
	sources []Source
}

func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

func (m *MultiSource) Next() (Document, error) {
	for len(m.sources) > 0 {
		d, err := m.sources[0].Next()
		if err == io.EOF {
			m.sources = m.sources[1:]
			continue
		}
		return d, err
	}
	return Document{}, io.EOF
}
