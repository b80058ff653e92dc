package searcher

import (
	"encoding/json"
	"fmt"
)

// Hit is one ranked document. It has arity 2 (document, score) or, when
// snippets were requested, arity 3 (document, score, snippet).
type Hit struct {
	Document   int
	Score      float64
	Snippet    string
	hasSnippet bool
}

// NewHit builds a two-element hit.
func NewHit(doc int, score float64) Hit {
	return Hit{Document: doc, Score: score}
}

// NewSnippetHit builds a three-element hit.
func NewSnippetHit(doc int, score float64, snippet string) Hit {
	return Hit{Document: doc, Score: score, Snippet: snippet, hasSnippet: true}
}

// Arity is 3 for hits carrying a snippet and 2 otherwise.
func (h Hit) Arity() int {
	if h.hasSnippet {
		return 3
	}
	return 2
}

// Tuple returns the hit as its positional elements.
func (h Hit) Tuple() []any {
	if h.hasSnippet {
		return []any{h.Document, h.Score, h.Snippet}
	}
	return []any{h.Document, h.Score}
}

// MarshalJSON encodes the hit as a 2- or 3-element array.
func (h Hit) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Tuple())
}

func (h *Hit) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 && len(raw) != 3 {
		return fmt.Errorf("hit has %d elements, want 2 or 3", len(raw))
	}
	var out Hit
	if err := json.Unmarshal(raw[0], &out.Document); err != nil {
		return fmt.Errorf("hit document: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Score); err != nil {
		return fmt.Errorf("hit score: %w", err)
	}
	if len(raw) == 3 {
		if err := json.Unmarshal(raw[2], &out.Snippet); err != nil {
			return fmt.Errorf("hit snippet: %w", err)
		}
		out.hasSnippet = true
	}
	*h = out
	return nil
}

func (h Hit) String() string {
	if h.hasSnippet {
		return fmt.Sprintf("(%d, %g, %q)", h.Document, h.Score, h.Snippet)
	}
	return fmt.Sprintf("(%d, %g)", h.Document, h.Score)
}

// Result is the outcome of a query.
type Result struct {
	Query     string   `json:"query"`
	Model     string   `json:"model"`
	Ascending bool     `json:"ascending"`
	Hits      []Hit    `json:"hits"`
	OOVTerms  []string `json:"oov_terms,omitempty"`
	// Candidates counts documents containing at least one query term.
	Candidates int `json:"candidates"`
}
