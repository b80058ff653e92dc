// Package vocabulary holds term dictionaries derived from a repository:
// the full vocabulary or a filtered, optionally renumbered subset suited
// to training vocabularies.
package vocabulary

import (
	"fmt"
	"sort"

	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// Dictionary is an immutable bidirectional token/id mapping with document
// frequencies.
type Dictionary struct {
	token2id map[string]int
	id2token map[int]string
	id2df    map[int]int
}

// BowEntry is one (id, count) element of a bag of words.
type BowEntry struct {
	ID    int `json:"id"`
	Count int `json:"count"`
}

// NewDictionary copies the three maps after checking that they describe
// the same terms.
func NewDictionary(token2id map[string]int, id2token map[int]string, id2df map[int]int) (*Dictionary, error) {
	if len(token2id) != len(id2token) || len(id2token) != len(id2df) {
		return nil, apperrors.Invalidf("dictionary maps disagree: %d tokens, %d ids, %d frequencies",
			len(token2id), len(id2token), len(id2df))
	}
	d := &Dictionary{
		token2id: make(map[string]int, len(token2id)),
		id2token: make(map[int]string, len(id2token)),
		id2df:    make(map[int]int, len(id2df)),
	}
	for id, token := range id2token {
		if got, ok := token2id[token]; !ok || got != id {
			return nil, apperrors.Invalidf("token %q does not map back to term %d", token, id)
		}
		df, ok := id2df[id]
		if !ok {
			return nil, apperrors.Invalidf("term %d has no document frequency", id)
		}
		d.token2id[token] = id
		d.id2token[id] = token
		d.id2df[id] = df
	}
	return d, nil
}

// TranslateToken returns the id of token; ok is false for out-of-vocabulary
// tokens.
func (d *Dictionary) TranslateToken(token string) (id int, ok bool) {
	id, ok = d.token2id[token]
	return id, ok
}

func (d *Dictionary) HasToken(token string) bool {
	_, ok := d.token2id[token]
	return ok
}

// Token returns the token of id.
func (d *Dictionary) Token(id int) (string, bool) {
	token, ok := d.id2token[id]
	return token, ok
}

// Contains reports whether id is in the dictionary.
func (d *Dictionary) Contains(id int) bool {
	_, ok := d.id2token[id]
	return ok
}

// DocumentFrequency returns the document frequency of id, or 0 when it is
// unknown.
func (d *Dictionary) DocumentFrequency(id int) int {
	return d.id2df[id]
}

func (d *Dictionary) Len() int {
	return len(d.id2token)
}

// IDs returns every term id in ascending order.
func (d *Dictionary) IDs() []int {
	ids := make([]int, 0, len(d.id2token))
	for id := range d.id2token {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (d *Dictionary) String() string {
	return fmt.Sprintf("Dictionary(%d unique tokens)", len(d.id2token))
}

// Doc2Bow counts the tokens or ids of a document. It accepts []string,
// []int or []any holding strings and ints; a bare string or []byte is
// rejected since it is almost always a caller mistake. Out-of-vocabulary
// tokens are dropped and ids are counted as given.
func (d *Dictionary) Doc2Bow(document any) ([]BowEntry, error) {
	switch doc := document.(type) {
	case string, []byte:
		return nil, apperrors.Invalidf("doc2bow expects a sequence of tokens, not a single %T", document)
	case []string:
		return d.Doc2BowTokens(doc), nil
	case []int:
		return d.Doc2BowIDs(doc), nil
	case []any:
		counts := make(map[int]int)
		for i, el := range doc {
			switch v := el.(type) {
			case string:
				if id, ok := d.token2id[v]; ok {
					counts[id]++
				}
			case int:
				counts[v]++
			default:
				return nil, apperrors.Invalidf("doc2bow element %d has type %T", i, el)
			}
		}
		return sortedBow(counts), nil
	default:
		return nil, apperrors.Invalidf("doc2bow cannot read a %T", document)
	}
}

// Doc2BowTokens counts in-vocabulary tokens by id.
func (d *Dictionary) Doc2BowTokens(tokens []string) []BowEntry {
	counts := make(map[int]int)
	for _, token := range tokens {
		if id, ok := d.token2id[token]; ok {
			counts[id]++
		}
	}
	return sortedBow(counts)
}

// Doc2BowIDs counts ids as given.
func (d *Dictionary) Doc2BowIDs(ids []int) []BowEntry {
	counts := make(map[int]int)
	for _, id := range ids {
		counts[id]++
	}
	return sortedBow(counts)
}

func sortedBow(counts map[int]int) []BowEntry {
	out := make([]BowEntry, 0, len(counts))
	for id, n := range counts {
		out = append(out, BowEntry{ID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
