package executor

import (
	"sort"

	"github.com/cvangysel/gondri/internal/indexer/index"
	"github.com/cvangysel/gondri/internal/searcher/parser"
)

// CountMatches counts, per document, the non-overlapping occurrences of an
// expression whose terms have the given posting lists (one per term, in
// expression order). Documents without a match are omitted.
func CountMatches(e *parser.Expression, postings []index.PostingList) map[int]int {
	counts := make(map[int]int)
	if len(postings) == 0 {
		return counts
	}
	if e.Op == parser.Term {
		for _, p := range postings[0] {
			if p.Frequency > 0 {
				counts[p.DocID] = p.Frequency
			}
		}
		return counts
	}

	positions := positionsByDoc(postings)
	for doc, perTerm := range positions {
		var n int
		if e.Op == parser.Ordered {
			n = countOrdered(perTerm, e.Window)
		} else {
			n = countUnordered(perTerm, e.Window)
		}
		if n > 0 {
			counts[doc] = n
		}
	}
	return counts
}

// positionsByDoc keeps only documents containing every term.
func positionsByDoc(postings []index.PostingList) map[int][][]int {
	out := make(map[int][][]int)
	for _, p := range postings[0] {
		perTerm := make([][]int, len(postings))
		perTerm[0] = p.Positions
		out[p.DocID] = perTerm
	}
	for i := 1; i < len(postings); i++ {
		seen := make(map[int]struct{}, len(postings[i]))
		for _, p := range postings[i] {
			if perTerm, ok := out[p.DocID]; ok {
				perTerm[i] = p.Positions
				seen[p.DocID] = struct{}{}
			}
		}
		for doc := range out {
			if _, ok := seen[doc]; !ok {
				delete(out, doc)
			}
		}
	}
	return out
}

// countOrdered matches terms left to right, each within window positions
// after the previous one.
func countOrdered(perTerm [][]int, window int) int {
	count, lastEnd := 0, -1
	for _, start := range perTerm[0] {
		if start <= lastEnd {
			continue
		}
		cur, ok := start, true
		for _, positions := range perTerm[1:] {
			i := sort.SearchInts(positions, cur+1)
			if i == len(positions) || positions[i] > cur+window {
				ok = false
				break
			}
			cur = positions[i]
		}
		if ok {
			count++
			lastEnd = cur
		}
	}
	return count
}

// countUnordered counts non-overlapping windows of the given width that
// contain every term at least once.
func countUnordered(perTerm [][]int, window int) int {
	type hit struct{ pos, term int }
	var hits []hit
	for t, positions := range perTerm {
		for _, p := range positions {
			hits = append(hits, hit{p, t})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	count := 0
	for i := 0; i < len(hits); {
		start := hits[i].pos
		found := make(map[int]struct{}, len(perTerm))
		j := i
		for ; j < len(hits) && hits[j].pos < start+window; j++ {
			found[hits[j].term] = struct{}{}
		}
		if len(found) == len(perTerm) {
			count++
			i = j
			continue
		}
		i++
	}
	return count
}
