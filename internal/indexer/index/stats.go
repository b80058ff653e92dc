package index

// TermStats carries a term's id and its frequencies.
type TermStats struct {
	ID   int
	Term string
	DF   int
	CF   int64
}

// CollectionStats summarizes a repository for scoring.
type CollectionStats struct {
	Documents  int
	TotalTerms int64
}

// AvgDocLength is the mean document length in tokens.
func (c CollectionStats) AvgDocLength() float64 {
	if c.Documents == 0 {
		return 0
	}
	return float64(c.TotalTerms) / float64(c.Documents)
}
