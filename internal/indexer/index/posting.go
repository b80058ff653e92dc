package index

// Posting records the occurrences of one term in one document.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p,omitempty"`
}

type PostingList []Posting

// TermEntry is a term with its statistics and postings sorted by DocID.
type TermEntry struct {
	ID       int
	Term     string
	CF       int64
	Postings PostingList
}

// DF is the number of documents containing the term.
func (e TermEntry) DF() int {
	return len(e.Postings)
}

// DocumentRecord is the stored form of a document: its external id, its
// token sequence as term ids, and optionally its raw text for snippets.
type DocumentRecord struct {
	ExternalID string `json:"x"`
	Terms      []int  `json:"t"`
	Text       string `json:"s,omitempty"`
}

// Snapshot is an immutable copy of a MemoryIndex ready to be written.
type Snapshot struct {
	DocumentBase int
	Terms        []TermEntry
	Documents    []DocumentRecord
}

// TotalTerms is the number of token occurrences across all documents.
func (s Snapshot) TotalTerms() int64 {
	var n int64
	for _, d := range s.Documents {
		n += int64(len(d.Terms))
	}
	return n
}
