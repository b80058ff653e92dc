package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/cvangysel/gondri/internal/indexer/index"
	apperrors "github.com/cvangysel/gondri/pkg/errors"
)

// Reader serves a segment file. The directory is held in memory; postings
// and document records are read on demand. A Reader is safe for
// concurrent use.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dir      Directory
	byTerm   map[string]int
	byExt    map[string]int
	total    int64
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header %s: %w", path, apperrors.ErrCorrupt)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file %s: bad magic bytes %x: %w", path, header.Magic, apperrors.ErrCorrupt)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("segment %s has format version %d, want %d: %w", path, header.Version, FormatVersion, apperrors.ErrCorrupt)
	}

	dirBytes := make([]byte, header.DirSize)
	if _, err := f.ReadAt(dirBytes, header.DirOffset); err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DirOffset+header.DirSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if binary.LittleEndian.Uint32(footer[0:4]) != crc32.ChecksumIEEE(dirBytes) {
		return nil, fmt.Errorf("segment %s directory checksum mismatch: %w", path, apperrors.ErrCorrupt)
	}

	var dir Directory
	if err := json.Unmarshal(dirBytes, &dir); err != nil {
		return nil, fmt.Errorf("parsing directory: %w", err)
	}
	r := &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dir:      dir,
		byTerm:   make(map[string]int, len(dir.Terms)),
		byExt:    make(map[string]int, len(dir.Documents)),
	}
	for i, e := range dir.Terms {
		if e.ID != i+1 {
			return nil, fmt.Errorf("segment %s: term %q has id %d at slot %d: %w", path, e.Term, e.ID, i+1, apperrors.ErrCorrupt)
		}
		r.byTerm[e.Term] = e.ID
	}
	for i, d := range dir.Documents {
		r.byExt[d.ExternalID] = int(header.DocumentBase) + i
		r.total += int64(d.Length)
	}
	return r, nil
}

// DocumentBase is the id of the first document.
func (r *Reader) DocumentBase() int {
	return int(r.header.DocumentBase)
}

func (r *Reader) DocCount() int {
	return len(r.dir.Documents)
}

func (r *Reader) TermCount() int {
	return len(r.dir.Terms)
}

// TotalTerms is the collection length in tokens.
func (r *Reader) TotalTerms() int64 {
	return r.total
}

// Terms returns the dictionary in term-id order. Callers must not modify
// it.
func (r *Reader) Terms() []DictEntry {
	return r.dir.Terms
}

// Term looks up a dictionary entry by id.
func (r *Reader) Term(id int) (DictEntry, bool) {
	if id < 1 || id > len(r.dir.Terms) {
		return DictEntry{}, false
	}
	return r.dir.Terms[id-1], true
}

// TermID looks up the id of a normalized term.
func (r *Reader) TermID(term string) (int, bool) {
	id, ok := r.byTerm[term]
	return id, ok
}

// Postings reads the posting list of a term id; unknown ids have none.
func (r *Reader) Postings(id int) (index.PostingList, error) {
	entry, ok := r.Term(id)
	if !ok {
		return nil, nil
	}
	buf := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(buf, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings of term %d: %w", id, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(buf, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings of term %d: %w", id, err)
	}
	return postings, nil
}

// DocEntry returns the directory entry of an internal document id.
func (r *Reader) DocEntry(docID int) (DocEntry, bool) {
	i := docID - int(r.header.DocumentBase)
	if i < 0 || i >= len(r.dir.Documents) {
		return DocEntry{}, false
	}
	return r.dir.Documents[i], true
}

// DocumentID resolves an external id.
func (r *Reader) DocumentID(externalID string) (int, bool) {
	id, ok := r.byExt[externalID]
	return id, ok
}

// Document reads a stored document record.
func (r *Reader) Document(docID int) (index.DocumentRecord, error) {
	entry, ok := r.DocEntry(docID)
	if !ok {
		return index.DocumentRecord{}, apperrors.Lookupf("document %d not in segment", docID)
	}
	buf := make([]byte, entry.Len)
	if _, err := r.file.ReadAt(buf, r.header.DocsOffset+entry.Offset); err != nil {
		return index.DocumentRecord{}, fmt.Errorf("reading document %d: %w", docID, err)
	}
	var rec index.DocumentRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return index.DocumentRecord{}, fmt.Errorf("parsing document %d: %w", docID, err)
	}
	return rec, nil
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}
