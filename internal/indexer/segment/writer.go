package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/cvangysel/gondri/internal/indexer/index"
)

// Segment file layout:
//
//	header (HeaderSize bytes)
//	postings   one JSON array per term, in term-id order
//	documents  one JSON record per document, in document-id order
//	directory  JSON Directory locating every term and document
//	footer     crc32(directory) + magic
const (
	MagicBytes    uint32 = 0x474e4452
	FormatVersion uint32 = 1
	HeaderSize    int    = 96
	FooterSize    int    = 8
	Extension            = ".gseg"
)

// Header is the fixed-size header written at the start of every segment.
type Header struct {
	Magic        uint32
	Version      uint32
	TermCount    uint32
	DocCount     uint32
	DocumentBase uint32
	CreatedAt    int64
	PostOffset   int64
	PostSize     int64
	DocsOffset   int64
	DocsSize     int64
	DirOffset    int64
	DirSize      int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint32(b[16:20], h.DocumentBase)
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[64:72], uint64(h.DirOffset))
	binary.LittleEndian.PutUint64(b[72:80], uint64(h.DirSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:        binary.LittleEndian.Uint32(b[0:4]),
		Version:      binary.LittleEndian.Uint32(b[4:8]),
		TermCount:    binary.LittleEndian.Uint32(b[8:12]),
		DocCount:     binary.LittleEndian.Uint32(b[12:16]),
		DocumentBase: binary.LittleEndian.Uint32(b[16:20]),
		CreatedAt:    int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset:   int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:     int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsOffset:   int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsSize:     int64(binary.LittleEndian.Uint64(b[56:64])),
		DirOffset:    int64(binary.LittleEndian.Uint64(b[64:72])),
		DirSize:      int64(binary.LittleEndian.Uint64(b[72:80])),
	}
}

// DictEntry locates a term's postings and carries its statistics.
type DictEntry struct {
	ID         int    `json:"i"`
	Term       string `json:"t"`
	DocFreq    int    `json:"d"`
	CollFreq   int64  `json:"c"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
}

// DocEntry locates a stored document record.
type DocEntry struct {
	ExternalID string `json:"x"`
	Length     int    `json:"n"`
	Offset     int64  `json:"o"`
	Len        int    `json:"l"`
}

// Directory is the segment's table of contents.
type Directory struct {
	Terms     []DictEntry `json:"terms"`
	Documents []DocEntry  `json:"documents"`
}

// Writer serialises index snapshots into segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file from snap and returns its
// file name relative to the writer's directory. It writes to a .tmp file
// first and renames on success.
func (w *Writer) Write(snap index.Snapshot) (string, error) {
	if len(snap.Documents) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	name := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriterSize(f, 1<<16)
	cw := &countingWriter{w: bw}

	header := Header{
		Magic:        MagicBytes,
		Version:      FormatVersion,
		TermCount:    uint32(len(snap.Terms)),
		DocCount:     uint32(len(snap.Documents)),
		DocumentBase: uint32(snap.DocumentBase),
		CreatedAt:    time.Now().Unix(),
	}
	if _, err := cw.Write(header.encode()); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	dir := Directory{
		Terms:     make([]DictEntry, 0, len(snap.Terms)),
		Documents: make([]DocEntry, 0, len(snap.Documents)),
	}

	header.PostOffset = cw.n
	for _, entry := range snap.Terms {
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		offset := cw.n - header.PostOffset
		if _, err := cw.Write(data); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dir.Terms = append(dir.Terms, DictEntry{
			ID:         entry.ID,
			Term:       entry.Term,
			DocFreq:    entry.DF(),
			CollFreq:   entry.CF,
			PostOffset: offset,
			PostLen:    len(data),
		})
	}
	header.PostSize = cw.n - header.PostOffset

	header.DocsOffset = cw.n
	for _, doc := range snap.Documents {
		data, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("marshaling document %q: %w", doc.ExternalID, err)
		}
		offset := cw.n - header.DocsOffset
		if _, err := cw.Write(data); err != nil {
			return "", fmt.Errorf("writing document %q: %w", doc.ExternalID, err)
		}
		dir.Documents = append(dir.Documents, DocEntry{
			ExternalID: doc.ExternalID,
			Length:     len(doc.Terms),
			Offset:     offset,
			Len:        len(data),
		})
	}
	header.DocsSize = cw.n - header.DocsOffset

	dirData, err := json.Marshal(dir)
	if err != nil {
		return "", fmt.Errorf("marshaling directory: %w", err)
	}
	header.DirOffset = cw.n
	if _, err := cw.Write(dirData); err != nil {
		return "", fmt.Errorf("writing directory: %w", err)
	}
	header.DirSize = int64(len(dirData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dirData))
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)
	if _, err := cw.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing segment file: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return name, nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
