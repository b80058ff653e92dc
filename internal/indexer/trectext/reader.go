// Package trectext reads TREC-formatted document collections:
//
//	<DOC>
//	<DOCNO> FT911-1 </DOCNO>
//	<TEXT> ... </TEXT>
//	</DOC>
//
// Every <TEXT> element of a document is indexed. Documents without one are
// indexed on their full body with markup stripped.
package trectext

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cvangysel/gondri/internal/indexer"
)

const maxLine = 4 << 20

type Reader struct {
	scanner *bufio.Scanner
	line    int
	name    string
}

var _ indexer.Source = (*Reader)(nil)

// NewReader reads documents from r; name labels errors.
func NewReader(r io.Reader, name string) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{scanner: s, name: name}
}

// Next returns the next document or io.EOF.
func (r *Reader) Next() (indexer.Document, error) {
	var (
		body    strings.Builder
		inDoc   bool
		started int
	)
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inDoc {
			if strings.HasPrefix(trimmed, "<DOC>") {
				inDoc = true
				started = r.line
				body.WriteString(strings.TrimPrefix(trimmed, "<DOC>"))
				body.WriteByte('\n')
			}
			continue
		}
		if idx := strings.Index(line, "</DOC>"); idx >= 0 {
			body.WriteString(line[:idx])
			return r.parse(body.String(), started)
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := r.scanner.Err(); err != nil {
		return indexer.Document{}, fmt.Errorf("%s:%d: %w", r.name, r.line, err)
	}
	if inDoc {
		return indexer.Document{}, fmt.Errorf("%s:%d: unterminated <DOC>", r.name, started)
	}
	return indexer.Document{}, io.EOF
}

func (r *Reader) parse(body string, line int) (indexer.Document, error) {
	docno, ok := element(body, "DOCNO")
	if !ok || strings.TrimSpace(docno) == "" {
		return indexer.Document{}, fmt.Errorf("%s:%d: document without <DOCNO>", r.name, line)
	}
	var texts []string
	rest := body
	for {
		text, ok := element(rest, "TEXT")
		if !ok {
			break
		}
		texts = append(texts, strings.TrimSpace(text))
		rest = rest[strings.Index(rest, "</TEXT>")+len("</TEXT>"):]
	}
	if len(texts) == 0 {
		without := strings.Replace(body, "<DOCNO>"+docno+"</DOCNO>", "", 1)
		texts = append(texts, strings.TrimSpace(stripTags(without)))
	}
	return indexer.Document{
		ExternalID: strings.TrimSpace(docno),
		Text:       strings.Join(texts, "\n"),
	}, nil
}

func element(s, tag string) (string, bool) {
	open, closing := "<"+tag+">", "</"+tag+">"
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	s = s[i+len(open):]
	j := strings.Index(s, closing)
	if j < 0 {
		return "", false
	}
	return s[:j], true
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// File is a Reader that owns its file.
type File struct {
	*Reader
	f *os.File
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &File{Reader: NewReader(f, path), f: f}, nil
}

func (f *File) Close() error {
	return f.f.Close()
}
