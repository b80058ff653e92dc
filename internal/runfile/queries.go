// Package runfile reads TREC-style query files and writes TREC run files.
package runfile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cvangysel/gondri/pkg/logger"
)

// DefaultDelimiter separates the query id from its text.
const DefaultDelimiter = ";"

type Query struct {
	ID   string
	Text string
}

type ReadOptions struct {
	Delimiter string
	// MaxQueries stops reading once this many distinct queries were read
	// when positive.
	MaxQueries int
	Logger     *slog.Logger
}

// ReadQueries reads "id<delim>text" lines from every reader in turn. Blank
// lines are ignored and lines without the delimiter are skipped with a
// warning. A repeated id keeps its first position and its last text.
func ReadQueries(opts ReadOptions, readers ...io.Reader) ([]Query, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	log := logger.Component(opts.Logger, "runfile")

	var queries []Query
	index := make(map[string]int)
	for _, r := range readers {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			id, text, ok := strings.Cut(line, delim)
			if !ok {
				log.Warn("unable to process line in query list", "line", line)
				continue
			}
			if i, seen := index[id]; seen {
				if queries[i].Text != text {
					log.Error("duplicate query", "id", id, "previous", queries[i].Text, "text", text)
				}
				queries[i].Text = text
			} else {
				index[id] = len(queries)
				queries = append(queries, Query{ID: id, Text: text})
			}
			if opts.MaxQueries > 0 && len(queries) >= opts.MaxQueries {
				return queries, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading queries: %w", err)
		}
	}
	return queries, nil
}

// Tokenizer normalizes query text into vocabulary tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Translator maps tokens to dictionary ids.
type Translator interface {
	TranslateToken(token string) (int, bool)
}

// ParsedQuery is a query translated to dictionary ids. TokenIDs holds -1
// for out-of-vocabulary tokens and is nil when the query was skipped.
type ParsedQuery struct {
	ID       string
	Tokens   []string
	TokenIDs []int
}

// Skipped reports whether the query has no usable tokens.
func (q ParsedQuery) Skipped() bool {
	return q.TokenIDs == nil
}

// ParseQueries tokenizes and translates each query. Queries whose tokens
// are all out of vocabulary are skipped; with strict, so is any query with
// an out-of-vocabulary token. A query that fails to tokenize aborts.
func ParseQueries(tok Tokenizer, dict Translator, queries []Query, strict bool, l *slog.Logger) ([]ParsedQuery, error) {
	log := logger.Component(l, "runfile")
	out := make([]ParsedQuery, 0, len(queries))
	for _, q := range queries {
		tokens, err := tok.Tokenize(q.Text)
		if err != nil {
			return nil, fmt.Errorf("tokenizing query %s %q: %w", q.ID, q.Text, err)
		}
		ids := make([]int, len(tokens))
		known := 0
		for i, token := range tokens {
			id, ok := dict.TranslateToken(token)
			if !ok {
				ids[i] = -1
				continue
			}
			ids[i] = id
			known++
		}
		log.Info("query parsed", "id", q.ID, "text", q.Text, "tokens", tokens, "ids", ids)

		switch {
		case known == 0:
			log.Warn("skipping query as all tokens are out of vocabulary", "id", q.ID)
			ids = nil
		case strict && known < len(tokens):
			log.Warn("skipping query as at least one token is out of vocabulary", "id", q.ID)
			ids = nil
		}
		out = append(out, ParsedQuery{ID: q.ID, Tokens: tokens, TokenIDs: ids})
	}
	return out, nil
}
