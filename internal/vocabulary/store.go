package vocabulary

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/postgres"
)

// Schema creates the tables Store writes to.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS dictionaries (
	    name       TEXT PRIMARY KEY,
	    terms      INTEGER NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS dictionary_terms (
	    dictionary TEXT    NOT NULL REFERENCES dictionaries(name) ON DELETE CASCADE,
	    term_id    INTEGER NOT NULL,
	    token      TEXT    NOT NULL,
	    df         INTEGER NOT NULL,
	    source_id  INTEGER,
	    PRIMARY KEY (dictionary, term_id)
	)`,
}

// Store persists dictionaries in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client, l *slog.Logger) *Store {
	return &Store{db: db, logger: logger.Component(l, "dictionary-store")}
}

// EnsureSchema creates the dictionary tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Exec(ctx, Schema...)
}

// SaveDictionary replaces the dictionary called name. mapping, when not
// nil, records each term's repository id next to its contiguous id.
func (s *Store) SaveDictionary(ctx context.Context, name string, dict *Dictionary, mapping map[int]int) error {
	source := make(map[int]int, len(mapping))
	for old, cid := range mapping {
		source[cid] = old
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dictionaries WHERE name = $1`, name); err != nil {
			return fmt.Errorf("deleting previous dictionary: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dictionaries (name, terms) VALUES ($1, $2)`, name, dict.Len()); err != nil {
			return fmt.Errorf("inserting dictionary: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("dictionary_terms", "dictionary", "term_id", "token", "df", "source_id"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for _, id := range dict.IDs() {
			token, _ := dict.Token(id)
			var src sql.NullInt64
			if old, ok := source[id]; ok {
				src = sql.NullInt64{Int64: int64(old), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, name, id, token, dict.DocumentFrequency(id), src); err != nil {
				stmt.Close()
				return fmt.Errorf("copying term %d: %w", id, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return err
	}
	s.logger.Info("dictionary saved", "name", name, "terms", dict.Len())
	return nil
}

// LoadDictionary reads the dictionary called name. The mapping is nil when
// the dictionary was saved without one.
func (s *Store) LoadDictionary(ctx context.Context, name string) (*Dictionary, map[int]int, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT term_id, token, df, source_id FROM dictionary_terms WHERE dictionary = $1`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("querying dictionary %q: %w", name, err)
	}
	defer rows.Close()

	token2id := make(map[string]int)
	id2token := make(map[int]string)
	id2df := make(map[int]int)
	var mapping map[int]int
	for rows.Next() {
		var (
			id, df int
			token  string
			src    sql.NullInt64
		)
		if err := rows.Scan(&id, &token, &df, &src); err != nil {
			return nil, nil, fmt.Errorf("scanning dictionary %q: %w", name, err)
		}
		token2id[token] = id
		id2token[id] = token
		id2df[id] = df
		if src.Valid {
			if mapping == nil {
				mapping = make(map[int]int)
			}
			mapping[int(src.Int64)] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading dictionary %q: %w", name, err)
	}
	dict, err := NewDictionary(token2id, id2token, id2df)
	if err != nil {
		return nil, nil, err
	}
	return dict, mapping, nil
}
