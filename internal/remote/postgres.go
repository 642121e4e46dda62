package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"backend-cragmap/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Schema creates the single JSONB documents table every collection shares.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

type Postgres struct {
	db db.Querier
}

func NewPostgres(q db.Querier) *Postgres {
	return &Postgres{db: q}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, Schema)
	return err
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, `
		SELECT data FROM documents WHERE collection=$1 AND id=$2
	`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	doc := Document{ID: id}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1,$2,$3)
		ON CONFLICT (collection, id) DO UPDATE SET data=EXCLUDED.data
	`, collection, id, raw)
	return err
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return err
}

func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := p.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	sql, args := buildQuery(collection, q)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc Document
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func buildQuery(collection string, q Query) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, data FROM documents WHERE collection=$1`)
	if q.Field != "" {
		args = append(args, q.Field, fmt.Sprint(q.Equals))
		b.WriteString(` AND data->>$2 = $3`)
	}
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		b.WriteString(` ORDER BY data->>$` + strconv.Itoa(len(args)))
		if q.Descending {
			b.WriteString(` DESC`)
		}
	} else {
		b.WriteString(` ORDER BY id`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	return b.String(), args
}
