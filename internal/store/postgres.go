package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Kód chyby Postgresu pro porušení unikátního indexu.
const uniqueViolation = "23505"

// Postgres implementuje Store nad jednou JSONB tabulkou "documents".
type Postgres struct {
	pool *pgxpool.Pool // Connection pool, je thread-safe
	keys KeyFields
}

// NewPostgres vytvoří pool a ověří spojení (Ping).
func NewPostgres(ctx context.Context, url string, keys KeyFields) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}
	return &Postgres{pool: pool, keys: keys}, nil
}

// Close uzavře pool při ukončení aplikace.
func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema založí tabulku a indexy, pokud ještě neexistují.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("zakládání schématu selhalo: %w", err)
	}
	return nil
}

func (p *Postgres) FindByNaturalKey(ctx context.Context, collection, key string) (Document, bool, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND natural_key = $2
		LIMIT 1
	`
	doc := Document{Collection: collection}
	err := p.pool.QueryRow(ctx, query, collection, key).Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("SQL lookup selhal: %w", err)
	}
	return doc, true, nil
}

func (p *Postgres) Create(ctx context.Context, collection string, fields Fields) (Document, error) {
	nk, err := p.keys.naturalKey(collection, fields)
	if err != nil {
		return Document{}, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("pole nejdou serializovat: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, natural_key, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING data, created_at, updated_at
	`
	doc := Document{ID: uuid.NewString(), Collection: collection}
	err = p.pool.QueryRow(ctx, query, collection, doc.ID, nullable(nk), string(data)).
		Scan(&doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, nk, ErrConflict)
		}
		return Document{}, fmt.Errorf("chyba insertu do PG: %w", err)
	}
	return doc, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields Fields) (Document, error) {
	nk, err := p.keys.naturalKey(collection, fields)
	if err != nil {
		return Document{}, err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("pole nejdou serializovat: %w", err)
	}

	// Operátor || sloučí JSONB objekty, klíče z patche přepíšou původní.
	query := `
		UPDATE documents
		SET data = data || $3::jsonb,
		    natural_key = COALESCE($4, natural_key),
		    updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING data, created_at, updated_at
	`
	doc := Document{ID: id, Collection: collection}
	err = p.pool.QueryRow(ctx, query, collection, id, string(patch), nullable(nk)).
		Scan(&doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, nk, ErrConflict)
		}
		return Document{}, fmt.Errorf("chyba update v PG: %w", err)
	}
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if filter == nil {
		filter = Filter{}
	}
	cond, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("filtr nejde serializovat: %w", err)
	}

	// LIMIT NULL = bez limitu
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	query := `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY created_at DESC, id ASC
		LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, collection, string(cond), lim)
	if err != nil {
		return nil, fmt.Errorf("SQL dotaz selhal: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
