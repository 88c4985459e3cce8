package stubapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a Postgres-backed Store for stub deployments that should
// survive restarts. Entities live in one jsonb table; insertion order is
// kept by a sequence column so pagination is stable.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates the store and ensures its schema exists.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure stub schema: %w", err)
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stub_entities (
			resource text NOT NULL,
			id       text NOT NULL,
			doc      jsonb NOT NULL,
			seq      bigint GENERATED ALWAYS AS IDENTITY,
			PRIMARY KEY (resource, id)
		)`)
	return err
}

func (s *PGStore) List(ctx context.Context, resource string, p ListParams) ([]map[string]any, int, error) {
	where := []string{"resource = $1"}
	args := []any{resource}

	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		where = append(where, fmt.Sprintf("doc->>'name' ILIKE $%d", len(args)))
	}
	if p.Status != "" {
		args = append(args, p.Status)
		where = append(where, fmt.Sprintf("doc->>'status' = $%d", len(args)))
	}
	if p.Category != "" {
		args = append(args, p.Category)
		where = append(where, fmt.Sprintf("doc->>'category' = $%d", len(args)))
	}

	args = append(args, p.PerPage, (p.Page-1)*p.PerPage)
	query := fmt.Sprintf(`
		SELECT doc, COUNT(*) OVER() AS total
		FROM stub_entities
		WHERE %s
		ORDER BY seq
		LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []map[string]any{}
	total := 0
	for rows.Next() {
		var doc map[string]any
		if err := rows.Scan(&doc, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the end returns no rows and thus no window total;
	// count separately so pagination metadata stays correct
	if len(items) == 0 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM stub_entities WHERE %s`, strings.Join(where, " AND "))
		if err := s.pool.QueryRow(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *PGStore) Get(ctx context.Context, resource, id string) (map[string]any, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM stub_entities WHERE resource = $1 AND id = $2`,
		resource, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSuchEntity
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PGStore) Create(ctx context.Context, resource string, doc map[string]any) (map[string]any, error) {
	stored := copyDoc(doc)
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.New().String()
		stored["id"] = id
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO stub_entities (resource, id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (resource, id) DO UPDATE SET doc = EXCLUDED.doc`,
		resource, id, stored)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *PGStore) Update(ctx context.Context, resource, id string, changes map[string]any) (map[string]any, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, `
		UPDATE stub_entities SET doc = doc || $3
		WHERE resource = $1 AND id = $2
		RETURNING doc`,
		resource, id, mergePayload(changes)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSuchEntity
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// mergePayload copies the changed fields for the jsonb merge, dropping the
// immutable id. The caller's map is left untouched.
func mergePayload(changes map[string]any) map[string]any {
	payload := make(map[string]any, len(changes))
	for k, v := range changes {
		if k == "id" {
			continue
		}
		payload[k] = v
	}
	return payload
}

func (s *PGStore) Delete(ctx context.Context, resource, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM stub_entities WHERE resource = $1 AND id = $2`,
		resource, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSuchEntity
	}
	return nil
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	var doc map[string]any
	err := s.pool.QueryRow(ctx, `
		SELECT doc FROM stub_entities
		WHERE resource = $1 AND lower(doc->>'email') = lower($2)
		ORDER BY seq LIMIT 1`,
		ResourceUsers, email).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSuchEntity
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
