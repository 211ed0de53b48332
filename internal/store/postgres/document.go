package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandemlabs/tandem/internal/domain"
)

// DocumentRepo persists collaborative document fields, one row per
// (document, field). SaveField upserts the merge winner the engine already
// resolved, so the version check here only guards against out-of-order
// writes from a concurrent instance.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) GetFields(ctx context.Context, key string) ([]domain.DocumentField, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT field, value, version, actor, updated_at
		 FROM document_fields WHERE doc_key = $1`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.GetFields: %w", err)
	}
	defer rows.Close()

	var fields []domain.DocumentField
	for rows.Next() {
		var f domain.DocumentField
		if err := rows.Scan(&f.Name, &f.Value, &f.Version, &f.Actor, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("documentRepo.GetFields: scan: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documentRepo.GetFields: rows: %w", err)
	}

	return fields, nil
}

func (r *DocumentRepo) SaveField(ctx context.Context, key string, f domain.DocumentField) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO document_fields (doc_key, field, value, version, actor, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (doc_key, field) DO UPDATE SET
		        value = EXCLUDED.value, version = EXCLUDED.version,
		        actor = EXCLUDED.actor, updated_at = EXCLUDED.updated_at
		 WHERE document_fields.version < EXCLUDED.version
		    OR (document_fields.version = EXCLUDED.version AND document_fields.actor <= EXCLUDED.actor)`,
		key, f.Name, f.Value, f.Version, f.Actor, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("documentRepo.SaveField: %w", err)
	}

	return nil
}
