package repository

import (
	"context"
	"database/sql"

	"examhub/internal/content"
)

type PostgresContentRepository struct {
	db *sql.DB
}

func NewPostgresContentRepository(db *sql.DB) *PostgresContentRepository {
	return &PostgresContentRepository{db: db}
}

func (r *PostgresContentRepository) Upsert(ctx context.Context, b *content.Block) error {
	return r.db.QueryRowContext(ctx, `
        INSERT INTO content_blocks (slug, title, body, position, updated_by, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (slug) DO UPDATE SET
            title = EXCLUDED.title,
            body = EXCLUDED.body,
            position = EXCLUDED.position,
            updated_by = EXCLUDED.updated_by,
            updated_at = NOW()
        RETURNING id, updated_at`,
		b.Slug, b.Title, b.Body, b.Position, b.UpdatedBy).
		Scan(&b.ID, &b.UpdatedAt)
}

func (r *PostgresContentRepository) GetAll(ctx context.Context) ([]*content.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, slug, title, body, position, updated_by, updated_at
        FROM content_blocks ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*content.Block
	for rows.Next() {
		b := &content.Block{}
		err := rows.Scan(&b.ID, &b.Slug, &b.Title, &b.Body, &b.Position, &b.UpdatedBy, &b.UpdatedAt)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

func (r *PostgresContentRepository) Delete(ctx context.Context, slug string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_blocks WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
