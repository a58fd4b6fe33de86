package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/repository"
)

type documentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new DocumentRepository implementation
func NewDocumentRepository(db *sql.DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Get(ctx context.Context, key string) ([]byte, error) {
	log := logger.FromContext(ctx).WithPrefix("document_repo")

	query, args, err := sqlBuilder.Select("body").From("documents").Where("key = ?", key).ToSql()
	if err != nil {
		return nil, err
	}

	var body string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("document not found: key=%s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to read document %s: %v", key, err)
		return nil, err
	}
	log.Debug("document loaded: key=%s, bytes=%d", key, len(body))
	return []byte(body), nil
}

func (r *documentRepository) Put(ctx context.Context, key string, body []byte) error {
	log := logger.FromContext(ctx).WithPrefix("document_repo")

	query, args, err := sqlBuilder.
		Insert("documents").
		Columns("key", "body").
		Values(key, string(body)).
		Suffix("ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to write document %s: %v", key, err)
		return err
	}
	log.Debug("document stored: key=%s, bytes=%d", key, len(body))
	return nil
}
