package sqlite

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/repository"
)

type badgeRepository struct {
	db *sql.DB
}

// NewBadgeRepository creates a new BadgeRepository implementation
func NewBadgeRepository(db *sql.DB) repository.BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) Celebrated(ctx context.Context, student string) (map[string]bool, error) {
	log := logger.FromContext(ctx).WithPrefix("badge_repo")

	query, args, err := sqlBuilder.
		Select("badge_id").
		From("celebrated_badges").
		Where(squirrel.Eq{"student": student}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query celebrated badges: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Error("failed to scan celebrated badge: %v", err)
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *badgeRepository) MarkCelebrated(ctx context.Context, student, badgeID string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("badge_repo")
	log.Debug("marking badge celebrated: student=%s, badge=%s", student, badgeID)

	query, args, err := sqlBuilder.
		Insert("celebrated_badges").
		Options("OR IGNORE").
		Columns("student", "badge_id").
		Values(student, badgeID).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to mark badge celebrated: %v", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *badgeRepository) ClearAll(ctx context.Context) error {
	return tx(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := sqlBuilder.Delete("celebrated_badges").ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		logger.FromContext(ctx).WithPrefix("badge_repo").Info("cleared %d celebrated badges", n)
		return nil
	})
}
