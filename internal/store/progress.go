package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/course_service/internal/model"
)

type Progress struct{ db *sqlx.DB }

func NewProgress(db *sqlx.DB) *Progress { return &Progress{db: db} }

const progressColumns = `id, user_id, lesson_id, completed, completed_at`

// MarkCompleted upserts the (user, lesson) row as completed. The first
// completion time is kept on repeats. Unknown user or lesson ids surface as
// ErrUnknownReference via the foreign keys.
func (s *Progress) MarkCompleted(ctx context.Context, userID, lessonID int64) (*model.Progress, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (user_id, lesson_id, completed, completed_at)
		VALUES (?, ?, TRUE, NOW())
		ON DUPLICATE KEY UPDATE
			completed_at = IF(completed, completed_at, NOW()),
			completed = TRUE
	`, userID, lessonID)
	if err != nil {
		if isMySQL(err, errNoReferencedRow) {
			return nil, false, ErrUnknownReference
		}
		return nil, false, fmt.Errorf("upsert progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("upsert progress rows affected: %w", err)
	}

	var p model.Progress
	if err := s.db.GetContext(ctx, &p,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = ? AND lesson_id = ? LIMIT 1`,
		userID, lessonID); err != nil {
		return nil, false, fmt.Errorf("read progress: %w", notFound(err))
	}
	return &p, affected == 1, nil
}

func (s *Progress) ListByUser(ctx context.Context, userID int64) ([]model.Progress, error) {
	rows := []model.Progress{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+progressColumns+` FROM progress WHERE user_id = ? ORDER BY lesson_id ASC`, userID); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return rows, nil
}
