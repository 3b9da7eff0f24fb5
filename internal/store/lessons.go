package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/course_service/internal/model"
)

type Lessons struct{ db *sqlx.DB }

func NewLessons(db *sqlx.DB) *Lessons { return &Lessons{db: db} }

// ListOrdered returns every lesson in playback order.
func (s *Lessons) ListOrdered(ctx context.Context) ([]model.Lesson, error) {
	lessons := []model.Lesson{}
	if err := s.db.SelectContext(ctx, &lessons,
		"SELECT id, title, video_url, `order` FROM lessons ORDER BY `order` ASC, id ASC"); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}
