// Package course serves the lesson list and records lesson completion.
package course

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/metrics"
	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/store"
)

type LessonStore interface {
	ListOrdered(ctx context.Context) ([]model.Lesson, error)
}

type ProgressStore interface {
	MarkCompleted(ctx context.Context, userID, lessonID int64) (*model.Progress, bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Progress, error)
}

// Notifier receives completed progress rows. *ws.Hub satisfies it.
type Notifier interface {
	BroadcastProgressCompleted(p model.Progress)
}

type Service struct {
	lessons  LessonStore
	progress ProgressStore
	notify   Notifier
	metrics  *metrics.Collector
}

func NewService(l LessonStore, p ProgressStore, n Notifier, m *metrics.Collector) *Service {
	return &Service{lessons: l, progress: p, notify: n, metrics: m}
}

// Complete marks the lesson completed for the user. Repeating the call is a
// no-op that keeps the first completion time; first reports whether this call
// did the completing.
func (s *Service) Complete(ctx context.Context, userID, lessonID int64) (p *model.Progress, first bool, err error) {
	const op = "progress.complete"
	if userID <= 0 || lessonID <= 0 {
		return nil, false, apperr.Validation(op, "userId and lessonId must be positive integers")
	}

	start := time.Now()
	p, first, err = s.progress.MarkCompleted(ctx, userID, lessonID)
	s.metrics.ObserveStore("progress.upsert", time.Since(start))
	if err != nil {
		if errors.Is(err, store.ErrUnknownReference) {
			return nil, false, &apperr.Error{Kind: apperr.KindValidation, Op: op, Public: "unknown user or lesson", Err: err}
		}
		return nil, false, apperr.Storage(op, err)
	}

	s.metrics.Completed(first)
	if s.notify != nil {
		s.notify.BroadcastProgressCompleted(*p)
	}
	return p, first, nil
}

// Overview loads every lesson in order plus the user's progress rows.
func (s *Service) Overview(ctx context.Context, userID int64) (*model.CourseOverview, error) {
	const op = "course.overview"
	if userID <= 0 {
		return nil, apperr.Validation(op, "userId must be a positive integer")
	}

	var (
		lessons  []model.Lesson
		progress []model.Progress
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lessons, err = s.lessons.ListOrdered(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.progress.ListByUser(gctx, userID)
		return err
	})
	err := g.Wait()
	s.metrics.ObserveStore("course.overview", time.Since(start))
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	if lessons == nil {
		lessons = []model.Lesson{}
	}
	if progress == nil {
		progress = []model.Progress{}
	}
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })

	return &model.CourseOverview{Lessons: lessons, Progress: progress}, nil
}
