package course

import (
	"context"
	"sync"
	"time"

	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/store"
)

type fakeLessons struct {
	rows []model.Lesson
	err  error
}

func (f *fakeLessons) ListOrdered(context.Context) ([]model.Lesson, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Lesson(nil), f.rows...), nil
}

// fakeProgress enforces one row per (user, lesson) and the foreign keys.
type fakeProgress struct {
	mu      sync.Mutex
	users   map[int64]bool
	lessons map[int64]bool
	rows    []model.Progress
	err     error
	now     time.Time
}

func newFakeProgress(users, lessons []int64) *fakeProgress {
	f := &fakeProgress{
		users:   map[int64]bool{},
		lessons: map[int64]bool{},
		now:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		f.users[u] = true
	}
	for _, l := range lessons {
		f.lessons[l] = true
	}
	return f
}

func (f *fakeProgress) MarkCompleted(_ context.Context, userID, lessonID int64) (*model.Progress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.users[userID] || !f.lessons[lessonID] {
		return nil, false, store.ErrUnknownReference
	}
	for i := range f.rows {
		r := &f.rows[i]
		if r.UserID == userID && r.LessonID == lessonID {
			first := !r.Completed
			if first {
				at := f.now
				r.CompletedAt = &at
			}
			r.Completed = true
			cp := *r
			return &cp, first, nil
		}
	}
	at := f.now
	f.rows = append(f.rows, model.Progress{
		ID: int64(len(f.rows) + 1), UserID: userID, LessonID: lessonID, Completed: true, CompletedAt: &at,
	})
	cp := f.rows[len(f.rows)-1]
	return &cp, true, nil
}

func (f *fakeProgress) ListByUser(_ context.Context, userID int64) ([]model.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Progress
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Progress
}

func (f *fakeNotifier) BroadcastProgressCompleted(p model.Progress) {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.mu.Unlock()
}

func courseLessons() []model.Lesson {
	// deliberately out of order
	return []model.Lesson{
		{ID: 3, Title: "Signals", VideoURL: "https://v/3", Order: 3},
		{ID: 1, Title: "Intro", VideoURL: "https://v/1", Order: 1},
		{ID: 4, Title: "Bonus", VideoURL: "https://v/4", Order: 2},
		{ID: 2, Title: "Nodes", VideoURL: "https://v/2", Order: 2},
	}
}
