package model

import "time"

type Lesson struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	VideoURL string `db:"video_url" json:"videoUrl"`
	Order    int    `db:"order" json:"order"`
}

// Progress records that a user finished a lesson. There is at most one row
// per (UserID, LessonID).
type Progress struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"userId"`
	LessonID    int64      `db:"lesson_id" json:"lessonId"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
}

// CourseOverview is everything the player needs to render a user's course.
type CourseOverview struct {
	Lessons  []Lesson   `json:"lessons"`
	Progress []Progress `json:"progress"`
}
