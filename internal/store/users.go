package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/course_service/internal/model"
)

type Users struct{ db *sqlx.DB }

func NewUsers(db *sqlx.DB) *Users { return &Users{db: db} }

const userColumns = `id, username, email, google_id, avatar_url, created_at, updated_at`

// UpsertByGoogleID inserts u unless a row with the same google_id exists, in
// which case the existing row is returned untouched. The single statement
// relies on uq_users_google_id, so concurrent first logins converge on one row.
func (s *Users) UpsertByGoogleID(ctx context.Context, u *model.User) (*model.User, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, google_id, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			-- no column changes; makes LastInsertId() return the existing id
			id = LAST_INSERT_ID(id)
	`, u.Username, u.Email, u.GoogleID, u.AvatarURL)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}

	// 1 = inserted, 0 = duplicate left unchanged
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("upsert user rows affected: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var found model.User
		if e := s.db.GetContext(ctx, &found, `SELECT `+userColumns+` FROM users WHERE google_id = ? LIMIT 1`, u.GoogleID); e != nil {
			return nil, false, fmt.Errorf("fetch user by google id: %w", notFound(e))
		}
		return &found, affected == 1, nil
	}

	out, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return out, affected == 1, nil
}

func (s *Users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id); err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, notFound(err))
	}
	return &u, nil
}
