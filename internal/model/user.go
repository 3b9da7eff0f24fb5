package model

import (
	"database/sql"
	"time"
)

// User is a local account bound to exactly one Google identity.
type User struct {
	ID        int64          `db:"id"`
	Username  string         `db:"username"`
	Email     sql.NullString `db:"email"`
	GoogleID  string         `db:"google_id"`
	AvatarURL sql.NullString `db:"avatar_url"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// UserView is the JSON shape returned to clients.
type UserView struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	GoogleID  string  `json:"googleId"`
	AvatarURL *string `json:"avatarUrl"`
}

func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     nullable(u.Email),
		GoogleID:  u.GoogleID,
		AvatarURL: nullable(u.AvatarURL),
	}
}

// Profile is the normalized identity returned by the provider's userinfo
// endpoint.
type Profile struct {
	Subject   string
	Name      string
	Email     string
	AvatarURL string
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
