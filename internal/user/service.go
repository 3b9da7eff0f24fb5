// Package user maps Google identities onto local user rows.
package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/metrics"
	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/store"
	"github.com/emandor/course_service/internal/telemetry"
)

const fallbackName = "Google user"

// Store is the persistence the provisioner needs. *store.Users satisfies it.
type Store interface {
	UpsertByGoogleID(ctx context.Context, u *model.User) (*model.User, bool, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type Provisioner struct {
	store   Store
	metrics *metrics.Collector
}

func NewProvisioner(s Store, m *metrics.Collector) *Provisioner {
	return &Provisioner{store: s, metrics: m}
}

// Provision returns the single user row for p.Subject, creating it on first
// sight. An existing row is returned as stored; later profile changes are
// not copied over.
func (p *Provisioner) Provision(ctx context.Context, prof model.Profile) (*model.User, bool, error) {
	const op = "user.provision"

	u, err := normalize(prof)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	out, created, err := p.store.UpsertByGoogleID(ctx, u)
	p.metrics.ObserveStore("users.upsert", time.Since(start))
	if err != nil {
		return nil, false, apperr.Storage(op, err)
	}

	p.metrics.Provisioned(created)
	if created {
		telemetry.L().Info().Int64("user_id", out.ID).Str("google_id", out.GoogleID).Msg("user_created")
	}
	return out, created, nil
}

func (p *Provisioner) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := p.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user.get", "user not found")
		}
		return nil, apperr.Storage("user.get", err)
	}
	return u, nil
}

func normalize(p model.Profile) (*model.User, error) {
	sub := strings.TrimSpace(p.Subject)
	if sub == "" {
		return nil, apperr.Validation("user.provision", "missing provider identity")
	}
	email := strings.TrimSpace(p.Email)
	name := strings.TrimSpace(p.Name)
	switch {
	case name != "":
	case email != "":
		name = email
	default:
		name = fallbackName
	}
	return &model.User{
		Username:  name,
		Email:     nullable(email),
		GoogleID:  sub,
		AvatarURL: nullable(strings.TrimSpace(p.AvatarURL)),
	}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
