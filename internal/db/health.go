package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emandor/course_service/internal/telemetry"
)

// InitError describes why the store is not usable.
type InitError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// Health tracks whether the store can serve requests. It starts down and
// comes up on the first successful ping. Without a pool it stays down.
type Health struct {
	db    pinger
	cause error // why there is no pool
	up    atomic.Bool

	mu  sync.RWMutex
	err *InitError
}

func NewHealth(db *sqlx.DB, initErr error) *Health {
	h := &Health{}
	switch {
	case initErr != nil:
		h.cause = initErr
		h.setDown("database initialization", initErr.Error())
	case db == nil:
		h.cause = ErrNoDSN
		h.setDown("database initialization", ErrNoDSN.Error())
	default:
		h.db = db
		h.setDown("database connection", "not checked yet")
	}
	return h
}

func (h *Health) Available() bool { return h.up.Load() }

// Err reports the last failure, or nil while the store is available.
func (h *Health) Err() *InitError {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Check pings the pool once and updates the availability flag.
func (h *Health) Check(ctx context.Context) error {
	if h.db == nil {
		return h.cause
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		if h.up.Load() {
			telemetry.L().Error().Err(err).Msg("db_unavailable")
		}
		h.setDown("database ping", err.Error())
		return err
	}
	if !h.up.Load() {
		telemetry.L().Info().Msg("db_available")
	}
	h.mu.Lock()
	h.err = nil
	h.mu.Unlock()
	h.up.Store(true)
	return nil
}

// Watch pings every interval until ctx is done.
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	if h.db == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = h.Check(ctx)
		}
	}
}

func (h *Health) setDown(step, msg string) {
	h.mu.Lock()
	h.err = &InitError{Step: step, Message: msg}
	h.mu.Unlock()
	h.up.Store(false)
}
