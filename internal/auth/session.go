package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/emandor/course_service/internal/cache"
)

// Sessions maps opaque session ids to user ids.
type Sessions struct {
	kv  cache.Store
	ttl time.Duration
}

func NewSessions(kv cache.Store, ttl time.Duration) *Sessions {
	return &Sessions{kv: kv, ttl: ttl}
}

func (s *Sessions) Create(ctx context.Context, userID int64) (string, error) {
	sid, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, "sess:"+sid, strconv.FormatInt(userID, 10), s.ttl); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *Sessions) Lookup(ctx context.Context, sid string) (int64, bool, error) {
	v, ok, err := s.kv.Get(ctx, "sess:"+sid)
	if err != nil || !ok {
		return 0, false, err
	}
	uid, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return uid, true, nil
}

func (s *Sessions) Delete(ctx context.Context, sid string) error {
	return s.kv.Del(ctx, "sess:"+sid)
}
