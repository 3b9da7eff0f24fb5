package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local Store. Only suitable when a single API instance
// runs, since consumed nonces are not visible to other processes.
type Memory struct{ c *gocache.Cache }

func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := m.c.Add(key, value, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
