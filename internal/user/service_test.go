package user

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/course_service/internal/apperr"
	"github.com/emandor/course_service/internal/model"
	"github.com/emandor/course_service/internal/store"
)

// memStore mimics the unique google_id constraint.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.User
	err    error
}

func newMemStore() *memStore {
	return &memStore{byID: map[int64]*model.User{}}
}

func (m *memStore) UpsertByGoogleID(_ context.Context, u *model.User) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	for _, existing := range m.byID {
		if existing.GoogleID == u.GoogleID {
			cp := *existing
			return &cp, false, nil
		}
	}
	m.nextID++
	row := *u
	row.ID = m.nextID
	m.byID[row.ID] = &row
	cp := row
	return &cp, true, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func TestProvisionCreatesThenReuses(t *testing.T) {
	s := newMemStore()
	p := NewProvisioner(s, nil)
	ctx := context.Background()

	u, created, err := p.Provision(ctx, model.Profile{Subject: "g-1001", Name: "Ana", Email: "ana@x.io"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Ana", u.Username)
	assert.Equal(t, "ana@x.io", u.Email.String)

	again, created, err := p.Provision(ctx, model.Profile{Subject: "g-1001", Name: "Ana Renamed"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Ana", again.Username, "existing row must not be overwritten")
	assert.Len(t, s.byID, 1)
}

func TestProvisionConcurrentFirstLogin(t *testing.T) {
	s := newMemStore()
	p := NewProvisioner(s, nil)

	const n = 16
	ids := make([]int64, n)
	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, c, err := p.Provision(context.Background(), model.Profile{Subject: "g-2002", Name: "Bo"})
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = u.ID
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, s.byID, 1)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       model.Profile
		username string
		email    bool
		avatar   bool
	}{
		{"full", model.Profile{Subject: "s", Name: " Ana ", Email: "a@x.io", AvatarURL: "https://img"}, "Ana", true, true},
		{"email as name", model.Profile{Subject: "s", Email: "a@x.io"}, "a@x.io", true, false},
		{"nothing", model.Profile{Subject: "s", Name: "  "}, fallbackName, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.username, u.Username)
			assert.Equal(t, tc.email, u.Email.Valid)
			assert.Equal(t, tc.avatar, u.AvatarURL.Valid)
		})
	}
}

func TestProvisionRejectsEmptySubject(t *testing.T) {
	s := newMemStore()
	_, _, err := NewProvisioner(s, nil).Provision(context.Background(), model.Profile{Subject: "   ", Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, s.byID)
}

func TestProvisionStorageFailure(t *testing.T) {
	s := newMemStore()
	s.err = errors.New("connection refused")
	_, _, err := NewProvisioner(s, nil).Provision(context.Background(), model.Profile{Subject: "g-1"})
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestGet(t *testing.T) {
	s := newMemStore()
	p := NewProvisioner(s, nil)
	u, _, err := p.Provision(context.Background(), model.Profile{Subject: "g-1", Name: "Ana"})
	require.NoError(t, err)

	got, err := p.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Username)

	_, err = p.Get(context.Background(), 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
