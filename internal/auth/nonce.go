package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/emandor/course_service/internal/cache"
)

// 32 bytes = 256 bits per secret.
const secretBytes = 32

// clock skew tolerated on a state's issue time
const stateSkew = time.Minute

var (
	errStateMalformed = errors.New("state is malformed")
	errStateExpired   = errors.New("state expired")
	errStateReplayed  = errors.New("state already used")
)

func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newState returns "<secret>.<unix seconds>". The cookie that carries it is
// encrypted, so the issue time cannot be rewritten by the client.
func newState(now time.Time) (string, error) {
	s, err := newSecret()
	if err != nil {
		return "", err
	}
	return s + "." + strconv.FormatInt(now.Unix(), 10), nil
}

func stateIssuedAt(state string) (time.Time, error) {
	i := strings.LastIndexByte(state, '.')
	if i <= 0 || i == len(state)-1 {
		return time.Time{}, errStateMalformed
	}
	sec, err := strconv.ParseInt(state[i+1:], 10, 64)
	if err != nil {
		return time.Time{}, errStateMalformed
	}
	return time.Unix(sec, 0), nil
}

func checkStateAge(state string, now time.Time, ttl time.Duration) error {
	issued, err := stateIssuedAt(state)
	if err != nil {
		return err
	}
	if issued.After(now.Add(stateSkew)) || now.Sub(issued) > ttl {
		return errStateExpired
	}
	return nil
}

// NonceLedger remembers consumed states until they would have expired anyway.
type NonceLedger struct {
	kv  cache.Store
	ttl time.Duration
}

func NewNonceLedger(kv cache.Store, ttl time.Duration) *NonceLedger {
	return &NonceLedger{kv: kv, ttl: ttl}
}

// Consume marks state as used. It returns errStateReplayed when the state was
// consumed before.
func (l *NonceLedger) Consume(ctx context.Context, state string) error {
	sum := sha256.Sum256([]byte(state))
	ok, err := l.kv.SetNX(ctx, "oauth:used:"+hex.EncodeToString(sum[:]), "1", l.ttl+stateSkew)
	if err != nil {
		return err
	}
	if !ok {
		return errStateReplayed
	}
	return nil
}
