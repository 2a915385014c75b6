package vaba

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	tokenLength   = 26
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// loginFunc performs the login exchange for a candidate session key.
type loginFunc func(ctx context.Context, key string) error

// session owns the cached token for one client instance. The portal never
// issues tokens itself: the random key submitted at login becomes the token
// once the server confirms the credentials.
type session struct {
	login  loginFunc
	logger zerolog.Logger

	mu    sync.Mutex
	token string

	group singleflight.Group

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newSession(login loginFunc, logger zerolog.Logger) *session {
	return &session{
		login:  login,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Token returns the cached session token, performing a login exchange first
// if none is held. Concurrent callers share a single in-flight login, and
// the value returned is the value left in the cache.
func (s *session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	value, err, _ := s.group.Do("login", func() (interface{}, error) {
		key := s.newKey()
		if err := s.login(ctx, key); err != nil {
			return "", err
		}

		s.mu.Lock()
		s.token = key
		s.mu.Unlock()

		s.logger.Debug().Msg("Obtained new session token")
		return key, nil
	})
	if err != nil {
		return "", err
	}

	return value.(string), nil
}

// Invalidate drops the cached token so the next Token call re-authenticates.
// The token the failed request carried is passed in: if the cache has moved
// on to a fresher token in the meantime, a slow failing operation must not
// discard it.
func (s *session) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == token {
		s.token = ""
		s.logger.Debug().Msg("Invalidated session token")
	}
}

// newKey generates the random uppercase-alphanumeric candidate key the
// portal echoes back as the session token.
func (s *session) newKey() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	key := make([]byte, tokenLength)
	for i := range key {
		key[i] = tokenAlphabet[s.rng.Intn(len(tokenAlphabet))]
	}
	return string(key)
}
