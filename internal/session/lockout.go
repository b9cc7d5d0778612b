package session

import (
	"context"
	"strconv"
	"time"
)

const (
	MaxLoginAttempts = 5
	LockoutDuration  = 5 * time.Minute
)

// RecordLoginFailure bumps the failed-login counter. The fifth consecutive
// failure arms a lockout; the returned time is zero while unarmed. The
// counter lives in the store, so clearing the storage dir resets it.
func (s *Store) RecordLoginFailure(c context.Context) (attempts int, blockedUntil time.Time, err error) {
	raw, _ := s.Get(KeyLoginAttempts)
	attempts, _ = strconv.Atoi(raw)
	attempts++

	if err := s.Set(c, KeyLoginAttempts, strconv.Itoa(attempts)); err != nil {
		return 0, time.Time{}, err
	}
	if attempts < MaxLoginAttempts {
		return attempts, time.Time{}, nil
	}

	blockedUntil = s.now().Add(LockoutDuration)
	if err := s.Set(c, KeyLoginBlock, strconv.FormatInt(blockedUntil.Unix(), 10)); err != nil {
		return attempts, time.Time{}, err
	}
	return attempts, blockedUntil, nil
}

func (s *Store) ResetLoginAttempts(c context.Context) error {
	if err := s.Delete(c, KeyLoginAttempts); err != nil {
		return err
	}
	return s.Delete(c, KeyLoginBlock)
}

// LoginBlockRemaining reports how long the current lockout still holds.
// Zero means login is allowed. An expired block is cleaned up lazily on the
// next failure or reset.
func (s *Store) LoginBlockRemaining() time.Duration {
	raw, ok := s.Get(KeyLoginBlock)
	if !ok {
		return 0
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	remaining := time.Unix(unix, 0).Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
