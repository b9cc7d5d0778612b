// Package session is the client's persistence bridge. It keeps a small
// file-backed key/value store and mirrors a fixed set of authentication keys
// into a cookie file so a returning session can be rehydrated even when the
// primary store was wiped. It is the single source of the bearer token the
// HTTP client attaches to requests.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tavolo/ordering/internal/log"
)

const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry"
	KeyTokenType    = "token_type"
	KeyUserInfo     = "user_info"

	KeyBasketID      = "basket_id"
	KeyMenuFilter    = "menu_filter"
	KeyLoginAttempts = "login_attempts"
	KeyLoginBlock    = "login_block_expiry"
)

// mirroredKeys are duplicated into the cookie file on every write.
var mirroredKeys = []string{
	KeyToken,
	KeyRefreshToken,
	KeyTokenExpiry,
	KeyTokenType,
	KeyUserInfo,
}

type Store struct {
	mu      sync.Mutex
	path    string
	secure  bool
	values  map[string]string
	cookies *cookieFile
	now     func() time.Time
}

// Open loads the store from dir, creating it when absent. Mirrored keys still
// present in the cookie file but missing from the store are copied back in.
// secure marks mirrored cookies Secure, which callers derive from the API
// base URL scheme.
func Open(c context.Context, dir string, secure bool) (*Store, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "session Open").
		Str("dir", dir).
		Logger()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		err = fmt.Errorf("failed creating storage dir with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	s := &Store{
		path:   filepath.Join(dir, "session.json"),
		secure: secure,
		values: map[string]string{},
		now:    time.Now,
	}

	raw, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("failed reading session store with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.values); err != nil {
			err = fmt.Errorf("failed unmarshaling session store with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
	}

	s.cookies, err = openCookieFile(filepath.Join(dir, "cookies.json"), s.now())
	if err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	rehydrated := 0
	for _, key := range mirroredKeys {
		if _, ok := s.values[key]; ok {
			continue
		}
		if value, ok := s.cookies.get(key, s.now()); ok {
			s.values[key] = value
			rehydrated++
		}
	}
	if rehydrated > 0 {
		logger.Info().Msgf("rehydrated %d mirrored keys from cookies", rehydrated)
		if err := s.persistLocked(); err != nil {
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
	}
	logger.Trace().Msg("opened session store")
	return s, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *Store) Set(c context.Context, key, value string) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store Set").
		Str(log.KeyStorageKey, key).
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	if isMirrored(key) {
		s.cookies.set(key, value, s.now(), s.secure)
		if err := s.cookies.save(); err != nil {
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
	}
	if err := s.persistLocked(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("stored key")
	return nil
}

func (s *Store) Delete(c context.Context, key string) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store Delete").
		Str(log.KeyStorageKey, key).
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	if isMirrored(key) {
		s.cookies.delete(key)
		if err := s.cookies.save(); err != nil {
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
	}
	if err := s.persistLocked(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("deleted key")
	return nil
}

// Clear wipes every stored key and the mirrored cookies. Subsequent requests
// carry no Authorization header because Token reads from this store.
func (s *Store) Clear(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store Clear").
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = map[string]string{}
	for _, key := range mirroredKeys {
		s.cookies.delete(key)
	}
	if err := s.cookies.save(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if err := s.persistLocked(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("cleared session store")
	return nil
}

// ClearAuth removes only the mirrored authentication keys, from both the
// store and the cookie file. Basket id, favorites and filter selections
// survive a logout or an expired session.
func (s *Store) ClearAuth(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Store ClearAuth").
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range mirroredKeys {
		delete(s.values, key)
		s.cookies.delete(key)
	}
	if err := s.cookies.save(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if err := s.persistLocked(); err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("cleared authentication keys")
	return nil
}

// Token implements rest.TokenSource.
func (s *Store) Token() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[KeyTokenType], s.values[KeyToken]
}

func (s *Store) GetJSON(key string, out any) (bool, error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed unmarshaling key=%s with error=%w", key, err)
	}
	return true, nil
}

func (s *Store) SetJSON(c context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed marshaling key=%s with error=%w", key, err)
	}
	return s.Set(c, key, string(raw))
}

func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed marshaling session store with error=%w", err)
	}
	return writeFileAtomic(s.path, raw)
}

func isMirrored(key string) bool {
	for _, mirrored := range mirroredKeys {
		if key == mirrored {
			return true
		}
	}
	return false
}

// FavoritesKey scopes stored favorites to one user, keyed by email.
func FavoritesKey(email string) string {
	return "favorites:" + email
}
