// internal/config/store.go
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSaveInterval is how often AutoSave flushes to disk.
const DefaultSaveInterval = 10 * time.Minute

// ErrInsufficientTokens is returned by TransferTokens when the sender's
// balance cannot cover the amount.
var ErrInsufficientTokens = errors.New("config: insufficient tokens")

// Store holds the user and guild banks in memory and flushes them to two
// flat JSON files. Every read and write goes through the store's lock:
// lookups return copies, and all mutations run inside UpdateUser or
// UpdateGuild so nothing touches a record while SaveAll marshals it.
type Store struct {
	mu        sync.RWMutex
	userPath  string
	guildPath string
	users     map[string]*UserConfig
	guilds    map[string]*GuildConfig
	log       *logrus.Logger
}

// NewStore builds a Store over the two JSON files. Call LoadAll before use.
func NewStore(userPath, guildPath string, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		userPath:  userPath,
		guildPath: guildPath,
		users:     make(map[string]*UserConfig),
		guilds:    make(map[string]*GuildConfig),
		log:       log,
	}
}

// LoadAll reads both banks from disk. Missing files are created empty.
func (s *Store) LoadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadBank(s.userPath, &s.users); err != nil {
		return fmt.Errorf("load user bank: %w", err)
	}
	if err := loadBank(s.guildPath, &s.guilds); err != nil {
		return fmt.Errorf("load guild bank: %w", err)
	}
	return nil
}

// SaveAll writes both banks to disk.
func (s *Store) SaveAll() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := saveBank(s.userPath, s.users); err != nil {
		return fmt.Errorf("save user bank: %w", err)
	}
	if err := saveBank(s.guildPath, s.guilds); err != nil {
		return fmt.Errorf("save guild bank: %w", err)
	}
	return nil
}

func loadBank[T any](path string, dst *map[string]*T) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		return f.Close()
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	loaded := make(map[string]*T)
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return err
	}
	*dst = loaded
	return nil
}

func saveBank[T any](path string, bank map[string]*T) error {
	raw, err := json.Marshal(bank)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// userLocked returns the live record for a user id, creating it on miss.
// Callers must hold the write lock.
func (s *Store) userLocked(id string) *UserConfig {
	u, ok := s.users[id]
	if !ok {
		u = &UserConfig{Status: StatusUser}
		s.users[id] = u
	}
	return u
}

// guildLocked returns the live record for a guild id, creating it on miss.
// Callers must hold the write lock.
func (s *Store) guildLocked(id string) *GuildConfig {
	g, ok := s.guilds[id]
	if !ok {
		g = &GuildConfig{BannedChannels: make(map[string]bool)}
		s.guilds[id] = g
	}
	return g
}

// GetUser returns a copy of the record for a platform user id, creating the
// record on miss. Mutate through UpdateUser, not the copy.
func (s *Store) GetUser(id string) UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.userLocked(id)
}

// GetGuild returns a copy of the record for a guild id, creating the record
// on miss. Mutate through UpdateGuild, not the copy.
func (s *Store) GetGuild(id string) GuildConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := *s.guildLocked(id)
	banned := make(map[string]bool, len(g.BannedChannels))
	for ch, v := range g.BannedChannels {
		banned[ch] = v
	}
	g.BannedChannels = banned
	return g
}

// UpdateUser runs fn against the live record for a user id under the
// store's lock, creating the record on miss.
func (s *Store) UpdateUser(id string, fn func(*UserConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.userLocked(id))
}

// UpdateGuild runs fn against the live record for a guild id under the
// store's lock, creating the record on miss.
func (s *Store) UpdateGuild(id string, fn func(*GuildConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.guildLocked(id))
}

// TransferTokens moves amount tokens from one user to another in a single
// locked step. The sender's balance must cover the amount.
func (s *Store) TransferTokens(fromID, toID string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.userLocked(fromID)
	to := s.userLocked(toID)
	if from.Tokens < amount {
		return ErrInsufficientTokens
	}
	from.Tokens -= amount
	to.Tokens += amount
	return nil
}

// UserCount reports how many user records exist.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// GuildCount reports how many guild records exist.
func (s *Store) GuildCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guilds)
}

// CytoidID reports the external-service id bound to a platform user, or ""
// when unbound. Satisfies the room package's identity resolver.
func (s *Store) CytoidID(platformUserID string) string {
	return s.GetUser(platformUserID).CytoidID
}

// AutoSave flushes both banks every interval until ctx is cancelled. Run it
// on its own goroutine.
func (s *Store) AutoSave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.SaveAll(); err != nil {
				s.log.WithError(err).Error("config: final save failed")
			}
			return
		case <-ticker.C:
			if err := s.SaveAll(); err != nil {
				s.log.WithError(err).Error("config: periodic save failed")
			}
		}
	}
}
