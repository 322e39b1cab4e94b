// internal/config/config.go

// Package config persists per-user and per-guild settings as flat JSON
// dictionaries keyed by platform id, with a periodic auto-save.
package config

import (
	"time"
)

// Status is a user's privilege tier.
type Status int

const (
	StatusOwner Status = iota
	StatusAdministrator
	StatusUser
	StatusBanned
)

func (s Status) String() string {
	switch s {
	case StatusOwner:
		return "Owner"
	case StatusAdministrator:
		return "Administrator"
	case StatusUser:
		return "User"
	case StatusBanned:
		return "Banned"
	}
	return "Unknown"
}

// UserConfig is the per-user record. LastQueryDate remembers the newest play
// that was already rewarded so the same play never pays out twice.
type UserConfig struct {
	Status        Status    `json:"status"`
	Tokens        uint64    `json:"tokens"`
	CytoidID      string    `json:"cytoidId"`
	LastQueryDate time.Time `json:"lastQueryDate"`
}

// AddTokens credits the balance and returns the amount actually added.
func (u *UserConfig) AddTokens(amount uint64) uint64 {
	before := u.Tokens
	u.Tokens += amount
	return u.Tokens - before
}

// GuildConfig is the per-guild record.
type GuildConfig struct {
	// BannedChannels lists channels the bot must not process messages in.
	BannedChannels map[string]bool `json:"bannedChannels"`
}
