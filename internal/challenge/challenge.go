// internal/challenge/challenge.go

// Package challenge runs the server-wide boss event: one summoned level
// that players attempt one at a time, judged against the boss criteria.
package challenge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/room"
)

var (
	// ErrNoBoss means no boss is currently summoned.
	ErrNoBoss = errors.New("challenge: no boss summoned")
	// ErrBossAlive means a boss is already up; it must fall or expire first.
	ErrBossAlive = errors.New("challenge: a boss is already summoned")
	// ErrAttemptInFlight means another player's attempt is running right now.
	ErrAttemptInFlight = errors.New("challenge: another attempt is in flight")
	// ErrIdentityUnbound means the player has no bound account to verify with.
	ErrIdentityUnbound = errors.New("challenge: player identity not bound")
)

// Boss is the summoned challenge: a single level, chart and goal.
type Boss struct {
	Level      *cytoid.Level
	ChartIndex int
	Criteria   room.Criteria
	SummonedAt time.Time
	ExpiresAt  time.Time
}

// Chart is the chart the boss is fought on.
func (b *Boss) Chart() cytoid.Chart { return b.Level.Charts[b.ChartIndex] }

// Attempt is one finished run at the boss. Record is nil when no valid
// play was found inside the attempt window.
type Attempt struct {
	ID       string
	User     models.User
	CytoidID string
	Record   *cytoid.ScoreRecord
	Passed   bool
	When     time.Time
}

// Deps wires the host's collaborators. The timing fields mirror the room
// package so tests can run attempts in milliseconds.
type Deps struct {
	Scores     room.ScoreProvider
	Identities room.IdentityResolver
	Log        *logrus.Logger

	GraceWindow time.Duration
	TimeScale   time.Duration
	// Lifetime is how long a summoned boss stays up. Default 24h.
	Lifetime time.Duration
}

func (d *Deps) applyDefaults() {
	if d.Log == nil {
		d.Log = logrus.New()
	}
	if d.GraceWindow == 0 {
		d.GraceWindow = 2 * time.Minute
	}
	if d.TimeScale == 0 {
		d.TimeScale = time.Second
	}
	if d.Lifetime == 0 {
		d.Lifetime = 24 * time.Hour
	}
}

// Host owns the single boss slot and the single in-flight attempt slot.
// Attempts are serialized: a second challenger is turned away rather than
// queued, matching how the fight is announced in chat.
type Host struct {
	deps Deps

	mu       sync.Mutex
	boss     *Boss
	attempts []Attempt
	inFlight string // user id holding the attempt slot, "" when free
}

func NewHost(deps Deps) *Host {
	deps.applyDefaults()
	return &Host{deps: deps}
}

// Summon raises a new boss. Fails while one is still alive.
func (h *Host) Summon(level *cytoid.Level, chartIndex int, crit room.Criteria) (*Boss, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.aliveLocked() {
		return nil, ErrBossAlive
	}
	now := time.Now()
	h.boss = &Boss{
		Level:      level,
		ChartIndex: chartIndex,
		Criteria:   crit,
		SummonedAt: now,
		ExpiresAt:  now.Add(h.deps.Lifetime),
	}
	h.attempts = nil
	h.deps.Log.WithFields(logrus.Fields{
		"level": level.UID, "goal": crit.String(),
	}).Info("challenge: boss summoned")
	return h.boss, nil
}

// aliveLocked lazily clears an expired boss. Caller holds h.mu.
func (h *Host) aliveLocked() bool {
	if h.boss == nil {
		return false
	}
	if time.Now().After(h.boss.ExpiresAt) {
		h.boss = nil
		h.inFlight = ""
		return false
	}
	return true
}

// Alive reports whether a boss is currently up.
func (h *Host) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aliveLocked()
}

// Current returns the live boss, if any.
func (h *Host) Current() (*Boss, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.aliveLocked() {
		return nil, false
	}
	return h.boss, true
}

// Expire takes the boss down early. Reports whether one was up.
func (h *Host) Expire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.aliveLocked() {
		return false
	}
	h.boss = nil
	h.inFlight = ""
	h.deps.Log.Info("challenge: boss expired")
	return true
}

// AttemptInFlight reports whether someone is fighting the boss right now.
func (h *Host) AttemptInFlight() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inFlight != ""
}

// Attempts returns every finished attempt at the current boss.
func (h *Host) Attempts() []Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Attempt(nil), h.attempts...)
}

// Leaderboard returns the passed attempts, best judged value first.
func (h *Host) Leaderboard() []Attempt {
	h.mu.Lock()
	var passed []Attempt
	var crit room.Criteria
	if h.aliveLocked() {
		crit = h.boss.Criteria
	}
	for _, a := range h.attempts {
		if a.Passed {
			passed = append(passed, a)
		}
	}
	h.mu.Unlock()

	sort.SliceStable(passed, func(i, j int) bool {
		return crit.Condition.Extract(passed[i].Record) > crit.Condition.Extract(passed[j].Record)
	})
	return passed
}

// BeginAttempt runs one complete attempt: it claims the in-flight slot,
// waits out the play window, verifies the player's most recent play against
// the boss, records the outcome and frees the slot. The boss stays up
// whatever the outcome. The returned Attempt carries the verdict.
func (h *Host) BeginAttempt(ctx context.Context, user models.User) (Attempt, error) {
	cytoidID := h.deps.Identities.CytoidID(user.ID)
	if cytoidID == "" {
		return Attempt{}, ErrIdentityUnbound
	}

	h.mu.Lock()
	if !h.aliveLocked() {
		h.mu.Unlock()
		return Attempt{}, ErrNoBoss
	}
	if h.inFlight != "" {
		h.mu.Unlock()
		return Attempt{}, ErrAttemptInFlight
	}
	h.inFlight = user.ID
	boss := h.boss
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.inFlight == user.ID {
			h.inFlight = ""
		}
		h.mu.Unlock()
	}()

	window := time.Duration(boss.Level.Duration*float64(h.deps.TimeScale)) + h.deps.GraceWindow
	start := time.Now()
	select {
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	case <-time.After(window):
	}

	attempt := Attempt{ID: uuid.NewString(), User: user, CytoidID: cytoidID, When: time.Now()}
	rec, err := h.deps.Scores.GetMostRecentPlay(ctx, cytoidID)
	switch {
	case err != nil:
		h.deps.Log.WithError(err).WithField("player", cytoidID).Warn("challenge: score lookup failed")
	case !room.InWindow(rec.Date, start, window):
	case rec.LevelUID != boss.Level.UID || rec.ChartType != boss.Chart().Type:
	default:
		attempt.Record = rec
		attempt.Passed = boss.Criteria.Satisfied(rec)
	}

	h.mu.Lock()
	if h.boss == boss { // boss may have been expired mid-attempt
		h.attempts = append(h.attempts, attempt)
	}
	h.mu.Unlock()

	return attempt, nil
}
