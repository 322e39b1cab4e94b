// internal/room/room.go

// Package room implements the matchmaking core: four room variants over a
// shared capability interface, the registry that owns cross-room
// invariants, and the timed round verification pipeline.
package room

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
)

// ErrAlreadyStarted is returned by Start when a round is already running.
var ErrAlreadyStarted = errors.New("room: already started")

// Kind discriminates the closed set of room variants.
type Kind int

const (
	KindSingle Kind = iota
	KindPlaylist
	KindChallenge
	KindGauntlet
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "Singular"
	case KindPlaylist:
		return "Playlist"
	case KindChallenge:
		return "Challenge"
	case KindGauntlet:
		return "Gauntlet"
	}
	return "Unknown"
}

// JoinResult reports the outcome of a join attempt. Declines are results,
// not errors; the caller relays the message and moves on.
type JoinResult int

const (
	Joined JoinResult = iota
	JoinRoomFull
	JoinIdentityUnbound
	JoinAlreadyInRoom
)

// Message is the user-facing text for a join outcome.
func (j JoinResult) Message() string {
	switch j {
	case Joined:
		return "Successfully joined room!"
	case JoinRoomFull:
		return "This room is already full!"
	case JoinIdentityUnbound:
		return "You'll have to bind your id first!"
	case JoinAlreadyInRoom:
		return "You're already in another room!"
	}
	return "Unable to join this room."
}

// ScoreProvider is the slice of the scoring service the round loop needs.
type ScoreProvider interface {
	GetMostRecentPlay(ctx context.Context, cytoidID string) (*cytoid.ScoreRecord, error)
}

// IdentityResolver reports the external-service id bound to a platform
// user, or "" when unbound.
type IdentityResolver interface {
	CytoidID(platformUserID string) string
}

// Deps carries every collaborator a room needs. The timing fields exist so
// tests can run whole rounds in milliseconds; production uses the defaults.
type Deps struct {
	Registry   *Registry
	Messenger  messaging.Messenger
	Dialog     dialog.Session
	Scores     ScoreProvider
	Identities IdentityResolver
	Log        *logrus.Logger

	// GraceWindow is added to the level duration to form a round's window.
	GraceWindow time.Duration
	// VerifyDelay throttles successive score lookups during verification.
	VerifyDelay time.Duration
	// StartLead is the pause before round one of a queue room.
	StartLead time.Duration
	// TimeScale converts a level's duration in seconds to wall time. Tests
	// shrink it; production leaves it at time.Second.
	TimeScale time.Duration
}

func (d *Deps) applyDefaults() {
	if d.Log == nil {
		d.Log = logrus.New()
	}
	if d.GraceWindow == 0 {
		d.GraceWindow = 2 * time.Minute
	}
	if d.VerifyDelay == 0 {
		d.VerifyDelay = 500 * time.Millisecond
	}
	if d.StartLead == 0 {
		d.StartLead = 3 * time.Second
	}
	if d.TimeScale == 0 {
		d.TimeScale = time.Second
	}
}

// Host identifies the creating user and the channel they created from.
type Host struct {
	User      models.User
	ChannelID string
}

// Info is a read-only projection of a room for display. Pointer fields are
// nil when the variant has nothing bound (an empty queue, no criteria).
type Info struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	Players     int
	MinPlayers  int
	MaxPlayers  int
	Started     bool
	Level       *cytoid.Level
	Chart       *cytoid.Chart
	Criteria    *Criteria
	QueueLength int
	FreeEnqueue *bool
}

// Room is the capability surface every variant implements.
type Room interface {
	ID() string
	Kind() Kind
	Name() string
	Description() string
	Host() models.User
	Players() []models.User
	Channels() []string
	Started() bool

	SetAnnouncementChannel(channelID string)

	// Join adds a user arriving from channelID, or declines.
	Join(ctx context.Context, user models.User, channelID string) JoinResult
	// Leave removes a user; reports whether they were present.
	Leave(user models.User) bool
	// Configure applies one named setting; invalid input leaves state unchanged.
	Configure(field, value string) error
	// Start runs the room's round loop to completion. It rejects re-entry.
	Start(ctx context.Context) error
	// Information projects current state for display.
	Information() Info
	// Dispose broadcasts a farewell, clears the room and leaves the registry.
	Dispose(ctx context.Context)
}

// base carries the state and behavior every variant shares. The self field
// points at the enclosing variant so shared flows (the host's begin/dispose
// prompt) dispatch to the variant's Start and Dispose.
type base struct {
	id   string
	kind Kind
	deps Deps
	self Room

	mu                  sync.Mutex
	name                string
	description         string
	host                models.User
	hostChannel         string
	announcementChannel string
	players             []models.User
	channels            []string
	minPlayers          int
	maxPlayers          int
	started             bool
}

func newBase(kind Kind, name string, host models.User, hostChannel string, deps Deps) base {
	deps.applyDefaults()
	return base{
		id:          uuid.NewString(),
		kind:        kind,
		deps:        deps,
		name:        name,
		description: "Join my game!",
		host:        host,
		hostChannel: hostChannel,
		minPlayers:  2,
		maxPlayers:  8,
	}
}

func (b *base) ID() string        { return b.id }
func (b *base) Kind() Kind        { return b.kind }
func (b *base) Host() models.User { return b.host }

func (b *base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *base) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

func (b *base) Players() []models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.User(nil), b.players...)
}

func (b *base) Channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.channels...)
}

func (b *base) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *base) SetAnnouncementChannel(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announcementChannel = channelID
}

// Join implements the shared admission checks. The membership-exclusivity
// claim goes through the registry so two rooms can never admit the same
// user, even concurrently.
func (b *base) Join(ctx context.Context, user models.User, channelID string) JoinResult {
	b.mu.Lock()
	full := len(b.players) >= b.maxPlayers
	b.mu.Unlock()
	if full {
		return JoinRoomFull
	}
	if b.deps.Identities.CytoidID(user.ID) == "" {
		return JoinIdentityUnbound
	}
	if err := b.deps.Registry.ClaimPlayer(user.ID, b.id); err != nil {
		return JoinAlreadyInRoom
	}

	b.mu.Lock()
	if len(b.players) >= b.maxPlayers {
		b.mu.Unlock()
		b.deps.Registry.ReleasePlayer(user.ID)
		return JoinRoomFull
	}
	b.players = append(b.players, user)
	if channelID != "" && !contains(b.channels, channelID) {
		b.channels = append(b.channels, channelID)
	}
	reachedMinimum := len(b.players) == b.minPlayers
	b.mu.Unlock()

	b.deps.Log.WithFields(logrus.Fields{"room": b.id, "user": user.ID}).Info("room: player joined")

	if reachedMinimum {
		go b.offerStart(context.WithoutCancel(ctx))
	}
	return Joined
}

// offerStart asks the host whether to begin or dispose once the roster
// reaches the minimum. A timeout takes no action.
func (b *base) offerStart(ctx context.Context) {
	choice, err := b.deps.Dialog.PresentChoices(ctx, b.host,
		"Minimum requirement has been reached! You may start the match at any moment.",
		[]dialog.Choice{
			{ID: "match_begin", Label: "Begin match!"},
			{ID: "match_dispose", Label: "Dispose"},
		})
	if err != nil {
		if !errors.Is(err, dialog.ErrTimedOut) {
			b.deps.Log.WithError(err).WithField("room", b.id).Warn("room: start prompt failed")
		}
		return
	}

	switch choice.ID {
	case "match_begin":
		if err := b.self.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
			b.deps.Log.WithError(err).WithField("room", b.id).Error("room: round loop failed")
		}
	case "match_dispose":
		if !b.Started() {
			b.self.Dispose(ctx)
		}
	}
}

// Leave removes a user from the roster; a no-op when absent.
func (b *base) Leave(user models.User) bool {
	b.mu.Lock()
	removed := false
	for i, p := range b.players {
		if p.ID == user.ID {
			b.players = append(b.players[:i], b.players[i+1:]...)
			removed = true
			break
		}
	}
	b.mu.Unlock()

	if removed {
		b.deps.Registry.ReleasePlayer(user.ID)
	}
	return removed
}

// Configure applies the settings every variant shares. Queue rooms wrap
// this with their extra fields.
func (b *base) Configure(field, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch field {
	case "name":
		b.name = value
	case "description":
		b.description = value
	case "max_players":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%q is not a valid number", value)
		}
		if n < b.minPlayers {
			return fmt.Errorf("max player count must be greater than (or equal to) the minimum (%d)", b.minPlayers)
		}
		b.maxPlayers = n
	case "min_players":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%q is not a valid number", value)
		}
		if n > b.maxPlayers {
			return fmt.Errorf("min player count must be less than (or equal to) the maximum (%d)", b.maxPlayers)
		}
		b.minPlayers = n
	default:
		return fmt.Errorf("unknown setting %q", field)
	}
	return nil
}

// Dispose broadcasts a farewell, clears roster and channels, releases every
// membership claim and removes the room from the registry.
func (b *base) Dispose(ctx context.Context) {
	b.mu.Lock()
	name := b.name
	players := b.players
	channels := append([]string(nil), b.channels...)
	announcement := b.announcementChannel
	b.players = nil
	b.channels = nil
	b.mu.Unlock()

	messaging.MessageAll(ctx, b.deps.Messenger, announcement, channels, messaging.Text(
		fmt.Sprintf("%s - Thank you for playing!\nThis room will now be removed from the lobby, players will be removed from the room automatically.", name)))

	for _, p := range players {
		b.deps.Registry.ReleasePlayer(p.ID)
	}
	b.deps.Registry.Remove(b.id)
}

// markStarted transitions Open -> Started, rejecting re-entry.
func (b *base) markStarted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	return nil
}

// reopen returns a queue room to the Open state after its queue drains.
func (b *base) reopen() {
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()
}

// roundWindow is a level's play time plus the grace window.
func (b *base) roundWindow(level *cytoid.Level) time.Duration {
	return time.Duration(level.Duration*float64(b.deps.TimeScale)) + b.deps.GraceWindow
}

// sleep waits for d or until ctx is cancelled.
func (b *base) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// broadcast fans a message out to the room's channels.
func (b *base) broadcast(ctx context.Context, m messaging.Message) {
	b.mu.Lock()
	announcement := b.announcementChannel
	channels := append([]string(nil), b.channels...)
	b.mu.Unlock()
	messaging.MessageAll(ctx, b.deps.Messenger, announcement, channels, m)
}

func (b *base) baseInfo() Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Info{
		ID:          b.id,
		Kind:        b.kind,
		Name:        b.name,
		Description: b.description,
		Players:     len(b.players),
		MinPlayers:  b.minPlayers,
		MaxPlayers:  b.maxPlayers,
		Started:     b.started,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
