// internal/command/command_test.go

package command

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okimu/okimu/internal/challenge"
	"github.com/okimu/okimu/internal/config"
	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/protocol"
	"github.com/okimu/okimu/internal/room"
)

// fakeProvider serves canned scoring-service data.
type fakeProvider struct {
	levels   map[string]*cytoid.Level
	profiles map[string]*cytoid.Profile
	recent   map[string]*cytoid.ScoreRecord
}

func (f *fakeProvider) GetLevel(_ context.Context, uid string) (*cytoid.Level, error) {
	if lv, ok := f.levels[uid]; ok {
		return lv, nil
	}
	return nil, cytoid.ErrLevelNotFound
}

func (f *fakeProvider) GetProfile(_ context.Context, id string) (*cytoid.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, cytoid.ErrProfileNotFound
}

func (f *fakeProvider) GetLeaderboard(_ context.Context, levelUID, chartType string) ([]cytoid.LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeProvider) GetMostRecentPlay(_ context.Context, id string) (*cytoid.ScoreRecord, error) {
	if rec, ok := f.recent[id]; ok {
		return rec, nil
	}
	return nil, cytoid.ErrNoRecentPlay
}

func (f *fakeProvider) SearchLevels(_ context.Context, _ string) ([]cytoid.LevelSummary, error) {
	return nil, nil
}

type fixture struct {
	router   *Router
	rec      *messaging.Recorder
	store    *config.Store
	registry *room.Registry
	boss     *challenge.Host
	provider *fakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "users.json"), filepath.Join(dir, "guilds.json"), nil)
	require.NoError(t, store.LoadAll())

	rec := messaging.NewRecorder()
	registry := room.NewRegistry(nil)
	provider := &fakeProvider{
		levels:   map[string]*cytoid.Level{},
		profiles: map[string]*cytoid.Profile{"cy-alice": {UID: "cy-alice", Rating: 12.5}},
		recent:   map[string]*cytoid.ScoreRecord{},
	}
	boss := challenge.NewHost(challenge.Deps{
		Scores:      provider,
		Identities:  store,
		GraceWindow: time.Millisecond,
		TimeScale:   time.Millisecond,
	})
	roomDeps := room.Deps{
		Registry:    registry,
		Messenger:   rec,
		Dialog:      dialog.NewScript(),
		Scores:      provider,
		Identities:  store,
		GraceWindow: 10 * time.Millisecond,
		VerifyDelay: time.Millisecond,
		StartLead:   time.Millisecond,
		TimeScale:   time.Millisecond,
	}
	flows := protocol.NewFlows(registry, provider, dialog.NewScript(), rec, roomDeps, nil)

	router := NewRouter(Deps{
		Registry:  registry,
		Flows:     flows,
		Boss:      boss,
		Provider:  provider,
		Store:     store,
		Messenger: rec,
	})
	return &fixture{router: router, rec: rec, store: store, registry: registry, boss: boss, provider: provider}
}

func origin(userID, username string) models.Origin {
	return models.Origin{ChannelID: "ch-1", GuildID: "g-1", User: models.User{ID: userID, Username: username}}
}

func TestDispatchBasics(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.False(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "hello there"))
	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!nonsense"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Unknown command")

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!help"))
	require.NotNil(t, fx.rec.LastResponse().Message.Embed)
}

func TestBannedUserIsIgnored(t *testing.T) {
	fx := newFixture(t)
	fx.store.UpdateUser("troll", func(u *config.UserConfig) { u.Status = config.StatusBanned })

	require.True(t, fx.router.Dispatch(context.Background(), origin("troll", "troll"), "!help"))
	require.Nil(t, fx.rec.LastResponse())
}

func TestChannelBanAndSetActive(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.store.UpdateUser("admin", func(u *config.UserConfig) { u.Status = config.StatusAdministrator })

	require.True(t, fx.router.Dispatch(ctx, origin("admin", "root"), "!set active off"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Going quiet")

	// Ordinary commands are swallowed in a blocked channel...
	before := len(fx.rec.Responses())
	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!help"))
	require.Len(t, fx.rec.Responses(), before)

	// ...but set stays reachable so the ban can be lifted.
	require.True(t, fx.router.Dispatch(ctx, origin("admin", "root"), "!set active on"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "active again")

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!help"))
	require.NotNil(t, fx.rec.LastResponse().Message.Embed)
}

func TestSetActiveRequiresAdmin(t *testing.T) {
	fx := newFixture(t)
	require.True(t, fx.router.Dispatch(context.Background(), origin("u1", "alice"), "!set active off"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Only administrators")
}

func TestCtdBindAndInfo(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd bind nobody"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "No Cytoid account")

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd bind cy-alice"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Bound!")
	require.Equal(t, "cy-alice", fx.store.CytoidID("u1"))

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd info"))
	require.Equal(t, "cy-alice", fx.rec.LastResponse().Message.Embed.Title)
}

func TestProbeRewardsEachPlayOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.store.UpdateUser("u1", func(u *config.UserConfig) { u.CytoidID = "cy-alice" })
	fx.provider.recent["cy-alice"] = &cytoid.ScoreRecord{
		Date:     time.Now(),
		Score:    900000,
		Accuracy: 0.95,
		LevelUID: "some.level",
	}

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd probe"))
	first := fx.rec.LastResponse().Message.Embed
	require.Contains(t, first.Footer, "+90 tokens")
	require.Equal(t, uint64(90), fx.store.GetUser("u1").Tokens)

	// The same play pays nothing the second time around.
	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd probe"))
	second := fx.rec.LastResponse().Message.Embed
	require.Empty(t, second.Footer)
	require.Equal(t, uint64(90), fx.store.GetUser("u1").Tokens)

	// A fresh play pays again.
	fx.provider.recent["cy-alice"] = &cytoid.ScoreRecord{
		Date:     time.Now().Add(time.Minute),
		Score:    1000000,
		Accuracy: 1,
		LevelUID: "some.level",
	}
	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!ctd probe"))
	require.Contains(t, fx.rec.LastResponse().Message.Embed.Footer, "+125 tokens")
	require.Equal(t, uint64(215), fx.store.GetUser("u1").Tokens)
}

func TestMatchJoinAndDisposeLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.store.UpdateUser("h", func(u *config.UserConfig) { u.CytoidID = "cy-host" })
	fx.store.UpdateUser("p1", func(u *config.UserConfig) { u.CytoidID = "cy-p1" })

	level := &cytoid.Level{UID: "lv", Title: "L", Duration: 5, Charts: []cytoid.Chart{{Type: "easy", Difficulty: 3}}}
	deps := room.Deps{
		Registry:    fx.registry,
		Messenger:   fx.rec,
		Dialog:      dialog.NewScript(),
		Scores:      fx.provider,
		Identities:  fx.store,
		GraceWindow: 10 * time.Millisecond,
		VerifyDelay: time.Millisecond,
		StartLead:   time.Millisecond,
		TimeScale:   time.Millisecond,
	}
	rm := room.NewSingleRoom("test room", room.Host{User: models.User{ID: "h", Username: "host"}}, level, 0, deps)
	require.NoError(t, fx.registry.Add(rm))

	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match join "+rm.ID()))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Successfully joined")

	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match players"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "bob")

	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match list"))
	require.NotNil(t, fx.rec.LastResponse().Message.Embed)

	// config is host-only; the host renames, the member cannot.
	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match config name sneaky"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "host")
	require.True(t, fx.router.Dispatch(ctx, origin("h", "host"), "!match config name renamed"))
	require.Equal(t, "renamed", rm.Name())

	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match leave"))
	require.Empty(t, rm.Players())

	require.True(t, fx.router.Dispatch(ctx, origin("h", "host"), "!match dispose"))
	_, ok := fx.registry.FindByID(rm.ID())
	require.False(t, ok)
}

func TestTipTransfersTokens(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.store.UpdateUser("u1", func(u *config.UserConfig) { u.Tokens = 40 })

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!tip <@u2>"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "tipped")
	require.Equal(t, uint64(10), fx.store.GetUser("u1").Tokens)
	require.Equal(t, uint64(30), fx.store.GetUser("u2").Tokens)

	// Not enough left for a second one.
	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!tip u2"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "don't have")
	require.Equal(t, uint64(10), fx.store.GetUser("u1").Tokens)
	require.Equal(t, uint64(30), fx.store.GetUser("u2").Tokens)

	// Tipping yourself is refused outright.
	require.True(t, fx.router.Dispatch(ctx, origin("u2", "bob"), "!tip u2"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "yourself")
	require.Equal(t, uint64(30), fx.store.GetUser("u2").Tokens)
}

func TestMatchAnnouncePinsBroadcasts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.store.UpdateUser("p1", func(u *config.UserConfig) { u.CytoidID = "cy-p1" })

	level := &cytoid.Level{UID: "lv", Title: "L", Duration: 5, Charts: []cytoid.Chart{{Type: "easy", Difficulty: 3}}}
	deps := room.Deps{
		Registry:    fx.registry,
		Messenger:   fx.rec,
		Dialog:      dialog.NewScript(),
		Scores:      fx.provider,
		Identities:  fx.store,
		GraceWindow: 10 * time.Millisecond,
		VerifyDelay: time.Millisecond,
		StartLead:   time.Millisecond,
		TimeScale:   time.Millisecond,
	}
	rm := room.NewSingleRoom("test room", room.Host{User: models.User{ID: "h", Username: "host"}, ChannelID: "ch-1"}, level, 0, deps)
	require.NoError(t, fx.registry.Add(rm))
	require.Equal(t, room.Joined, rm.Join(ctx, models.User{ID: "p1", Username: "bob"}, "ch-1"))

	// Only the host may pin.
	require.True(t, fx.router.Dispatch(ctx, origin("p1", "bob"), "!match announce"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "host")

	announceFrom := models.Origin{ChannelID: "ch-news", GuildID: "g-1", User: models.User{ID: "h", Username: "host"}}
	require.True(t, fx.router.Dispatch(ctx, announceFrom, "!match announce"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "land here")

	// Room broadcasts now collapse onto the pinned channel.
	require.True(t, fx.router.Dispatch(ctx, origin("h", "host"), "!match dispose"))
	last := fx.rec.LastBroadcast()
	require.NotNil(t, last)
	require.Equal(t, []string{"ch-news"}, last.ChannelIDs)
}

func TestChallengerStatusAndExpire(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!challenger status"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "No boss")

	level := &cytoid.Level{UID: "boss", Title: "Boss", Duration: 5, Charts: []cytoid.Chart{{Type: "extreme", Difficulty: 15}}}
	_, err := fx.boss.Summon(level, 0, room.Criteria{Condition: room.ConditionScore, Operator: room.OperatorGreater, Threshold: 1})
	require.NoError(t, err)

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!challenger status"))
	require.Contains(t, fx.rec.LastResponse().Message.Embed.Title, "Boss")

	require.True(t, fx.router.Dispatch(ctx, origin("u1", "alice"), "!challenger expire"))
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Only administrators")

	fx.store.UpdateUser("admin", func(u *config.UserConfig) { u.Status = config.StatusOwner })
	require.True(t, fx.router.Dispatch(ctx, origin("admin", "root"), "!challenger expire"))
	require.False(t, fx.boss.Alive())
}
