// internal/protocol/protocol_test.go

package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/room"
)

type identityMap map[string]string

func (m identityMap) CytoidID(platformUserID string) string { return m[platformUserID] }

type fakeLevels map[string]*cytoid.Level

func (f fakeLevels) GetLevel(_ context.Context, uid string) (*cytoid.Level, error) {
	if lv, ok := f[uid]; ok {
		return lv, nil
	}
	return nil, cytoid.ErrLevelNotFound
}

func twoChartLevel(uid string) *cytoid.Level {
	return &cytoid.Level{
		UID:      uid,
		Title:    "Some Level",
		Duration: 120,
		Charts: []cytoid.Chart{
			{Type: "easy", Difficulty: 5},
			{Type: "hard", Difficulty: 12},
		},
	}
}

type fixture struct {
	reg    *room.Registry
	rec    *messaging.Recorder
	levels fakeLevels
	ids    identityMap
}

func newFixture() *fixture {
	return &fixture{
		reg:    room.NewRegistry(nil),
		rec:    messaging.NewRecorder(),
		levels: fakeLevels{"neutralized.glow": twoChartLevel("neutralized.glow")},
		ids:    identityMap{"h": "cy-h", "p1": "cy-p1"},
	}
}

func (fx *fixture) flows(script *dialog.Script) *Flows {
	deps := room.Deps{
		Registry:    fx.reg,
		Messenger:   fx.rec,
		Dialog:      script,
		Identities:  fx.ids,
		GraceWindow: 10 * time.Millisecond,
		VerifyDelay: time.Millisecond,
		StartLead:   time.Millisecond,
		TimeScale:   time.Millisecond,
	}
	return NewFlows(fx.reg, fx.levels, script, fx.rec, deps, nil)
}

func origin(userID, username string) models.Origin {
	return models.Origin{ChannelID: "ch-1", GuildID: "g-1", User: models.User{ID: userID, Username: username}}
}

func TestCreateSingleRoom(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("0"),                  // Singular
		dialog.Reply("neutralized.glow"),    // level id
		dialog.Select("1"),                  // hard chart
		dialog.Reply("friday night rhythm"), // room name
	)
	f := fx.flows(script)

	r, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)
	require.Equal(t, room.KindSingle, r.Kind())
	require.Equal(t, "friday night rhythm", r.Name())

	// Host is admitted as the first player.
	require.Len(t, r.Players(), 1)
	got, ok := fx.reg.FindByHost("h")
	require.True(t, ok)
	require.Equal(t, r.ID(), got.ID())

	info := r.Information()
	require.NotNil(t, info.Chart)
	require.Equal(t, "hard", info.Chart.Type)

	last := fx.rec.LastResponse()
	require.NotNil(t, last)
	require.Contains(t, last.Message.Content, r.ID())
}

func TestCreateChallengeRoomWithCriteria(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("2"), // Challenge
		dialog.Reply("neutralized.glow"),
		dialog.Select("0"),
		dialog.Reply("acc gate"),
		dialog.Select("2"), // Accuracy
		dialog.Select("0"), // >
		dialog.Reply("97.5"),
	)
	f := fx.flows(script)

	r, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)
	require.Equal(t, room.KindChallenge, r.Kind())

	info := r.Information()
	require.NotNil(t, info.Criteria)
	require.Equal(t, "Accuracy > 97.5", info.Criteria.String())
}

func TestCreateRejectsSecondRoomPerHost(t *testing.T) {
	fx := newFixture()
	f := fx.flows(dialog.NewScript(dialog.Select("1"), dialog.Reply("first"), dialog.Select("no")))
	_, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)

	f2 := fx.flows(dialog.NewScript())
	_, err = f2.Create(context.Background(), origin("h", "alice"))
	require.ErrorIs(t, err, ErrAborted)
	require.Contains(t, fx.rec.LastResponse().Message.Content, "already have an active room")
}

func TestCreateRequiresBoundIdentity(t *testing.T) {
	fx := newFixture()
	f := fx.flows(dialog.NewScript())
	_, err := f.Create(context.Background(), origin("stranger", "bob"))
	require.ErrorIs(t, err, ErrAborted)
	require.Contains(t, fx.rec.LastResponse().Message.Content, "bind your id")
}

func TestCreateUnknownLevelAborts(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("0"),
		dialog.Reply("no.such.level"),
	)
	f := fx.flows(script)

	_, err := f.Create(context.Background(), origin("h", "alice"))
	require.ErrorIs(t, err, ErrAborted)
	require.Contains(t, fx.rec.LastResponse().Message.Content, "No level found")

	_, ok := fx.reg.FindByHost("h")
	require.False(t, ok)
}

func TestCreateNameTimeoutAbortsSilently(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("0"),
		dialog.Reply("neutralized.glow"),
		dialog.Select("0"),
		dialog.Timeout(), // name prompt expires
	)
	f := fx.flows(script)

	_, err := f.Create(context.Background(), origin("h", "alice"))
	require.ErrorIs(t, err, ErrAborted)
	// No room got registered and the expiry sent no message.
	_, ok := fx.reg.FindByHost("h")
	require.False(t, ok)
	require.Nil(t, fx.rec.LastResponse())
}

func TestCreateBlankNameFallsBack(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("0"),
		dialog.Reply("neutralized.glow"),
		dialog.Select("0"),
		dialog.Reply("  "),
	)
	f := fx.flows(script)

	r, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)
	require.Equal(t, "alice's room", r.Name())
}

func TestCreateBadThresholdAborts(t *testing.T) {
	fx := newFixture()
	script := dialog.NewScript(
		dialog.Select("2"),
		dialog.Reply("neutralized.glow"),
		dialog.Select("0"),
		dialog.Reply("acc gate"),
		dialog.Select("0"),
		dialog.Select("0"),
		dialog.Reply("ninety"),
	)
	f := fx.flows(script)

	_, err := f.Create(context.Background(), origin("h", "alice"))
	require.ErrorIs(t, err, ErrAborted)
	require.Contains(t, fx.rec.LastResponse().Message.Content, "not a number")
	_, ok := fx.reg.FindByHost("h")
	require.False(t, ok)
}

func TestEnqueueIntoGauntlet(t *testing.T) {
	fx := newFixture()
	f := fx.flows(dialog.NewScript(dialog.Select("3"), dialog.Reply("trial night"), dialog.Select("no")))
	r, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)

	f2 := fx.flows(dialog.NewScript(
		dialog.Reply("neutralized.glow"),
		dialog.Select("1"),
		dialog.Select("0"), // Score
		dialog.Select("0"), // >
		dialog.Reply("950000"),
	))
	require.NoError(t, f2.Enqueue(context.Background(), origin("h", "alice")))

	info := r.Information()
	require.Equal(t, 1, info.QueueLength)
	require.NotNil(t, info.Criteria)
	require.Equal(t, "Score > 950000", info.Criteria.String())
}

func TestEnqueueGuards(t *testing.T) {
	fx := newFixture()
	f := fx.flows(dialog.NewScript(dialog.Select("1"), dialog.Reply("the list"), dialog.Select("no")))
	r, err := f.Create(context.Background(), origin("h", "alice"))
	require.NoError(t, err)

	// A member who is not the host may not enqueue while free_enqueue is off.
	require.Equal(t, room.Joined, r.Join(context.Background(), models.User{ID: "p1", Username: "bob"}, "ch-2"))
	f2 := fx.flows(dialog.NewScript())
	require.ErrorIs(t, f2.Enqueue(context.Background(), origin("p1", "bob")), ErrAborted)
	require.Contains(t, fx.rec.LastResponse().Message.Content, "Only the host")

	// Someone outside any room is turned away outright.
	f3 := fx.flows(dialog.NewScript())
	require.ErrorIs(t, f3.Enqueue(context.Background(), origin("stranger", "eve")), ErrAborted)
}
