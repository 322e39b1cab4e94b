// internal/protocol/protocol.go

// Package protocol drives the multi-stage dialogs that create rooms and
// enqueue levels: each stage asks, validates, and either advances or aborts
// with a message the user can act on.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/dialog"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/room"
)

// ErrAborted means a flow ended without producing anything: a stage timed
// out, was cancelled, or got input that cannot be retried.
var ErrAborted = errors.New("protocol: flow aborted")

// LevelProvider is the slice of the scoring service the flows need.
type LevelProvider interface {
	GetLevel(ctx context.Context, uid string) (*cytoid.Level, error)
}

// Flows runs the staged conversations. One instance serves every user.
type Flows struct {
	registry  *room.Registry
	levels    LevelProvider
	dialog    dialog.Session
	messenger messaging.Messenger
	roomDeps  room.Deps
	log       *logrus.Logger
}

func NewFlows(registry *room.Registry, levels LevelProvider, dlg dialog.Session, messenger messaging.Messenger, roomDeps room.Deps, log *logrus.Logger) *Flows {
	if log == nil {
		log = logrus.New()
	}
	return &Flows{
		registry:  registry,
		levels:    levels,
		dialog:    dlg,
		messenger: messenger,
		roomDeps:  roomDeps,
		log:       log,
	}
}

// Create walks a host through room creation and registers the result. The
// host is admitted to their own room as its first player.
func (f *Flows) Create(ctx context.Context, origin models.Origin) (room.Room, error) {
	user := origin.User
	if _, exists := f.registry.FindByHost(user.ID); exists {
		f.messenger.Respond(ctx, origin, messaging.Text("You already have an active room! Dispose it before creating another."))
		return nil, ErrAborted
	}
	if f.roomDeps.Identities.CytoidID(user.ID) == "" {
		f.messenger.Respond(ctx, origin, messaging.Text("You'll have to bind your id first!"))
		return nil, ErrAborted
	}

	kind, err := f.chooseKind(ctx, origin)
	if err != nil {
		return nil, err
	}

	var built room.Room
	host := room.Host{User: user, ChannelID: origin.ChannelID}
	switch kind {
	case room.KindPlaylist, room.KindGauntlet:
		name, err := f.askName(ctx, origin)
		if err != nil {
			return nil, err
		}
		free := f.askFreeEnqueue(ctx, origin)
		if kind == room.KindPlaylist {
			built = room.NewPlaylistRoom(name, host, f.roomDeps)
		} else {
			built = room.NewGauntletRoom(name, host, f.roomDeps)
		}
		if free {
			_ = built.Configure("free_enqueue", "true")
		}
	case room.KindSingle, room.KindChallenge:
		level, chartIndex, err := f.askLevel(ctx, origin)
		if err != nil {
			return nil, err
		}
		name, err := f.askName(ctx, origin)
		if err != nil {
			return nil, err
		}
		if kind == room.KindSingle {
			built = room.NewSingleRoom(name, host, level, chartIndex, f.roomDeps)
		} else {
			crit, err := f.askCriteria(ctx, origin)
			if err != nil {
				return nil, err
			}
			built = room.NewChallengeRoom(name, host, level, chartIndex, crit, f.roomDeps)
		}
	}

	if err := f.registry.Add(built); err != nil {
		f.messenger.Respond(ctx, origin, messaging.Text("Couldn't open the room: "+err.Error()))
		return nil, ErrAborted
	}
	if res := built.Join(ctx, user, origin.ChannelID); res != room.Joined {
		f.registry.Remove(built.ID())
		f.messenger.Respond(ctx, origin, messaging.Text(res.Message()))
		return nil, ErrAborted
	}

	f.log.WithFields(logrus.Fields{"room": built.ID(), "kind": kind.String(), "host": user.ID}).Info("protocol: room created")
	f.messenger.Respond(ctx, origin, messaging.Text(fmt.Sprintf(
		"Room is up! Players can join with its id:\n`%s`", built.ID())))
	return built, nil
}

// Enqueue walks a queue-room member through adding one level. Gauntlet
// entries additionally carry their own goal.
func (f *Flows) Enqueue(ctx context.Context, origin models.Origin) error {
	user := origin.User
	r, ok := f.registry.FindByPlayer(user.ID)
	if !ok {
		f.messenger.Respond(ctx, origin, messaging.Text("You're not in a room right now!"))
		return ErrAborted
	}

	switch target := r.(type) {
	case *room.PlaylistRoom:
		if !target.CanEnqueue(user.ID) {
			f.messenger.Respond(ctx, origin, messaging.Text("Only the host can enqueue in this room."))
			return ErrAborted
		}
		level, chartIndex, err := f.askLevel(ctx, origin)
		if err != nil {
			return err
		}
		target.Enqueue(level, chartIndex)
	case *room.GauntletRoom:
		if !target.CanEnqueue(user.ID) {
			f.messenger.Respond(ctx, origin, messaging.Text("Only the host can enqueue in this room."))
			return ErrAborted
		}
		level, chartIndex, err := f.askLevel(ctx, origin)
		if err != nil {
			return err
		}
		crit, err := f.askCriteria(ctx, origin)
		if err != nil {
			return err
		}
		target.Enqueue(level, chartIndex, crit)
	default:
		f.messenger.Respond(ctx, origin, messaging.Text("This room plays a fixed level, there's no queue to add to."))
		return ErrAborted
	}

	f.messenger.Respond(ctx, origin, messaging.Text("Level enqueued!"))
	return nil
}

// PickLevel runs the level-and-chart stages standalone, for callers outside
// room creation (boss summoning).
func (f *Flows) PickLevel(ctx context.Context, origin models.Origin) (*cytoid.Level, int, error) {
	return f.askLevel(ctx, origin)
}

// PickCriteria runs the goal sub-flow standalone.
func (f *Flows) PickCriteria(ctx context.Context, origin models.Origin) (room.Criteria, error) {
	return f.askCriteria(ctx, origin)
}

// chooseKind is stage one of creation: pick the room variant.
func (f *Flows) chooseKind(ctx context.Context, origin models.Origin) (room.Kind, error) {
	kinds := []room.Kind{room.KindSingle, room.KindPlaylist, room.KindChallenge, room.KindGauntlet}
	choices := make([]dialog.Choice, len(kinds))
	for i, k := range kinds {
		choices[i] = dialog.Choice{ID: strconv.Itoa(int(k)), Label: k.String()}
	}
	picked, err := f.dialog.PresentChoices(ctx, origin.User, "What kind of room would you like?", choices)
	if err != nil {
		return 0, f.abort(err)
	}
	n, err := strconv.Atoi(picked.ID)
	if err != nil {
		return 0, f.abort(err)
	}
	return room.Kind(n), nil
}

// askLevel asks for a level id, resolves it, then asks which chart to play.
func (f *Flows) askLevel(ctx context.Context, origin models.Origin) (*cytoid.Level, int, error) {
	reply, err := f.dialog.AwaitReply(ctx, origin.User, "Which level? Reply with its id (the `author.title` part of its page URL).")
	if err != nil {
		return nil, 0, f.abort(err)
	}
	uid := strings.TrimSpace(reply)

	level, err := f.levels.GetLevel(ctx, uid)
	if err != nil {
		if errors.Is(err, cytoid.ErrLevelNotFound) {
			f.messenger.Respond(ctx, origin, messaging.Text(fmt.Sprintf("No level found with id `%s` - double-check the id and start over.", uid)))
		} else {
			f.log.WithError(err).WithField("level", uid).Warn("protocol: level lookup failed")
			f.messenger.Respond(ctx, origin, messaging.Text("Couldn't reach the level service, try again in a bit."))
		}
		return nil, 0, ErrAborted
	}

	choices := make([]dialog.Choice, len(level.Charts))
	for i, c := range level.Charts {
		choices[i] = dialog.Choice{ID: strconv.Itoa(i), Label: fmt.Sprintf("%s [%d]", c.DisplayName(), c.Difficulty)}
	}
	picked, err := f.dialog.PresentChoices(ctx, origin.User, "Which chart?", choices)
	if err != nil {
		return nil, 0, f.abort(err)
	}
	chartIndex, err := strconv.Atoi(picked.ID)
	if err != nil || chartIndex < 0 || chartIndex >= len(level.Charts) {
		return nil, 0, f.abort(fmt.Errorf("bad chart choice %q", picked.ID))
	}
	return level, chartIndex, nil
}

// askName asks for the room name. A blank answer falls back to a default;
// a timeout aborts the whole flow like every other stage.
func (f *Flows) askName(ctx context.Context, origin models.Origin) (string, error) {
	reply, err := f.dialog.AwaitReply(ctx, origin.User, "What should the room be called?")
	if err != nil {
		return "", f.abort(err)
	}
	if strings.TrimSpace(reply) == "" {
		return origin.User.Username + "'s room", nil
	}
	return strings.TrimSpace(reply), nil
}

// askFreeEnqueue asks whether members besides the host may enqueue. Any
// failure leaves the gate closed.
func (f *Flows) askFreeEnqueue(ctx context.Context, origin models.Origin) bool {
	picked, err := f.dialog.PresentChoices(ctx, origin.User,
		"Should everyone in the room be allowed to enqueue levels?",
		[]dialog.Choice{{ID: "yes", Label: "Yes, free for all"}, {ID: "no", Label: "No, host only"}})
	return err == nil && picked.ID == "yes"
}

// askCriteria runs the goal sub-flow: condition, operator, threshold.
func (f *Flows) askCriteria(ctx context.Context, origin models.Origin) (room.Criteria, error) {
	condChoices := make([]dialog.Choice, len(room.Conditions))
	for i, c := range room.Conditions {
		condChoices[i] = dialog.Choice{ID: strconv.Itoa(int(c)), Label: c.String()}
	}
	pickedCond, err := f.dialog.PresentChoices(ctx, origin.User, "What should the goal judge?", condChoices)
	if err != nil {
		return room.Criteria{}, f.abort(err)
	}
	cond, _ := strconv.Atoi(pickedCond.ID)

	opChoices := make([]dialog.Choice, len(room.Operators))
	for i, o := range room.Operators {
		opChoices[i] = dialog.Choice{ID: strconv.Itoa(int(o)), Label: o.String()}
	}
	pickedOp, err := f.dialog.PresentChoices(ctx, origin.User, "How should it compare?", opChoices)
	if err != nil {
		return room.Criteria{}, f.abort(err)
	}
	op, _ := strconv.Atoi(pickedOp.ID)

	reply, err := f.dialog.AwaitReply(ctx, origin.User, "And the target value? (accuracy as a percentage, e.g. 95)")
	if err != nil {
		return room.Criteria{}, f.abort(err)
	}
	threshold, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		f.messenger.Respond(ctx, origin, messaging.Text(fmt.Sprintf("`%s` is not a number - start over when you have one.", strings.TrimSpace(reply))))
		return room.Criteria{}, ErrAborted
	}

	return room.Criteria{Condition: room.Condition(cond), Operator: room.Operator(op), Threshold: threshold}, nil
}

// abort folds any stage failure into ErrAborted. Timeouts cancel the flow
// without a word; anything else is worth a log line.
func (f *Flows) abort(err error) error {
	if !errors.Is(err, dialog.ErrTimedOut) {
		f.log.WithError(err).Debug("protocol: stage failed")
	}
	return ErrAborted
}
