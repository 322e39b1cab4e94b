// internal/command/match.go

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
	"github.com/okimu/okimu/internal/protocol"
	"github.com/okimu/okimu/internal/room"
)

func (r *Router) matchCommand() *Command {
	return &Command{
		Name: "match",
		Help: "multiplayer rooms: create, join and play",
		Sub: map[string]*Command{
			"list":     {Name: "match list", Help: "show every open room", Run: r.matchList},
			"info":     {Name: "match info", Help: "details of a room (yours, or by id)", Run: r.matchInfo},
			"players":  {Name: "match players", Help: "who is in your room", Run: r.matchPlayers},
			"join":     {Name: "match join", Help: "join a room by id", Run: r.matchJoin},
			"leave":    {Name: "match leave", Help: "leave your current room", Run: r.matchLeave},
			"create":   {Name: "match create", Help: "create a room (interactive)", Run: r.matchCreate},
			"host":     {Name: "match host", Help: "start your room's match", Run: r.matchHost},
			"enqueue":  {Name: "match enqueue", Help: "add a level to your room's queue (interactive)", Run: r.matchEnqueue},
			"announce": {Name: "match announce", Help: "pin room announcements to this channel", Run: r.matchAnnounce},
			"config":   {Name: "match config", Help: "change a room setting: config <field> <value>", Run: r.matchConfig},
			"dispose":  {Name: "match dispose", Help: "close your room", Run: r.matchDispose},
		},
	}
}

func (r *Router) matchList(ctx context.Context, origin models.Origin, _ []string) {
	rooms := r.registry.All()
	if len(rooms) == 0 {
		r.respondText(ctx, origin, "No rooms are open right now - `%smatch create` to open one!", r.prefix)
		return
	}
	e := &messaging.Embed{Title: "Open rooms"}
	for _, rm := range rooms {
		info := rm.Information()
		state := "open"
		if info.Started {
			state = "in a match"
		}
		e.AddField(
			fmt.Sprintf("%s (%s, %d/%d, %s)", info.Name, info.Kind, info.Players, info.MaxPlayers, state),
			fmt.Sprintf("`%s`", info.ID))
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
}

func (r *Router) matchInfo(ctx context.Context, origin models.Origin, args []string) {
	var rm room.Room
	var ok bool
	if len(args) > 0 {
		rm, ok = r.registry.FindByID(args[0])
	} else {
		rm, ok = r.registry.FindByPlayer(origin.User.ID)
	}
	if !ok {
		r.respondText(ctx, origin, "No such room - `%smatch list` shows the open ones.", r.prefix)
		return
	}

	info := rm.Information()
	e := &messaging.Embed{
		Title:       info.Name,
		Description: info.Description,
		Footer:      fmt.Sprintf("id: %s", info.ID),
	}
	e.AddField("Type", info.Kind.String())
	e.AddField("Players", fmt.Sprintf("%d/%d (min %d)", info.Players, info.MaxPlayers, info.MinPlayers))
	if info.Level != nil {
		chart := ""
		if info.Chart != nil {
			chart = fmt.Sprintf(" - %s [%d]", info.Chart.DisplayName(), info.Chart.Difficulty)
		}
		e.AddField("Level", info.Level.Title+chart)
	}
	if info.Criteria != nil {
		e.AddField("Goal", info.Criteria.String())
	}
	if info.FreeEnqueue != nil {
		e.AddField("Queue", fmt.Sprintf("%d pending, free enqueue: %t", info.QueueLength, *info.FreeEnqueue))
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
}

func (r *Router) matchPlayers(ctx context.Context, origin models.Origin, _ []string) {
	rm, ok := r.registry.FindByPlayer(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "You're not in a room right now!")
		return
	}
	players := rm.Players()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Username
		if p.ID == rm.Host().ID {
			names[i] += " (host)"
		}
	}
	r.respondText(ctx, origin, "%s - %d player(s): %s", rm.Name(), len(players), strings.Join(names, ", "))
}

func (r *Router) matchJoin(ctx context.Context, origin models.Origin, args []string) {
	if len(args) == 0 {
		r.respondText(ctx, origin, "Which room? `%smatch join <id>`", r.prefix)
		return
	}
	rm, ok := r.registry.FindByID(args[0])
	if !ok {
		r.respondText(ctx, origin, "No room with that id - `%smatch list` shows the open ones.", r.prefix)
		return
	}
	res := rm.Join(ctx, origin.User, origin.ChannelID)
	r.respondText(ctx, origin, "%s", res.Message())
}

func (r *Router) matchLeave(ctx context.Context, origin models.Origin, _ []string) {
	rm, ok := r.registry.FindByPlayer(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "You're not in a room right now!")
		return
	}
	rm.Leave(origin.User)
	r.respondText(ctx, origin, "You left %s.", rm.Name())
}

func (r *Router) matchCreate(ctx context.Context, origin models.Origin, _ []string) {
	// The flow blocks on dialog answers; run it off the dispatch path.
	go func() {
		if _, err := r.flows.Create(ctx, origin); err != nil && !errors.Is(err, protocol.ErrAborted) {
			r.log.WithError(err).WithField("user", origin.User.ID).Warn("command: create flow failed")
		}
	}()
}

func (r *Router) matchHost(ctx context.Context, origin models.Origin, _ []string) {
	rm, ok := r.registry.FindByHost(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "You don't have a room - `%smatch create` to open one.", r.prefix)
		return
	}
	go func() {
		err := rm.Start(ctx)
		switch {
		case err == nil:
		case errors.Is(err, room.ErrAlreadyStarted):
			r.respondText(ctx, origin, "The match is already running!")
		case errors.Is(err, room.ErrQueueEmpty):
			r.respondText(ctx, origin, "The queue is empty - `%smatch enqueue` something first.", r.prefix)
		default:
			r.log.WithError(err).WithField("room", rm.ID()).Error("command: match failed")
		}
	}()
}

func (r *Router) matchEnqueue(ctx context.Context, origin models.Origin, _ []string) {
	go func() {
		if err := r.flows.Enqueue(ctx, origin); err != nil && !errors.Is(err, protocol.ErrAborted) {
			r.log.WithError(err).WithField("user", origin.User.ID).Warn("command: enqueue flow failed")
		}
	}()
}

// matchAnnounce pins the room's broadcasts to the channel the command came
// from, instead of fanning out to every channel players joined from.
func (r *Router) matchAnnounce(ctx context.Context, origin models.Origin, _ []string) {
	rm, ok := r.registry.FindByHost(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "Only a room's host can pick the announcement channel.")
		return
	}
	rm.SetAnnouncementChannel(origin.ChannelID)
	r.respondText(ctx, origin, "Announcements for %s now land here.", rm.Name())
}

func (r *Router) matchConfig(ctx context.Context, origin models.Origin, args []string) {
	rm, ok := r.registry.FindByHost(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "Only a room's host can configure it.")
		return
	}
	if len(args) < 2 {
		r.respondText(ctx, origin, "`%smatch config <field> <value>` - fields: name, description, min_players, max_players, free_enqueue, break_duration.", r.prefix)
		return
	}
	if err := rm.Configure(args[0], strings.Join(args[1:], " ")); err != nil {
		r.respondText(ctx, origin, "%s", err.Error())
		return
	}
	r.respondText(ctx, origin, "Done - %s updated.", args[0])
}

func (r *Router) matchDispose(ctx context.Context, origin models.Origin, _ []string) {
	rm, ok := r.registry.FindByHost(origin.User.ID)
	if !ok {
		r.respondText(ctx, origin, "You don't have a room to dispose.")
		return
	}
	if rm.Started() {
		r.respondText(ctx, origin, "A match is running - wait for it to finish first.")
		return
	}
	rm.Dispose(ctx)
}
