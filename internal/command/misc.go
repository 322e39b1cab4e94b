// internal/command/misc.go

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okimu/okimu/internal/challenge"
	"github.com/okimu/okimu/internal/config"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
)

func (r *Router) challengerCommand() *Command {
	return &Command{
		Name: "challenger",
		Help: "fight the summoned boss level",
		Run:  r.challengerFight,
		Sub: map[string]*Command{
			"status": {Name: "challenger status", Help: "the current boss and its leaderboard", Run: r.challengerStatus},
			"summon": {Name: "challenger summon", Help: "raise a new boss (admin, interactive)", Run: r.challengerSummon},
			"expire": {Name: "challenger expire", Help: "take the boss down (admin)", Run: r.challengerExpire},
		},
	}
}

func (r *Router) challengerFight(ctx context.Context, origin models.Origin, _ []string) {
	boss, ok := r.boss.Current()
	if !ok {
		r.respondText(ctx, origin, "No boss is summoned right now.")
		return
	}
	go func() {
		r.respondText(ctx, origin, "The fight is on! Play **%s** (%s) - goal: %s. Your newest play decides it.",
			boss.Level.Title, boss.Chart().DisplayName(), boss.Criteria.String())

		attempt, err := r.boss.BeginAttempt(ctx, origin.User)
		switch {
		case errors.Is(err, challenge.ErrAttemptInFlight):
			r.respondText(ctx, origin, "Someone else is mid-fight - wait your turn!")
			return
		case errors.Is(err, challenge.ErrIdentityUnbound):
			r.respondText(ctx, origin, "You'll have to bind your id first! (`%sctd bind <id>`)", r.prefix)
			return
		case errors.Is(err, challenge.ErrNoBoss):
			r.respondText(ctx, origin, "The boss is gone already.")
			return
		case err != nil:
			r.log.WithError(err).WithField("user", origin.User.ID).Warn("command: boss attempt failed")
			return
		}

		switch {
		case attempt.Passed:
			r.respondText(ctx, origin, "**%s** cleared the boss! (%d)", origin.User.Username, attempt.Record.Score)
		case attempt.Record != nil:
			r.respondText(ctx, origin, "Not enough - the boss shrugs it off. (%d)", attempt.Record.Score)
		default:
			r.respondText(ctx, origin, "No qualifying play found in time - the boss stands untouched.")
		}
	}()
}

func (r *Router) challengerStatus(ctx context.Context, origin models.Origin, _ []string) {
	boss, ok := r.boss.Current()
	if !ok {
		r.respondText(ctx, origin, "No boss is summoned right now.")
		return
	}
	e := &messaging.Embed{
		Title:       "Current boss: " + boss.Level.Title,
		Description: fmt.Sprintf("%s [%d] - goal: %s", boss.Chart().DisplayName(), boss.Chart().Difficulty, boss.Criteria.String()),
		ImageURL:    boss.Level.CoverURL,
	}
	e.AddField("Expires", boss.ExpiresAt.Format("2006-01-02 15:04 MST"))
	board := r.boss.Leaderboard()
	if len(board) == 0 {
		e.AddField("Slayers", "None yet - be the first!")
	} else {
		lines := ""
		for i, a := range board {
			lines += fmt.Sprintf("%d. **%s** - %d\n", i+1, a.User.Username, a.Record.Score)
		}
		e.AddField("Slayers", lines)
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
}

func (r *Router) challengerSummon(ctx context.Context, origin models.Origin, _ []string) {
	if !r.isAdmin(origin.User.ID) {
		r.respondText(ctx, origin, "Only administrators can summon a boss.")
		return
	}
	if r.boss.Alive() {
		r.respondText(ctx, origin, "A boss is already up - expire it first.")
		return
	}
	go func() {
		level, chartIndex, err := r.flows.PickLevel(ctx, origin)
		if err != nil {
			return
		}
		crit, err := r.flows.PickCriteria(ctx, origin)
		if err != nil {
			return
		}
		boss, err := r.boss.Summon(level, chartIndex, crit)
		if err != nil {
			r.respondText(ctx, origin, "A boss is already up - expire it first.")
			return
		}
		r.respondText(ctx, origin, "A boss has risen: **%s** (%s) - goal: %s. `%schallenger` to fight it!",
			boss.Level.Title, boss.Chart().DisplayName(), boss.Criteria.String(), r.prefix)
	}()
}

func (r *Router) challengerExpire(ctx context.Context, origin models.Origin, _ []string) {
	if !r.isAdmin(origin.User.ID) {
		r.respondText(ctx, origin, "Only administrators can expire the boss.")
		return
	}
	if r.boss.Expire() {
		r.respondText(ctx, origin, "The boss fades away.")
	} else {
		r.respondText(ctx, origin, "There was no boss to expire.")
	}
}

// tipAmount is the fixed number of tokens a tip moves.
const tipAmount = 30

func (r *Router) tipCommand() *Command {
	return &Command{
		Name: "tip",
		Help: fmt.Sprintf("give %d of your tokens to someone: tip <user>", tipAmount),
		Run:  r.tip,
	}
}

// mentionID strips Discord-style mention decoration from a user argument.
func mentionID(arg string) string {
	arg = strings.TrimPrefix(arg, "<@")
	arg = strings.TrimPrefix(arg, "!")
	return strings.TrimSuffix(arg, ">")
}

func (r *Router) tip(ctx context.Context, origin models.Origin, args []string) {
	if len(args) == 0 {
		r.respondText(ctx, origin, "`%stip <user>` - send them %d tokens.", r.prefix, tipAmount)
		return
	}
	target := mentionID(args[0])
	if target == "" {
		r.respondText(ctx, origin, "`%stip <user>` - send them %d tokens.", r.prefix, tipAmount)
		return
	}
	if target == origin.User.ID {
		r.respondText(ctx, origin, "Tipping yourself moves nothing.")
		return
	}
	if err := r.store.TransferTokens(origin.User.ID, target, tipAmount); err != nil {
		r.respondText(ctx, origin, "You don't have %d tokens to give.", tipAmount)
		return
	}
	r.respondText(ctx, origin, "**%s** tipped <@%s> %d tokens!", origin.User.Username, target, tipAmount)
}

func (r *Router) infoCommand() *Command {
	return &Command{
		Name: "info",
		Help: "about the bot and your standing",
		Run: func(ctx context.Context, origin models.Origin, _ []string) {
			user := r.store.GetUser(origin.User.ID)
			e := &messaging.Embed{
				Title:       "okimu",
				Description: "Cytoid multiplayer matches, boss fights and score tracking.",
			}
			e.AddField("Your status", user.Status.String())
			e.AddField("Your tokens", fmt.Sprintf("%d", user.Tokens))
			if user.CytoidID != "" {
				e.AddField("Bound account", user.CytoidID)
			}
			e.AddField("Players known", fmt.Sprintf("%d", r.store.UserCount()))
			r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
		},
	}
}

func (r *Router) setCommand() *Command {
	return &Command{
		Name: "set",
		Help: "channel settings (admin)",
		Sub: map[string]*Command{
			"active": {Name: "set active", Help: "allow or block the bot here: set active <on|off>", Run: r.setActive},
		},
	}
}

// setActive toggles whether the current channel accepts commands. It stays
// reachable in a blocked channel, otherwise a ban would be permanent.
func (r *Router) setActive(ctx context.Context, origin models.Origin, args []string) {
	if !r.isAdmin(origin.User.ID) {
		r.respondText(ctx, origin, "Only administrators can change channel settings.")
		return
	}
	if origin.GuildID == "" {
		r.respondText(ctx, origin, "This only applies inside a guild.")
		return
	}
	if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
		r.respondText(ctx, origin, "`%sset active <on|off>`", r.prefix)
		return
	}
	if args[0] == "on" {
		r.store.UpdateGuild(origin.GuildID, func(g *config.GuildConfig) {
			delete(g.BannedChannels, origin.ChannelID)
		})
		r.respondText(ctx, origin, "This channel is active again.")
	} else {
		r.store.UpdateGuild(origin.GuildID, func(g *config.GuildConfig) {
			g.BannedChannels[origin.ChannelID] = true
		})
		r.respondText(ctx, origin, "Going quiet in this channel - `%sset active on` to bring me back.", r.prefix)
	}
}
