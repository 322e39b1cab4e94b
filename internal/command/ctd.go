// internal/command/ctd.go

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okimu/okimu/internal/config"
	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
)

func (r *Router) ctdCommand() *Command {
	return &Command{
		Name: "ctd",
		Help: "Cytoid: bind your account, look up plays, levels and rankings",
		Sub: map[string]*Command{
			"bind":    {Name: "ctd bind", Help: "bind your Cytoid id: bind <id>", Run: r.ctdBind},
			"probe":   {Name: "ctd probe", Help: "your (or someone's) most recent play", Run: r.ctdProbe},
			"info":    {Name: "ctd info", Help: "profile summary", Run: r.ctdInfo},
			"ranking": {Name: "ctd ranking", Help: "chart leaderboard: ranking <levelId> <easy|hard|extreme>", Run: r.ctdRanking},
			"search":  {Name: "ctd search", Help: "search levels by title", Run: r.ctdSearch},
		},
	}
}

func (r *Router) ctdBind(ctx context.Context, origin models.Origin, args []string) {
	if len(args) == 0 {
		r.respondText(ctx, origin, "`%sctd bind <id>` - your Cytoid account name.", r.prefix)
		return
	}
	profile, err := r.provider.GetProfile(ctx, args[0])
	if err != nil {
		if errors.Is(err, cytoid.ErrProfileNotFound) {
			r.respondText(ctx, origin, "No Cytoid account named `%s`.", args[0])
			return
		}
		r.log.WithError(err).WithField("player", args[0]).Warn("command: profile lookup failed")
		r.respondText(ctx, origin, "Couldn't reach Cytoid, try again in a bit.")
		return
	}
	r.store.UpdateUser(origin.User.ID, func(u *config.UserConfig) {
		u.CytoidID = profile.UID
	})
	r.respondText(ctx, origin, "Bound! You are `%s` (rating %.2f).", profile.UID, profile.Rating)
}

// resolvePlayer maps args to a Cytoid id: an explicit argument wins,
// otherwise the caller's own binding.
func (r *Router) resolvePlayer(origin models.Origin, args []string) (string, bool) {
	if len(args) > 0 {
		return args[0], true
	}
	id := r.store.CytoidID(origin.User.ID)
	return id, id != ""
}

func (r *Router) ctdProbe(ctx context.Context, origin models.Origin, args []string) {
	cytoidID, ok := r.resolvePlayer(origin, args)
	if !ok {
		r.respondText(ctx, origin, "You'll have to bind your id first! (`%sctd bind <id>`)", r.prefix)
		return
	}
	rec, err := r.provider.GetMostRecentPlay(ctx, cytoidID)
	if err != nil {
		if errors.Is(err, cytoid.ErrNoRecentPlay) {
			r.respondText(ctx, origin, "`%s` has no recent plays.", cytoidID)
			return
		}
		r.log.WithError(err).WithField("player", cytoidID).Warn("command: recent play lookup failed")
		r.respondText(ctx, origin, "Couldn't reach Cytoid, try again in a bit.")
		return
	}

	e := &messaging.Embed{
		Title:       fmt.Sprintf("%s - most recent play", cytoidID),
		Description: fmt.Sprintf("**%s** (%s)", rec.LevelUID, rec.ChartType),
	}
	e.AddField("Score", fmt.Sprintf("%d", rec.Score))
	e.AddField("Accuracy", fmt.Sprintf("%.2f%%", rec.Accuracy*100))
	e.AddField("Max combo", fmt.Sprintf("%d", rec.Details.MaxCombo))

	// A play is rewarded once: only when it is newer than the last one paid.
	if len(args) == 0 {
		var (
			rewarded bool
			earned   uint64
			balance  uint64
		)
		r.store.UpdateUser(origin.User.ID, func(u *config.UserConfig) {
			if rec.Date.After(u.LastQueryDate) {
				earned = u.AddTokens(playReward(rec))
				u.LastQueryDate = rec.Date
				balance = u.Tokens
				rewarded = true
			}
		})
		if rewarded {
			e.Footer = fmt.Sprintf("+%d tokens! (balance: %d)", earned, balance)
		}
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
}

// playReward prices a play in tokens.
func playReward(rec *cytoid.ScoreRecord) uint64 {
	reward := uint64(rec.Score / 10000)
	if rec.Accuracy >= 1 {
		reward += 25
	}
	return reward
}

func (r *Router) ctdInfo(ctx context.Context, origin models.Origin, args []string) {
	cytoidID, ok := r.resolvePlayer(origin, args)
	if !ok {
		r.respondText(ctx, origin, "You'll have to bind your id first! (`%sctd bind <id>`)", r.prefix)
		return
	}
	profile, err := r.provider.GetProfile(ctx, cytoidID)
	if err != nil {
		if errors.Is(err, cytoid.ErrProfileNotFound) {
			r.respondText(ctx, origin, "No Cytoid account named `%s`.", cytoidID)
			return
		}
		r.log.WithError(err).WithField("player", cytoidID).Warn("command: profile lookup failed")
		r.respondText(ctx, origin, "Couldn't reach Cytoid, try again in a bit.")
		return
	}
	e := &messaging.Embed{Title: profile.UID}
	e.AddField("Rating", fmt.Sprintf("%.2f", profile.Rating))
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: e})
}

func (r *Router) ctdRanking(ctx context.Context, origin models.Origin, args []string) {
	if len(args) < 2 {
		r.respondText(ctx, origin, "`%sctd ranking <levelId> <easy|hard|extreme>`", r.prefix)
		return
	}
	entries, err := r.provider.GetLeaderboard(ctx, args[0], args[1])
	if err != nil {
		r.log.WithError(err).WithField("level", args[0]).Warn("command: leaderboard lookup failed")
		r.respondText(ctx, origin, "Couldn't fetch that leaderboard.")
		return
	}
	if len(entries) == 0 {
		r.respondText(ctx, origin, "Nobody is on that leaderboard yet.")
		return
	}
	if len(entries) > 10 {
		entries = entries[:10]
	}
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "%d. **%s** - %d (%.2f%%)\n",
			entry.Rank, entry.OwnerName, entry.Record.Score, entry.Record.Accuracy*100)
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: &messaging.Embed{
		Title:       fmt.Sprintf("%s [%s] - leaderboard", args[0], args[1]),
		Description: sb.String(),
	}})
}

func (r *Router) ctdSearch(ctx context.Context, origin models.Origin, args []string) {
	if len(args) == 0 {
		r.respondText(ctx, origin, "`%sctd search <title>`", r.prefix)
		return
	}
	hits, err := r.provider.SearchLevels(ctx, strings.Join(args, " "))
	if err != nil {
		r.log.WithError(err).Warn("command: level search failed")
		r.respondText(ctx, origin, "Search failed, try again in a bit.")
		return
	}
	if len(hits) == 0 {
		r.respondText(ctx, origin, "Nothing found.")
		return
	}
	if len(hits) > 10 {
		hits = hits[:10]
	}
	var sb strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&sb, "**%s** - `%s`\n", hit.Title, hit.UID)
	}
	r.messenger.Respond(ctx, origin, messaging.Message{Embed: &messaging.Embed{
		Title:       "Levels found",
		Description: sb.String(),
	}})
}
