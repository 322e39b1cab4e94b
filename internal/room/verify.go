// internal/room/verify.go

package room

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okimu/okimu/internal/cytoid"
	"github.com/okimu/okimu/internal/messaging"
	"github.com/okimu/okimu/internal/models"
)

// InWindow reports whether a play at date counts for a round that began at
// start: on or after the start, strictly before the window closes.
func InWindow(date, start time.Time, window time.Duration) bool {
	return !date.Before(start) && date.Before(start.Add(window))
}

// play pairs a roster member with their verified score for a round.
type play struct {
	User   models.User
	Record *cytoid.ScoreRecord
}

// collectPlays fetches each roster member's most recent play and keeps only
// those made within the round window on the round's level and chart.
// Provider failures and absent plays exclude the player, never the round.
func (b *base) collectPlays(ctx context.Context, roundStart time.Time, window time.Duration, levelUID, chartType string) []play {
	var plays []play
	for i, p := range b.Players() {
		if i > 0 {
			b.sleep(ctx, b.deps.VerifyDelay)
		}
		cytoidID := b.deps.Identities.CytoidID(p.ID)
		if cytoidID == "" {
			continue
		}
		rec, err := b.deps.Scores.GetMostRecentPlay(ctx, cytoidID)
		if err != nil {
			b.deps.Log.WithError(err).WithFields(logrus.Fields{
				"room": b.id, "user": p.ID, "player": cytoidID,
			}).Warn("room: score lookup failed, skipping player")
			continue
		}
		if !InWindow(rec.Date, roundStart, window) {
			continue
		}
		if rec.LevelUID != levelUID || rec.ChartType != chartType {
			continue
		}
		plays = append(plays, play{User: p, Record: rec})
	}
	return plays
}

// rankByScore orders plays by score descending. Ties keep roster order.
func rankByScore(plays []play) []play {
	ranked := append([]play(nil), plays...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Record.Score > ranked[j].Record.Score
	})
	return ranked
}

// splitByCriteria partitions plays into those satisfying the criteria and
// those that do not, each ordered by the judged value descending.
func splitByCriteria(plays []play, crit Criteria) (passed, failed []play) {
	for _, p := range plays {
		if crit.Satisfied(p.Record) {
			passed = append(passed, p)
		} else {
			failed = append(failed, p)
		}
	}
	byValue := func(list []play) {
		sort.SliceStable(list, func(i, j int) bool {
			return crit.Condition.Extract(list[i].Record) > crit.Condition.Extract(list[j].Record)
		})
	}
	byValue(passed)
	byValue(failed)
	return passed, failed
}

// roundAnnouncement is the embed that opens a round.
func roundAnnouncement(roomName string, level *cytoid.Level, chart cytoid.Chart, crit *Criteria, window time.Duration) messaging.Message {
	e := &messaging.Embed{
		Title:       fmt.Sprintf("%s - Round start!", roomName),
		Description: fmt.Sprintf("**%s**\n%s [%d]", level.Title, chart.DisplayName(), chart.Difficulty),
		ImageURL:    level.CoverURL,
		LinkURL:     level.PageURL(),
		LinkLabel:   level.Title,
	}
	e.AddField("Time to play", fmt.Sprintf("%d seconds", int(window.Seconds())))
	if crit != nil {
		e.AddField("Goal", crit.String())
	}
	return messaging.Message{Embed: e}
}

// roundBreak announces the pause between queued rounds.
func roundBreak(roomName string, pause time.Duration) messaging.Message {
	return messaging.Text(fmt.Sprintf("%s - Round over! Next round starts in %d minute(s).",
		roomName, int(pause.Minutes())))
}

// playlistDone announces a drained queue.
func playlistDone(roomName string) messaging.Message {
	return messaging.Text(fmt.Sprintf("%s - That was the last round! The room is open again, enqueue more levels to keep playing.", roomName))
}

// scoreboardEmbed renders a ranked score list, highest first.
func scoreboardEmbed(title string, ranked []play) messaging.Message {
	e := &messaging.Embed{Title: title}
	if len(ranked) == 0 {
		e.Description = "Nobody got their play in this round!"
		return messaging.Message{Embed: e}
	}
	var sb strings.Builder
	for i, p := range ranked {
		fmt.Fprintf(&sb, "%d. **%s** - %d (%.2f%%)\n",
			i+1, p.User.Username, p.Record.Score, p.Record.Accuracy*100)
	}
	e.Description = sb.String()
	return messaging.Message{Embed: e}
}

// verdictEmbed renders the passed and failed lists of a judged round.
func verdictEmbed(title string, crit Criteria, passed, failed []play) messaging.Message {
	e := &messaging.Embed{
		Title:       title,
		Description: fmt.Sprintf("Goal: %s", crit.String()),
	}
	e.AddField("Passed", playerLines(crit, passed))
	e.AddField("Failed", playerLines(crit, failed))
	return messaging.Message{Embed: e}
}

func playerLines(crit Criteria, list []play) string {
	if len(list) == 0 {
		return "None"
	}
	var sb strings.Builder
	for _, p := range list {
		fmt.Fprintf(&sb, "**%s** - %s\n", p.User.Username, formatValue(crit.Condition, p.Record))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatValue(cond Condition, rec *cytoid.ScoreRecord) string {
	switch cond {
	case ConditionAccuracy:
		return fmt.Sprintf("%.2f%%", rec.Accuracy*100)
	case ConditionMaxCombo:
		return fmt.Sprintf("%d combo", rec.Details.MaxCombo)
	default:
		return fmt.Sprintf("%d", rec.Score)
	}
}
