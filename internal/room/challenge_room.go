// internal/room/challenge_room.go

package room

import (
	"context"
	"time"

	"github.com/okimu/okimu/internal/cytoid"
)

// ChallengeRoom plays one level once, judged against a pass criteria
// instead of ranked, then disposes itself.
type ChallengeRoom struct {
	base
	level      *cytoid.Level
	chartIndex int
	criteria   Criteria
}

func NewChallengeRoom(name string, host Host, level *cytoid.Level, chartIndex int, crit Criteria, deps Deps) *ChallengeRoom {
	r := &ChallengeRoom{
		base:       newBase(KindChallenge, name, host.User, host.ChannelID, deps),
		level:      level,
		chartIndex: chartIndex,
		criteria:   crit,
	}
	r.self = r
	return r
}

func (r *ChallengeRoom) chart() cytoid.Chart { return r.level.Charts[r.chartIndex] }

// Start announces the round with its goal, waits out the window, then
// broadcasts who passed and who failed before disposing the room.
func (r *ChallengeRoom) Start(ctx context.Context) error {
	if err := r.markStarted(); err != nil {
		return err
	}

	window := r.roundWindow(r.level)
	roundStart := time.Now()
	r.broadcast(ctx, roundAnnouncement(r.Name(), r.level, r.chart(), &r.criteria, window))

	r.sleep(ctx, window)

	plays := r.collectPlays(ctx, roundStart, window, r.level.UID, r.chart().Type)
	passed, failed := splitByCriteria(plays, r.criteria)
	r.broadcast(ctx, verdictEmbed(r.Name()+" - Results", r.criteria, passed, failed))

	r.Dispose(ctx)
	return nil
}

func (r *ChallengeRoom) Information() Info {
	info := r.baseInfo()
	info.Level = r.level
	c := r.chart()
	info.Chart = &c
	crit := r.criteria
	info.Criteria = &crit
	return info
}
