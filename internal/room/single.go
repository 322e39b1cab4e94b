// internal/room/single.go

package room

import (
	"context"
	"time"

	"github.com/okimu/okimu/internal/cytoid"
)

// SingleRoom plays exactly one level, once, then disposes itself.
type SingleRoom struct {
	base
	level      *cytoid.Level
	chartIndex int
}

// NewSingleRoom binds the round's level at creation; the chart index must
// be valid for the level.
func NewSingleRoom(name string, host Host, level *cytoid.Level, chartIndex int, deps Deps) *SingleRoom {
	r := &SingleRoom{
		base:       newBase(KindSingle, name, host.User, host.ChannelID, deps),
		level:      level,
		chartIndex: chartIndex,
	}
	r.self = r
	return r
}

func (r *SingleRoom) chart() cytoid.Chart { return r.level.Charts[r.chartIndex] }

// Start announces the round, waits out the play window, verifies every
// roster member's most recent play and broadcasts the ranking. The room is
// disposed afterwards regardless of outcome.
func (r *SingleRoom) Start(ctx context.Context) error {
	if err := r.markStarted(); err != nil {
		return err
	}

	window := r.roundWindow(r.level)
	roundStart := time.Now()
	r.broadcast(ctx, roundAnnouncement(r.Name(), r.level, r.chart(), nil, window))

	r.sleep(ctx, window)

	plays := r.collectPlays(ctx, roundStart, window, r.level.UID, r.chart().Type)
	r.broadcast(ctx, scoreboardEmbed(r.Name()+" - Results", rankByScore(plays)))

	r.Dispose(ctx)
	return nil
}

func (r *SingleRoom) Information() Info {
	info := r.baseInfo()
	info.Level = r.level
	c := r.chart()
	info.Chart = &c
	return info
}
