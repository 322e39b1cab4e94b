// internal/room/playlist.go

package room

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okimu/okimu/internal/cytoid"
)

// ErrQueueEmpty is returned by Start when there is nothing to play.
var ErrQueueEmpty = errors.New("room: queue is empty")

// queueItem is one pending round of a queue room.
type queueItem struct {
	level      *cytoid.Level
	chartIndex int
	criteria   *Criteria
}

// PlaylistRoom drains a queue of levels, playing one ranked round per entry
// with a configurable break in between, then returns to the open state.
type PlaylistRoom struct {
	base
	queue         []queueItem
	freeEnqueue   bool
	breakDuration time.Duration

	maxScoreboard int
}

func NewPlaylistRoom(name string, host Host, deps Deps) *PlaylistRoom {
	r := &PlaylistRoom{
		base:          newBase(KindPlaylist, name, host.User, host.ChannelID, deps),
		breakDuration: time.Minute,
		maxScoreboard: 10,
	}
	r.self = r
	return r
}

// CanEnqueue reports whether user may add to the queue: always the host,
// anyone when free enqueue is on.
func (r *PlaylistRoom) CanEnqueue(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freeEnqueue || userID == r.host.ID
}

// Enqueue appends one level round to the queue.
func (r *PlaylistRoom) Enqueue(level *cytoid.Level, chartIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, queueItem{level: level, chartIndex: chartIndex})
}

// dequeue pops the head of the queue under the lock.
func (r *PlaylistRoom) dequeue() (queueItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return queueItem{}, false
	}
	item := r.queue[0]
	r.queue = r.queue[1:]
	return item, true
}

// Configure extends the shared settings with the queue knobs.
func (r *PlaylistRoom) Configure(field, value string) error {
	return configureQueueRoom(&r.base, field, value, &r.freeEnqueue, &r.breakDuration)
}

// configureQueueRoom handles the settings only queue rooms carry, falling
// back to the shared ones. The extra fields are guarded by the base lock.
func configureQueueRoom(b *base, field, value string, freeEnqueue *bool, breakDuration *time.Duration) error {
	switch field {
	case "free_enqueue":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%q is not a valid boolean", value)
		}
		b.mu.Lock()
		*freeEnqueue = on
		b.mu.Unlock()
		return nil
	case "break_duration":
		minutes, err := strconv.Atoi(value)
		if err != nil || minutes < 0 {
			return fmt.Errorf("%q is not a valid number of minutes", value)
		}
		b.mu.Lock()
		*breakDuration = time.Duration(minutes) * time.Minute
		b.mu.Unlock()
		return nil
	}
	return b.Configure(field, value)
}

// Start drains the queue: one ranked round per entry, a break between
// rounds, then the room reopens for more enqueues.
func (r *PlaylistRoom) Start(ctx context.Context) error {
	r.mu.Lock()
	empty := len(r.queue) == 0
	r.mu.Unlock()
	if empty {
		return ErrQueueEmpty
	}
	if err := r.markStarted(); err != nil {
		return err
	}
	defer r.reopen()

	r.sleep(ctx, r.deps.StartLead)

	round := 0
	for {
		item, ok := r.dequeue()
		if !ok {
			break
		}
		if round > 0 {
			r.mu.Lock()
			pause := r.breakDuration
			r.mu.Unlock()
			r.broadcast(ctx, roundBreak(r.Name(), pause))
			r.sleep(ctx, pause)
		}
		round++
		r.playRound(ctx, round, item)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	r.broadcast(ctx, playlistDone(r.Name()))
	return nil
}

func (r *PlaylistRoom) playRound(ctx context.Context, round int, item queueItem) {
	chart := item.level.Charts[item.chartIndex]
	window := r.roundWindow(item.level)
	roundStart := time.Now()
	r.broadcast(ctx, roundAnnouncement(r.Name(), item.level, chart, nil, window))

	r.sleep(ctx, window)

	plays := r.collectPlays(ctx, roundStart, window, item.level.UID, chart.Type)
	ranked := rankByScore(plays)
	if len(ranked) > r.maxScoreboard {
		ranked = ranked[:r.maxScoreboard]
	}
	r.broadcast(ctx, scoreboardEmbed(fmt.Sprintf("%s - Round %d results", r.Name(), round), ranked))
}

func (r *PlaylistRoom) Information() Info {
	r.mu.Lock()
	queueLen := len(r.queue)
	free := r.freeEnqueue
	var head queueItem
	if queueLen > 0 {
		head = r.queue[0]
	}
	r.mu.Unlock()

	info := r.baseInfo()
	info.QueueLength = queueLen
	info.FreeEnqueue = &free
	if queueLen > 0 {
		info.Level = head.level
		c := head.level.Charts[head.chartIndex]
		info.Chart = &c
	}
	return info
}
