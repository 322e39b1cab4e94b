// internal/room/gauntlet.go

package room

import (
	"context"
	"fmt"
	"time"

	"github.com/okimu/okimu/internal/cytoid"
)

// GauntletRoom drains a queue of judged trials: each entry carries its own
// level and pass criteria. Like the playlist the room reopens after the
// queue drains.
type GauntletRoom struct {
	base
	queue         []queueItem
	freeEnqueue   bool
	breakDuration time.Duration
}

func NewGauntletRoom(name string, host Host, deps Deps) *GauntletRoom {
	r := &GauntletRoom{
		base:          newBase(KindGauntlet, name, host.User, host.ChannelID, deps),
		breakDuration: time.Minute,
	}
	r.self = r
	return r
}

func (r *GauntletRoom) CanEnqueue(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freeEnqueue || userID == r.host.ID
}

// Enqueue appends one judged trial to the queue.
func (r *GauntletRoom) Enqueue(level *cytoid.Level, chartIndex int, crit Criteria) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, queueItem{level: level, chartIndex: chartIndex, criteria: &crit})
}

func (r *GauntletRoom) dequeue() (queueItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return queueItem{}, false
	}
	item := r.queue[0]
	r.queue = r.queue[1:]
	return item, true
}

func (r *GauntletRoom) Configure(field, value string) error {
	return configureQueueRoom(&r.base, field, value, &r.freeEnqueue, &r.breakDuration)
}

// Start drains the trial queue, judging each round against its criteria,
// then reopens the room.
func (r *GauntletRoom) Start(ctx context.Context) error {
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
		r.playTrial(ctx, round, item)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	r.broadcast(ctx, playlistDone(r.Name()))
	return nil
}

func (r *GauntletRoom) playTrial(ctx context.Context, round int, item queueItem) {
	chart := item.level.Charts[item.chartIndex]
	window := r.roundWindow(item.level)
	roundStart := time.Now()
	r.broadcast(ctx, roundAnnouncement(r.Name(), item.level, chart, item.criteria, window))

	r.sleep(ctx, window)

	plays := r.collectPlays(ctx, roundStart, window, item.level.UID, chart.Type)
	passed, failed := splitByCriteria(plays, *item.criteria)
	r.broadcast(ctx, verdictEmbed(fmt.Sprintf("%s - Trial %d results", r.Name(), round), *item.criteria, passed, failed))
}

func (r *GauntletRoom) Information() Info {
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
		info.Criteria = head.criteria
	}
	return info
}
