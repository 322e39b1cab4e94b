// internal/messaging/recorder.go
package messaging

import (
	"context"
	"sync"

	"github.com/okimu/okimu/internal/models"
)

// BroadcastRecord is one captured Broadcast call.
type BroadcastRecord struct {
	ChannelIDs []string
	Message    Message
}

// RespondRecord is one captured Respond call.
type RespondRecord struct {
	Origin  models.Origin
	Message Message
}

// Recorder is a Messenger that captures every send instead of delivering it.
// Used by tests across the room, challenge and protocol packages.
type Recorder struct {
	mu         sync.Mutex
	broadcasts []BroadcastRecord
	responses  []RespondRecord
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Broadcast(_ context.Context, channelIDs []string, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append([]string(nil), channelIDs...)
	r.broadcasts = append(r.broadcasts, BroadcastRecord{ChannelIDs: ids, Message: m})
}

func (r *Recorder) Respond(_ context.Context, origin models.Origin, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, RespondRecord{Origin: origin, Message: m})
}

// Broadcasts returns a copy of all captured Broadcast calls.
func (r *Recorder) Broadcasts() []BroadcastRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BroadcastRecord(nil), r.broadcasts...)
}

// Responses returns a copy of all captured Respond calls.
func (r *Recorder) Responses() []RespondRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RespondRecord(nil), r.responses...)
}

// LastBroadcast returns the most recent Broadcast, or nil if none happened.
func (r *Recorder) LastBroadcast() *BroadcastRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.broadcasts) == 0 {
		return nil
	}
	rec := r.broadcasts[len(r.broadcasts)-1]
	return &rec
}

// LastResponse returns the most recent Respond, or nil if none happened.
func (r *Recorder) LastResponse() *RespondRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		return nil
	}
	rec := r.responses[len(r.responses)-1]
	return &rec
}
