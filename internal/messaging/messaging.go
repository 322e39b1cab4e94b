// internal/messaging/messaging.go

// Package messaging abstracts the chat platform's outbound surface. The core
// never talks to the platform directly; it addresses channels and command
// origins through a Messenger.
package messaging

import (
	"context"

	"github.com/okimu/okimu/internal/models"
)

// EmbedField is one titled line of an Embed.
type EmbedField struct {
	Name  string
	Value string
}

// Embed is a rich message body. Platform adapters render it however the
// platform allows; the core only fills fields in.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
	ImageURL    string
	LinkURL     string
	LinkLabel   string
}

// AddField appends a field and returns the embed for chaining.
func (e *Embed) AddField(name, value string) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value})
	return e
}

// Message is a single outbound chat message.
type Message struct {
	Content string
	Embed   *Embed
}

// Text builds a plain-content message.
func Text(content string) Message {
	return Message{Content: content}
}

// Messenger is the outbound messaging capability consumed by the core.
type Messenger interface {
	// Broadcast delivers a message to each listed channel.
	Broadcast(ctx context.Context, channelIDs []string, m Message)
	// Respond delivers a message back to a command's origin.
	Respond(ctx context.Context, origin models.Origin, m Message)
}

// MessageAll fans a message out for a room: the announcement channel alone
// when one is set, otherwise every channel players joined from.
func MessageAll(ctx context.Context, messenger Messenger, announcementChannel string, channels []string, m Message) {
	if announcementChannel != "" {
		messenger.Broadcast(ctx, []string{announcementChannel}, m)
		return
	}
	messenger.Broadcast(ctx, channels, m)
}
