// internal/models/user.go
package models

// User identifies a chat-platform account. ID is the platform's stable
// identifier; Username is display-only and may change.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Origin describes where a command arrived from, so replies can be addressed
// back to the right channel and author.
type Origin struct {
	ChannelID string
	GuildID   string
	User      User
}
