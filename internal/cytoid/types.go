// internal/cytoid/types.go
package cytoid

import (
	"strings"
	"time"
)

// Chart is one difficulty variant of a level.
type Chart struct {
	Type       string `json:"type"` // easy | hard | extreme
	Difficulty int    `json:"difficulty"`
	NotesCount int    `json:"notesCount"`
}

// DisplayName maps the wire chart type to its user-facing name.
func (c Chart) DisplayName() string {
	switch c.Type {
	case "easy":
		return "Easy"
	case "hard":
		return "Hard"
	case "extreme":
		return "Extreme"
	}
	if c.Type == "" {
		return "Unknown"
	}
	return strings.ToUpper(c.Type[:1]) + c.Type[1:]
}

// Level holds the subset of level metadata the bot reads.
type Level struct {
	UID         string  `json:"uid"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"` // seconds
	Charts      []Chart `json:"charts"`
	Artist      string  `json:"artist,omitempty"`
	Charter     string  `json:"charter,omitempty"`
	CoverURL    string  `json:"coverURL,omitempty"`
}

// PageURL returns the public page for the level.
func (l *Level) PageURL() string {
	return "https://cytoid.io/levels/" + l.UID
}

// HitDetails is the per-judgement breakdown of a play.
type HitDetails struct {
	Perfect  int64 `json:"perfect"`
	Great    int64 `json:"great"`
	Good     int64 `json:"good"`
	Bad      int64 `json:"bad"`
	Miss     int64 `json:"miss"`
	MaxCombo int64 `json:"maxCombo"`
}

// ScoreRecord is a single play, normalized from the two wire shapes the API
// uses (leaderboard rows and profile recent records).
type ScoreRecord struct {
	Date     time.Time  `json:"date"`
	Score    int64      `json:"score"`
	Accuracy float64    `json:"accuracy"` // 0..1
	Details  HitDetails `json:"details"`
	LevelUID string     `json:"levelUid"`
	ChartType string    `json:"chartType"`
}

// LeaderboardEntry is one row of a chart leaderboard.
type LeaderboardEntry struct {
	Rank      int64
	OwnerUID  string
	OwnerName string
	Record    ScoreRecord
}

// Profile is the minimal account projection used for binding.
type Profile struct {
	UID    string
	Rating float64
}

// LevelSummary is a search hit.
type LevelSummary struct {
	UID   string
	Title string
}
