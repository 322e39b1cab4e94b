// internal/cytoid/client.go
package cytoid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Cytoid services endpoint.
const DefaultBaseURL = "https://services.cytoid.io"

var (
	// ErrLevelNotFound is returned when the API reports no such level.
	ErrLevelNotFound = errors.New("cytoid: level not found")
	// ErrProfileNotFound is returned when the API reports no such profile.
	ErrProfileNotFound = errors.New("cytoid: profile not found")
	// ErrNoRecentPlay is returned when a profile has no recorded plays.
	ErrNoRecentPlay = errors.New("cytoid: no recent play")
)

// Client talks to the Cytoid public API. An optional Redis client enables a
// read-through cache for level metadata; when nil, every call hits the
// network.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string

	rdb      *redis.Client
	cacheTTL time.Duration

	log *logrus.Logger
}

// NewClient builds a Client. baseURL may be empty to use DefaultBaseURL;
// rdb may be nil to disable the level cache.
func NewClient(baseURL, userAgent string, rdb *redis.Client, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		rdb:        rdb,
		cacheTTL:   10 * time.Minute,
		log:        log,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("cytoid: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cytoid: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errStatusNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cytoid: %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cytoid: read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("cytoid: decode %s: %w", path, err)
	}
	return nil
}

var errStatusNotFound = errors.New("cytoid: status 404")

// wire shapes; only the fields the bot reads.

type wireChart struct {
	Type       string `json:"type"`
	Difficulty int    `json:"difficulty"`
	NotesCount int    `json:"notesCount"`
}

type wireLevel struct {
	UID         string      `json:"uid"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Charts      []wireChart `json:"charts"`
	Metadata    struct {
		Artist  struct{ Name string `json:"name"` } `json:"artist"`
		Charter struct{ Name string `json:"name"` } `json:"charter"`
	} `json:"metadata"`
	Cover struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"cover"`
}

func (w *wireLevel) toLevel() *Level {
	lvl := &Level{
		UID:         w.UID,
		Title:       w.Title,
		Description: w.Description,
		Duration:    w.Duration,
		Artist:      w.Metadata.Artist.Name,
		Charter:     w.Metadata.Charter.Name,
		CoverURL:    w.Cover.Thumbnail,
	}
	for _, ch := range w.Charts {
		lvl.Charts = append(lvl.Charts, Chart{
			Type:       ch.Type,
			Difficulty: ch.Difficulty,
			NotesCount: ch.NotesCount,
		})
	}
	return lvl
}

// GetLevel fetches level metadata, consulting the Redis cache first.
func (c *Client) GetLevel(ctx context.Context, levelID string) (*Level, error) {
	cacheKey := "okimu:level:" + levelID
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var lvl Level
			if err := json.Unmarshal(raw, &lvl); err == nil {
				return &lvl, nil
			}
			// corrupt cache entry; fall through to the network
			c.rdb.Del(ctx, cacheKey)
		}
	}

	var w wireLevel
	if err := c.getJSON(ctx, "/levels/"+url.PathEscape(levelID), &w); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, ErrLevelNotFound
		}
		return nil, err
	}
	lvl := w.toLevel()

	if c.rdb != nil {
		if raw, err := json.Marshal(lvl); err == nil {
			if err := c.rdb.Set(ctx, cacheKey, raw, c.cacheTTL).Err(); err != nil {
				c.log.WithError(err).Warn("cytoid: level cache write failed")
			}
		}
	}
	return lvl, nil
}

type wireLeaderboardRow struct {
	Date     time.Time  `json:"date"`
	Score    int64      `json:"score"`
	Accuracy float64    `json:"accuracy"`
	Details  HitDetails `json:"details"`
	Rank     int64      `json:"rank"`
	Owner    struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	} `json:"owner"`
}

// GetLeaderboard fetches the ranked records for one chart of a level.
func (c *Client) GetLeaderboard(ctx context.Context, levelUID, chartType string) ([]LeaderboardEntry, error) {
	path := fmt.Sprintf("/levels/%s/charts/%s/records?limit=255",
		url.PathEscape(levelUID), url.PathEscape(chartType))

	var rows []wireLeaderboardRow
	if err := c.getJSON(ctx, path, &rows); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, ErrLevelNotFound
		}
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:      r.Rank,
			OwnerUID:  r.Owner.UID,
			OwnerName: r.Owner.Name,
			Record: ScoreRecord{
				Date:      r.Date,
				Score:     r.Score,
				Accuracy:  r.Accuracy,
				Details:   r.Details,
				LevelUID:  levelUID,
				ChartType: chartType,
			},
		})
	}
	return entries, nil
}

type wireProfile struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Rating float64 `json:"rating"`
}

// GetProfile resolves a Cytoid account; used when binding a platform user.
func (c *Client) GetProfile(ctx context.Context, cytoidID string) (*Profile, error) {
	var w wireProfile
	if err := c.getJSON(ctx, "/profile/"+url.PathEscape(cytoidID), &w); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &Profile{UID: w.User.UID, Rating: w.Rating}, nil
}

type wireRecentRecord struct {
	Date     time.Time  `json:"date"`
	Score    int64      `json:"score"`
	Accuracy string     `json:"accuracy"` // the details endpoint sends this as a string
	Details  HitDetails `json:"details"`
	Chart    struct {
		Type  string `json:"type"`
		Level struct {
			UID string `json:"uid"`
		} `json:"level"`
	} `json:"chart"`
}

type wireProfileDetails struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	RecentRecords []wireRecentRecord `json:"recentRecords"`
}

// GetMostRecentPlay returns the newest play on a Cytoid profile, or
// ErrNoRecentPlay if the profile has none.
func (c *Client) GetMostRecentPlay(ctx context.Context, cytoidID string) (*ScoreRecord, error) {
	var w wireProfileDetails
	if err := c.getJSON(ctx, "/profile/"+url.PathEscape(cytoidID)+"/details", &w); err != nil {
		if errors.Is(err, errStatusNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if len(w.RecentRecords) == 0 {
		return nil, ErrNoRecentPlay
	}

	r := w.RecentRecords[0]
	acc, err := strconv.ParseFloat(r.Accuracy, 64)
	if err != nil {
		return nil, fmt.Errorf("cytoid: parse accuracy %q: %w", r.Accuracy, err)
	}
	return &ScoreRecord{
		Date:      r.Date,
		Score:     r.Score,
		Accuracy:  acc,
		Details:   r.Details,
		LevelUID:  r.Chart.Level.UID,
		ChartType: r.Chart.Type,
	}, nil
}

type wireSearchHit struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
}

// SearchLevels queries the level search endpoint, newest first.
func (c *Client) SearchLevels(ctx context.Context, query string) ([]LevelSummary, error) {
	path := "/search/levels?search=" + url.QueryEscape(query) +
		"&page=0&sort=creation_date&order=desc&limit=24"

	var hits []wireSearchHit
	if err := c.getJSON(ctx, path, &hits); err != nil {
		return nil, err
	}
	results := make([]LevelSummary, 0, len(hits))
	for _, h := range hits {
		results = append(results, LevelSummary{UID: h.UID, Title: h.Title})
	}
	return results, nil
}
