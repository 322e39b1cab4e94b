// internal/cytoid/client_test.go
package cytoid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetLevel(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/levels/io.cytoid.wonderland": `{
			"uid": "io.cytoid.wonderland",
			"title": "Wonderland",
			"description": "a test level",
			"duration": 153.2,
			"charts": [
				{"type": "easy", "difficulty": 5, "notesCount": 320},
				{"type": "hard", "difficulty": 11, "notesCount": 640}
			],
			"metadata": {"artist": {"name": "someone"}, "charter": {"name": "else"}},
			"cover": {"thumbnail": "https://example.com/cover.png"}
		}`,
	})

	c := NewClient(srv.URL, "okimu-test", nil, nil)
	lvl, err := c.GetLevel(context.Background(), "io.cytoid.wonderland")
	require.NoError(t, err)

	assert.Equal(t, "Wonderland", lvl.Title)
	assert.InDelta(t, 153.2, lvl.Duration, 1e-9)
	require.Len(t, lvl.Charts, 2)
	assert.Equal(t, "Hard", lvl.Charts[1].DisplayName())
	assert.Equal(t, 11, lvl.Charts[1].Difficulty)
	assert.Equal(t, "someone", lvl.Artist)
	assert.Equal(t, "https://cytoid.io/levels/io.cytoid.wonderland", lvl.PageURL())
}

func TestGetLevelNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(srv.URL, "okimu-test", nil, nil)

	_, err := c.GetLevel(context.Background(), "missing.level")
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestGetMostRecentPlay(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/profile/tester/details": `{
			"user": {"uid": "tester"},
			"recentRecords": [{
				"date": "2024-03-01T12:00:00.000Z",
				"score": 987654,
				"accuracy": "0.9876",
				"details": {"perfect": 500, "great": 20, "good": 3, "bad": 1, "miss": 2, "maxCombo": 431},
				"chart": {"type": "extreme", "level": {"uid": "io.cytoid.wonderland"}}
			}]
		}`,
	})

	c := NewClient(srv.URL, "okimu-test", nil, nil)
	rec, err := c.GetMostRecentPlay(context.Background(), "tester")
	require.NoError(t, err)

	assert.Equal(t, int64(987654), rec.Score)
	assert.InDelta(t, 0.9876, rec.Accuracy, 1e-9)
	assert.Equal(t, int64(431), rec.Details.MaxCombo)
	assert.Equal(t, "io.cytoid.wonderland", rec.LevelUID)
	assert.Equal(t, "extreme", rec.ChartType)
}

func TestGetMostRecentPlayEmpty(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/profile/fresh/details": `{"user": {"uid": "fresh"}, "recentRecords": []}`,
	})

	c := NewClient(srv.URL, "okimu-test", nil, nil)
	_, err := c.GetMostRecentPlay(context.Background(), "fresh")
	assert.ErrorIs(t, err, ErrNoRecentPlay)
}

func TestGetLeaderboard(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/levels/io.cytoid.wonderland/charts/hard/records": `[
			{"date": "2024-03-01T12:00:00.000Z", "score": 999000, "accuracy": 0.999,
			 "details": {"maxCombo": 640}, "rank": 1, "owner": {"uid": "alpha", "name": "Alpha"}},
			{"date": "2024-03-01T11:00:00.000Z", "score": 978000, "accuracy": 0.981,
			 "details": {"maxCombo": 512}, "rank": 2, "owner": {"uid": "beta", "name": "Beta"}}
		]`,
	})

	c := NewClient(srv.URL, "okimu-test", nil, nil)
	entries, err := c.GetLeaderboard(context.Background(), "io.cytoid.wonderland", "hard")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alpha", entries[0].OwnerUID)
	assert.Equal(t, int64(999000), entries[0].Record.Score)
	assert.Equal(t, "hard", entries[1].Record.ChartType)
}
