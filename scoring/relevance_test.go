package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse_server/models"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestRecency(t *testing.T) {
	require.Equal(t, 1.0, Recency(now, now))
	require.Equal(t, 1.0, Recency(now.Add(time.Hour), now), "future timestamps count as new")
	require.InDelta(t, math.Exp(-1), Recency(now.Add(-24*time.Hour), now), 1e-9)
	require.Greater(t, Recency(now.Add(-90*24*time.Hour), now), 0.0)
}

func TestRecency_StrictlyMonotonic(t *testing.T) {
	older := Recency(now.Add(-5*time.Hour), now)
	newer := Recency(now.Add(-4*time.Hour), now)
	require.Greater(t, newer, older)
}

func TestMaximaFrom(t *testing.T) {
	require.Equal(t, BaselineMaxima, MaximaFrom(nil))

	top := &models.ContentItem{
		Likes:        make([]string, 250),
		CommentCount: 2,
		ShareCount:   40,
		ViewCount:    9000,
	}
	m := MaximaFrom(top)
	require.Equal(t, 250.0, m.Likes)
	require.Equal(t, BaselineMaxima.Comments, m.Comments, "floored at the baseline")
	require.Equal(t, 40.0, m.Shares)
	require.Equal(t, 9000.0, m.Views)
}

func TestEngagementRate(t *testing.T) {
	require.Equal(t, 400.0, EngagementRate(1, 1, 1, 1, 0))
	require.Equal(t, 10.0, EngagementRate(5, 3, 1, 1, 100))
}

func TestEngagement(t *testing.T) {
	m := Maxima{Likes: 10, Comments: 10, Shares: 10, Saves: 10, Views: 100}

	empty := &models.ContentItem{}
	require.Zero(t, Engagement(empty, m))

	saturated := &models.ContentItem{
		Likes:          make([]string, 50),
		Saves:          make([]string, 50),
		CommentCount:   50,
		ShareCount:     50,
		EngagementRate: 900,
	}
	require.InDelta(t, 1.0, Engagement(saturated, m), 1e-9)

	half := &models.ContentItem{Likes: make([]string, 5)}
	require.InDelta(t, 0.15, Engagement(half, m), 1e-9)
}

func TestRelationship(t *testing.T) {
	tests := []struct {
		name     string
		affinity Affinity
		want     float64
	}{
		{"self", Affinity{Self: true}, 1.0},
		{"stranger", Affinity{}, 0.1},
		{"follows", Affinity{Follows: true}, 0.4},
		{"close friend", Affinity{Follows: true, CloseFriend: true}, 0.7},
		{"mutual close friend", Affinity{Follows: true, CloseFriend: true, Mutual: true}, 0.9},
		{"capped", Affinity{Follows: true, CloseFriend: true, Mutual: true, InteractionRatio: 3}, 1.0},
		{"half interaction", Affinity{Follows: true, InteractionRatio: 0.5}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Relationship(tt.affinity), 1e-9)
		})
	}
}

func TestContentQuality(t *testing.T) {
	require.Equal(t, 0.5, ContentQuality(&models.ContentItem{Text: "short"}))

	rich := &models.ContentItem{
		Text:      "a long enough caption",
		Hashtags:  []string{"sunset"},
		Media:     []models.MediaItem{{Type: models.MediaVideo}},
		Likes:     make([]string, 20),
		ViewCount: 100,
	}
	require.InDelta(t, 1.0, ContentQuality(rich), 1e-9)
}

func TestContextModifier(t *testing.T) {
	require.Equal(t, 1.0, ContextModifier(Context{LocalHour: -1}))
	require.InDelta(t, 0.8, ContextModifier(Context{LocalHour: 23}), 1e-9)
	require.InDelta(t, 0.8, ContextModifier(Context{LocalHour: 5}), 1e-9)
	require.Equal(t, 1.0, ContextModifier(Context{LocalHour: 6}))
	require.InDelta(t, 0.8*1.1*1.2, ContextModifier(Context{LocalHour: 2, Mobile: true, Activity: ActivityHigh}), 1e-9)
	require.InDelta(t, 0.8, ContextModifier(Context{LocalHour: 12, Activity: ActivityLow}), 1e-9)
}

func TestCombine(t *testing.T) {
	all := Components{Recency: 1, Engagement: 1, Relationship: 1, Quality: 1, Preference: 1}
	require.InDelta(t, 1.0, DefaultWeights.Combine(all, 1), 1e-9)
	require.InDelta(t, 1.1, DefaultWeights.Combine(all, 1.1), 1e-9)
}

func TestSimpleScore_TypeBoost(t *testing.T) {
	video := &models.ContentItem{ContentType: models.ContentTypeVideo, CreatedAt: now}
	text := &models.ContentItem{ContentType: models.ContentTypeText, CreatedAt: now}

	require.Greater(t,
		SimpleScore(video, BaselineMaxima, Affinity{Follows: true}, now),
		SimpleScore(text, BaselineMaxima, Affinity{Follows: true}, now))
}
