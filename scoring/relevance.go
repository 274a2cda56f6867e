// Package scoring holds the relevance math shared by feed ranking and search.
// Every function here is pure: same inputs, same score, no I/O.
package scoring

import (
	"math"
	"strings"
	"time"

	"pulse_server/models"
)

// Weights of the composite relevance score
type Weights struct {
	Recency      float64
	Engagement   float64
	Relationship float64
	Quality      float64
	Preference   float64
}

// DefaultWeights sum to 1.0
var DefaultWeights = Weights{
	Recency:      0.25,
	Engagement:   0.35,
	Relationship: 0.20,
	Quality:      0.15,
	Preference:   0.05,
}

// NeutralPreference is used until a learned preference signal exists
const NeutralPreference = 0.5

// recencyDecayHours is the e-folding time of the recency decay
const recencyDecayHours = 24.0

// Components are the sub-scores of one candidate, each in [0,1]
type Components struct {
	Recency      float64 `json:"recency"`
	Engagement   float64 `json:"engagement"`
	Relationship float64 `json:"relationship"`
	Quality      float64 `json:"quality"`
	Preference   float64 `json:"preference"`
}

// Combine returns Σ(weight × subscore) × modifier
func (w Weights) Combine(c Components, modifier float64) float64 {
	sum := w.Recency*c.Recency +
		w.Engagement*c.Engagement +
		w.Relationship*c.Relationship +
		w.Quality*c.Quality +
		w.Preference*c.Preference
	return sum * modifier
}

// Recency decays exponentially from 1 at creation towards 0.
// Content stamped in the future counts as brand new.
func Recency(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours <= 0 {
		return 1
	}
	return math.Exp(-hours / recencyDecayHours)
}

// Maxima are the per-counter normalisation denominators
type Maxima struct {
	Likes    float64
	Comments float64
	Shares   float64
	Saves    float64
	Views    float64
}

// BaselineMaxima keep small corpora from inflating every counter to 1.0
var BaselineMaxima = Maxima{Likes: 10, Comments: 5, Shares: 3, Saves: 3, Views: 100}

// MaximaFrom derives the denominators from the most-liked item, floored at the baseline.
// A nil item yields the baseline.
func MaximaFrom(top *models.ContentItem) Maxima {
	m := BaselineMaxima
	if top == nil {
		return m
	}
	m.Likes = math.Max(m.Likes, float64(len(top.Likes)))
	m.Comments = math.Max(m.Comments, float64(top.CommentCount))
	m.Shares = math.Max(m.Shares, float64(top.ShareCount))
	m.Saves = math.Max(m.Saves, float64(len(top.Saves)))
	m.Views = math.Max(m.Views, float64(top.ViewCount))
	return m
}

// EngagementRate is (likes+comments+shares+saves)/max(views,1) × 100
func EngagementRate(likes, comments, shares, saves, views int) float64 {
	if views < 1 {
		views = 1
	}
	return float64(likes+comments+shares+saves) / float64(views) * 100
}

// Engagement normalises an item's counters against the corpus maxima
func Engagement(item *models.ContentItem, m Maxima) float64 {
	score := 0.30*ratio(float64(len(item.Likes)), m.Likes) +
		0.25*ratio(float64(item.CommentCount), m.Comments) +
		0.20*ratio(float64(item.ShareCount), m.Shares) +
		0.15*ratio(float64(len(item.Saves)), m.Saves) +
		0.10*math.Min(item.EngagementRate/100, 1)
	return math.Min(score, 1)
}

// Affinity is what the graph says about a viewer and an author
type Affinity struct {
	Self             bool
	Follows          bool    // viewer follows author
	CloseFriend      bool    // author is in viewer's close friends
	Mutual           bool    // author also follows viewer
	InteractionRatio float64 // viewer likes+comments on author's recent posts / author's recent posts
}

// Relationship scores how close the viewer is to the author
func Relationship(a Affinity) float64 {
	if a.Self {
		return 1
	}
	score := 0.1
	if a.Follows {
		score += 0.3
	}
	if a.CloseFriend {
		score += 0.3
	}
	if a.Mutual {
		score += 0.2
	}
	score += 0.2 * clamp01(a.InteractionRatio)
	return math.Min(score, 1)
}

// ContentQuality is a heuristic on the item's own shape
func ContentQuality(item *models.ContentItem) float64 {
	score := 0.5
	if item.HasVideo() {
		score += 0.2
	}
	if len(strings.TrimSpace(item.Text)) > 10 {
		score += 0.1
	}
	if len(item.Hashtags) > 0 {
		score += 0.1
	}
	if item.ViewCount > 0 && float64(len(item.Likes))/float64(item.ViewCount) > 0.1 {
		score += 0.1
	}
	return math.Min(score, 1)
}

// Activity is the viewer's recent activity level
type Activity int

const (
	ActivityNormal Activity = iota
	ActivityHigh
	ActivityLow
)

// Context is the request-time situation of the viewer
type Context struct {
	LocalHour int // 0-23, -1 when unknown
	Mobile    bool
	Activity  Activity
}

// ContextModifier composes the situational multipliers
func ContextModifier(c Context) float64 {
	modifier := 1.0
	if c.LocalHour >= 0 && (c.LocalHour >= 22 || c.LocalHour < 6) {
		modifier *= 0.8
	}
	if c.Mobile {
		modifier *= 1.1
	}
	switch c.Activity {
	case ActivityHigh:
		modifier *= 1.2
	case ActivityLow:
		modifier *= 0.8
	}
	return modifier
}

// typeBoost favours richer formats on the lightweight ranking path
var typeBoost = map[string]float64{
	models.ContentTypeVideo:    1.15,
	models.ContentTypeCarousel: 1.05,
	models.ContentTypePhoto:    1.0,
	models.ContentTypeText:     0.95,
}

// SimpleScore is the reduced formula of the lightweight ranking path:
// recency, engagement and relationship only, scaled by a content-type boost.
func SimpleScore(item *models.ContentItem, m Maxima, a Affinity, now time.Time) float64 {
	base := 0.4*Recency(item.CreatedAt, now) +
		0.35*Engagement(item, m) +
		0.25*Relationship(a)
	boost, ok := typeBoost[item.ContentType]
	if !ok {
		boost = 1
	}
	return base * boost
}

// BaseScore is the viewer-independent part of the score, cached on the item
// as algorithmScore after every engagement change.
func BaseScore(item *models.ContentItem, m Maxima, now time.Time) float64 {
	return DefaultWeights.Combine(Components{
		Recency:      Recency(item.CreatedAt, now),
		Engagement:   Engagement(item, m),
		Relationship: 0,
		Quality:      ContentQuality(item),
		Preference:   NeutralPreference,
	}, 1)
}

func ratio(v, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return clamp01(v / ceiling)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
