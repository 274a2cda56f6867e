package scoring

import (
	"math"
	"strings"

	"pulse_server/models"
)

// connection affinity of a search hit, weighted at connectionWeight
const (
	connectionCloseFriend = 0.8
	connectionMutual      = 0.6
	connectionFollowing   = 0.4
	connectionNone        = 0.1
	connectionWeight      = 0.1
)

// popularityFollowers is the follower count at which popularity saturates
const popularityFollowers = 10000.0

// ConnectionAffinity ranks the strongest edge between searcher and hit
func ConnectionAffinity(a Affinity) float64 {
	switch {
	case a.CloseFriend:
		return connectionCloseFriend
	case a.Mutual:
		return connectionMutual
	case a.Follows:
		return connectionFollowing
	default:
		return connectionNone
	}
}

// UserMatch scores a user against a query. The second result is false when
// the query matches none of the user's text fields.
func UserMatch(query string, user *models.UserProfile, a Affinity) (float64, bool) {
	q := normalize(query)
	if q == "" {
		return 0, false
	}

	username := strings.ToLower(user.Username)
	var text float64
	switch {
	case username == q:
		text += 0.5
	case strings.Contains(username, q):
		text += 0.25
	}
	if strings.Contains(strings.ToLower(user.DisplayName), q) {
		text += 0.3
	}
	if strings.Contains(strings.ToLower(user.Bio), q) {
		text += 0.1
	}
	if text == 0 {
		return 0, false
	}

	popularity := math.Min(float64(user.FollowerCount)/popularityFollowers, 1) * 0.3
	return text + popularity + connectionWeight*ConnectionAffinity(a), true
}

// PostMatch scores a post against a query on text, hashtags and location,
// plus a small engagement bonus
func PostMatch(query string, item *models.ContentItem, m Maxima) (float64, bool) {
	q := normalize(query)
	if q == "" {
		return 0, false
	}
	tag := strings.TrimPrefix(q, "#")

	var text float64
	if strings.Contains(strings.ToLower(item.Text), q) {
		text += 0.4
	}
	for _, h := range item.Hashtags {
		if strings.HasPrefix(strings.ToLower(h), tag) {
			text += 0.3
			break
		}
	}
	if item.Location != "" && strings.Contains(strings.ToLower(item.Location), q) {
		text += 0.2
	}
	if text == 0 {
		return 0, false
	}
	return text + 0.1*Engagement(item, m), true
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
