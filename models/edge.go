package models

import "time"

// SocialEdge is a directed relation fromId -(kind)-> toId.
// Mutual follows are derived, never stored.
type SocialEdge struct {
	FromID    string    `dynamodbav:"fromId" json:"fromId"` // ✅ Partition Key
	EdgeKey   string    `dynamodbav:"edgeKey" json:"-"`     // ✅ Sort Key: kind#toId
	ToID      string    `dynamodbav:"toId" json:"toId"`     // ✅ GSI partition (toId-kind-index)
	Kind      string    `dynamodbav:"kind" json:"kind"`     // follows, blocked, close_friend
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// EdgeTargetIndex answers "who points at this actor" (followers)
const EdgeTargetIndex = "toId-kind-index"

// EdgeKeyFor builds the sort key of an edge
func EdgeKeyFor(kind, toID string) string {
	return kind + "#" + toID
}

// Relationship summarises the edges between a viewer and a target
type Relationship struct {
	Following   bool `json:"following"`
	FollowedBy  bool `json:"followedBy"`
	Mutual      bool `json:"mutual"`
	CloseFriend bool `json:"closeFriend"` // target is in viewer's close friends
	Blocked     bool `json:"blocked"`     // either side blocked the other
}
