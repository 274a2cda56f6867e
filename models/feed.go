package models

// Page is the response shape shared by feed and search
type Page[T any] struct {
	Items            []T    `json:"items"`
	HasMore          bool   `json:"hasMore"`
	NextPage         int    `json:"nextPage"`
	AlgorithmVersion string `json:"algorithmVersion"`
}

// RankedItem is a content item with the score it was ordered by
type RankedItem struct {
	ContentItem
	Score float64 `json:"score"`
}

// FeedRequest carries pagination and the viewing context of a feed read
type FeedRequest struct {
	Page        int    `json:"page" validate:"min=1"`
	Limit       int    `json:"limit" validate:"min=1,max=50"`
	ContentType string `json:"contentType,omitempty" validate:"omitempty,oneof=text photo video carousel"`
	LocalHour   int    `json:"localHour" validate:"min=-1,max=23"` // -1 when unknown
	Mobile      bool   `json:"mobile"`
}

// UserResult is a scored user search hit
type UserResult struct {
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName,omitempty"`
	Photo       string  `json:"photo,omitempty"`
	Score       float64 `json:"score"`
}

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 50
)
