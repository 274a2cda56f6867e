package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pulse_server/models"
	"pulse_server/scoring"
)

// AlgorithmSearch is the version tag of search pages
const AlgorithmSearch = "search-v1"

// searchPoolSize caps how many raw matches are pulled from the store per query
const searchPoolSize = 200

// SearchRequest is a free-text query with pagination
type SearchRequest struct {
	Query string `json:"q" validate:"required,max=100"`
	Page  int    `json:"page" validate:"min=0"`
	Limit int    `json:"limit" validate:"min=0,max=50"`
}

// SearchService applies the relevance scorers to free-text queries
type SearchService struct {
	Store   Store
	Maxima  *MaximaSource
	Media   *MediaService
	Timeout time.Duration

	now func() time.Time
}

func NewSearchService(store Store, maxima *MaximaSource, media *MediaService, timeout time.Duration) *SearchService {
	return &SearchService{Store: store, Maxima: maxima, Media: media, Timeout: timeout, now: time.Now}
}

func (s *SearchService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithTimeout(ctx, 3*time.Second)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func normalizeSearch(req SearchRequest) SearchRequest {
	req.Query = strings.TrimSpace(req.Query)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = models.DefaultFeedLimit
	}
	if req.Limit > models.MaxFeedLimit {
		req.Limit = models.MaxFeedLimit
	}
	return req
}

// pageOf slices one page out of an ordered result list
func pageOf[T any](ordered []T, limit, page int) *models.Page[T] {
	start := (page - 1) * limit
	items := []T{}
	hasMore := false
	if start < len(ordered) {
		end := min(start+limit, len(ordered))
		items = ordered[start:end]
		hasMore = end < len(ordered)
	}
	next := 0
	if hasMore {
		next = page + 1
	}
	return &models.Page[T]{Items: items, HasMore: hasMore, NextPage: next, AlgorithmVersion: AlgorithmSearch}
}

// degraded counts and logs a failed search dependency and returns the empty
// page served in its place. Results are never ranked without the block list.
func degraded[T any](kind, searcherID string, err error) *models.Page[T] {
	searchDegradedTotal.WithLabelValues(kind).Inc()
	serviceLog("search").Warn().Err(err).Str("kind", kind).Str("searcher", searcherID).Msg("search degraded to an empty result")
	return pageOf([]T(nil), 1, 1)
}

// SearchUsers ranks profiles by text match, popularity and connection to the
// searcher. Blocked actors never appear.
func (s *SearchService) SearchUsers(ctx context.Context, searcherID string, req SearchRequest) (*models.Page[models.UserResult], error) {
	searchRequestsTotal.WithLabelValues("users").Inc()
	req = normalizeSearch(req)
	if req.Query == "" {
		return pageOf([]models.UserResult(nil), req.Limit, req.Page), nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	graph, err := LoadViewerGraph(ctx, s.Store, searcherID)
	if err != nil {
		return degraded[models.UserResult]("users", searcherID, err), nil
	}
	users, err := s.Store.SearchUsers(ctx, strings.TrimPrefix(req.Query, "@"), searchPoolSize)
	if err != nil {
		return degraded[models.UserResult]("users", searcherID, fmt.Errorf("failed to search users: %w", err)), nil
	}

	results := make([]models.UserResult, 0, len(users))
	for i := range users {
		u := &users[i]
		if u.UserID == searcherID || graph.Blocked[u.UserID] {
			continue
		}
		score, ok := scoring.UserMatch(strings.TrimPrefix(req.Query, "@"), u, graph.Affinity(u.UserID))
		if !ok {
			continue
		}
		results = append(results, models.UserResult{
			UserID:      u.UserID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Photo:       u.Photo,
			Score:       score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Username < results[j].Username
	})

	page := pageOf(results, req.Limit, req.Page)
	for i := range page.Items {
		page.Items[i].Photo = s.signKey(ctx, page.Items[i].Photo)
	}
	return page, nil
}

// SearchPosts ranks the posts the searcher may see by text, hashtag and
// location match plus an engagement bonus
func (s *SearchService) SearchPosts(ctx context.Context, searcherID string, req SearchRequest) (*models.Page[models.RankedItem], error) {
	searchRequestsTotal.WithLabelValues("posts").Inc()
	req = normalizeSearch(req)
	if req.Query == "" {
		return pageOf([]models.RankedItem(nil), req.Limit, req.Page), nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	graph, err := LoadViewerGraph(ctx, s.Store, searcherID)
	if err != nil {
		return degraded[models.RankedItem]("posts", searcherID, err), nil
	}
	items, err := s.Store.SearchContent(ctx, req.Query, searchPoolSize)
	if err != nil {
		return degraded[models.RankedItem]("posts", searcherID, fmt.Errorf("failed to search posts: %w", err)), nil
	}

	maxima := scoring.BaselineMaxima
	if s.Maxima != nil {
		maxima = s.Maxima.Current(ctx)
	}
	now := s.now()

	ranked := make([]models.RankedItem, 0, len(items))
	for i := range items {
		item := &items[i]
		if !graph.CanSeeContent(ctx, item, now) {
			continue
		}
		score, ok := scoring.PostMatch(req.Query, item, maxima)
		if !ok {
			continue
		}
		ranked = append(ranked, models.RankedItem{ContentItem: *item, Score: score})
	}
	sortRanked(ranked)

	page := pageOf(ranked, req.Limit, req.Page)
	for i := range page.Items {
		s.Media.Sign(ctx, page.Items[i].Media)
	}
	return page, nil
}

// SearchTags lists distinct hashtags starting with the prefix, alphabetically
func (s *SearchService) SearchTags(ctx context.Context, req SearchRequest) (*models.Page[string], error) {
	searchRequestsTotal.WithLabelValues("tags").Inc()
	req = normalizeSearch(req)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prefix := strings.ToLower(strings.TrimPrefix(req.Query, "#"))
	tags, err := s.Store.DistinctTags(ctx, prefix, req.Page*req.Limit+1)
	if err != nil {
		return degraded[string]("tags", "", fmt.Errorf("failed to list tags: %w", err)), nil
	}
	return pageOf(tags, req.Limit, req.Page), nil
}

func (s *SearchService) signKey(ctx context.Context, key string) string {
	if key == "" || s.Media == nil || s.Media.Presigner == nil {
		return key
	}
	url, err := s.Media.GenerateReadURL(ctx, key)
	if err != nil {
		serviceLog("search").Warn().Err(err).Str("key", key).Msg("failed to sign avatar")
		return ""
	}
	return url
}
