package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"pulse_server/config"
	"pulse_server/models"
	"pulse_server/scoring"
)

// Algorithm version tags reported with each page
const (
	AlgorithmAdvanced      = "relevance-v2"
	AlgorithmSimple        = "simple-v1"
	AlgorithmChronological = "chronological-v1"
)

// candidateOverfetch widens the candidate fetch to leave room for items the
// visibility and content-type filters drop; the pool is cut after filtering
const candidateOverfetch = 3

// FeedService ranks a viewer's candidate pool into pages. Ranking failures
// degrade to simpler orderings; only a failed fallback fetch is an error.
type FeedService struct {
	Store  Store
	Maxima *MaximaSource
	Media  *MediaService
	Config config.FeedConfig

	breaker *gobreaker.CircuitBreaker[[]models.ContentItem]
	now     func() time.Time
}

func NewFeedService(store Store, maxima *MaximaSource, media *MediaService, cfg config.FeedConfig) *FeedService {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]models.ContentItem](gobreaker.Settings{
		Name:        "feed-candidates",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			serviceLog("feed").Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &FeedService{
		Store:   store,
		Maxima:  maxima,
		Media:   media,
		Config:  cfg,
		breaker: breaker,
		now:     time.Now,
	}
}

// normalize applies defaults and bounds to a feed request
func normalize(req models.FeedRequest) models.FeedRequest {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = models.DefaultFeedLimit
	}
	if req.Limit > models.MaxFeedLimit {
		req.Limit = models.MaxFeedLimit
	}
	if req.LocalHour < -1 || req.LocalHour > 23 {
		req.LocalHour = -1
	}
	return req
}

// Feed returns one ranked page for the viewer
func (s *FeedService) Feed(ctx context.Context, viewerID string, req models.FeedRequest) (*models.Page[models.RankedItem], error) {
	started := time.Now()
	defer func() { feedLatency.Observe(time.Since(started).Seconds()) }()

	log := serviceLog("feed")
	req = normalize(req)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	graph, err := LoadViewerGraph(reqCtx, s.Store, viewerID)
	if err != nil {
		log.Warn().Err(err).Str("viewer", viewerID).Msg("graph load failed, serving own content only")
		feedFallbacksTotal.WithLabelValues("graph").Inc()
		graph = &ViewerGraph{
			ViewerID:      viewerID,
			Following:     map[string]bool{},
			Followers:     map[string]bool{},
			CloseFriends:  map[string]bool{},
			Blocked:       map[string]bool{},
			store:         s.Store,
			inCloseCircle: map[string]bool{},
		}
	}

	authors := append([]string{viewerID}, graph.FollowedAuthors()...)
	now := s.now()
	scoringCtx := scoring.Context{LocalHour: req.LocalHour, Mobile: req.Mobile}

	// Advanced path
	candidates, err := s.breaker.Execute(func() ([]models.ContentItem, error) {
		return s.Store.ListContentByAuthors(reqCtx, s.candidateQuery(authors))
	})
	if err == nil {
		candidates = s.filter(reqCtx, graph, candidates, req.ContentType, now)
		feedCandidates.Observe(float64(len(candidates)))

		scoringCtx.Activity = activityLevel(viewerID, candidates)
		in := rankInput{
			graph:      graph,
			candidates: candidates,
			maxima:     s.maxima(reqCtx),
			context:    scoringCtx,
			lookback:   s.Config.InteractionLookback,
			now:        now,
		}
		ranked, err := scoreAll(reqCtx, candidates, advancedScorer(in), s.Config.ParallelThreshold)
		if err == nil {
			sortRanked(ranked)
			return s.page(ctx, ranked, viewerID, req, AlgorithmAdvanced), nil
		}
		log.Warn().Err(err).Str("viewer", viewerID).Msg("advanced scoring failed, using chronological order")
		feedFallbacksTotal.WithLabelValues("scoring").Inc()
		return s.page(ctx, chronological(candidates), viewerID, req, AlgorithmChronological), nil
	}

	reason := "fetch"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		reason = "breaker_open"
	}
	log.Warn().Err(err).Str("viewer", viewerID).Str("reason", reason).Msg("advanced candidate fetch unavailable, using simple path")
	feedFallbacksTotal.WithLabelValues(reason).Inc()

	// Simple path: own + followed content on a fresh deadline
	fallbackCtx, cancelFallback := context.WithTimeout(ctx, s.timeout())
	defer cancelFallback()

	candidates, err = s.Store.ListContentByAuthors(fallbackCtx, s.candidateQuery(authors))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed candidates: %w", err)
	}
	candidates = s.filter(fallbackCtx, graph, candidates, req.ContentType, now)
	feedCandidates.Observe(float64(len(candidates)))

	in := rankInput{graph: graph, candidates: candidates, maxima: s.maxima(fallbackCtx), now: now}
	ranked, err := scoreAll(fallbackCtx, candidates, simpleScorer(in), s.Config.ParallelThreshold)
	if err != nil {
		log.Warn().Err(err).Str("viewer", viewerID).Msg("simple scoring failed, using chronological order")
		feedFallbacksTotal.WithLabelValues("scoring").Inc()
		return s.page(ctx, chronological(candidates), viewerID, req, AlgorithmChronological), nil
	}
	sortRanked(ranked)
	return s.page(ctx, ranked, viewerID, req, AlgorithmSimple), nil
}

func (s *FeedService) timeout() time.Duration {
	if s.Config.Timeout <= 0 {
		return 3 * time.Second
	}
	return s.Config.Timeout
}

func (s *FeedService) maxima(ctx context.Context) scoring.Maxima {
	if s.Maxima == nil {
		return scoring.BaselineMaxima
	}
	return s.Maxima.Current(ctx)
}

func (s *FeedService) poolSize() int {
	if s.Config.CandidatePoolSize < 1 {
		return 100
	}
	return s.Config.CandidatePoolSize
}

func (s *FeedService) candidateQuery(authors []string) ContentQuery {
	return ContentQuery{
		AuthorIDs:    authors,
		Limit:        s.poolSize() * candidateOverfetch,
		ServableOnly: true,
	}
}

// filter drops candidates the viewer may not see or did not ask for and
// keeps at most CandidatePoolSize of the newest survivors
func (s *FeedService) filter(ctx context.Context, graph *ViewerGraph, items []models.ContentItem, contentType string, now time.Time) []models.ContentItem {
	pool := s.poolSize()
	out := make([]models.ContentItem, 0, min(len(items), pool))
	for i := range items {
		if len(out) == pool {
			break
		}
		item := &items[i]
		if contentType != "" && item.ContentType != contentType {
			continue
		}
		if !graph.CanSeeContent(ctx, item, now) {
			continue
		}
		out = append(out, *item)
	}
	return out
}

// page applies diversity and pagination, falling back to plain slicing if
// diversity fails
func (s *FeedService) page(ctx context.Context, ordered []models.RankedItem, viewerID string, req models.FeedRequest, version string) *models.Page[models.RankedItem] {
	feedRequestsTotal.WithLabelValues(version).Inc()

	perAuthor := s.Config.MaxAuthorItemsOnPage
	if perAuthor < 1 {
		perAuthor = 3
	}

	items, hasMore := func() (items []models.RankedItem, hasMore bool) {
		defer func() {
			if r := recover(); r != nil {
				serviceLog("feed").Error().Interface("panic", r).Msg("diversity failed, paginating without it")
				feedFallbacksTotal.WithLabelValues("diversity").Inc()
				items, hasMore = plainPage(ordered, req.Limit, req.Page)
			}
		}()
		return diversifiedPage(ordered, viewerID, perAuthor, req.Limit, req.Page)
	}()

	if items == nil {
		items = []models.RankedItem{}
	}
	for i := range items {
		s.Media.Sign(ctx, items[i].Media)
	}

	next := 0
	if hasMore {
		next = req.Page + 1
	}
	return &models.Page[models.RankedItem]{
		Items:            items,
		HasMore:          hasMore,
		NextPage:         next,
		AlgorithmVersion: version,
	}
}
