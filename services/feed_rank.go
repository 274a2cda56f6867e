package services

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"pulse_server/models"
	"pulse_server/scoring"
)

// Activity thresholds over the candidate pool
const (
	highActivityEngaged = 10
	lowActivityPoolSize = 20
)

// rankInput is everything the scorers need for one request
type rankInput struct {
	graph      *ViewerGraph
	candidates []models.ContentItem
	maxima     scoring.Maxima
	context    scoring.Context
	lookback   time.Duration
	now        time.Time
}

type scoreFunc func(item *models.ContentItem) float64

// interactionRatios computes, per author, the viewer's likes+comments on the
// author's posts inside the lookback window over the author's post count there
func interactionRatios(viewerID string, candidates []models.ContentItem, since time.Time) map[string]float64 {
	posts := make(map[string]int)
	touched := make(map[string]int)
	for i := range candidates {
		item := &candidates[i]
		if item.AuthorID == viewerID || item.CreatedAt.Before(since) {
			continue
		}
		posts[item.AuthorID]++
		if item.LikedBy(viewerID) {
			touched[item.AuthorID]++
		}
		if item.CommentedBy(viewerID) {
			touched[item.AuthorID]++
		}
	}
	ratios := make(map[string]float64, len(posts))
	for author, n := range posts {
		ratios[author] = float64(touched[author]) / float64(n)
	}
	return ratios
}

// activityLevel classifies the viewer by how much of the pool they engaged with
func activityLevel(viewerID string, candidates []models.ContentItem) scoring.Activity {
	engaged := 0
	for i := range candidates {
		item := &candidates[i]
		if item.AuthorID == viewerID {
			continue
		}
		if item.LikedBy(viewerID) || item.SavedBy(viewerID) || item.CommentedBy(viewerID) {
			engaged++
		}
	}
	switch {
	case engaged >= highActivityEngaged:
		return scoring.ActivityHigh
	case engaged == 0 && len(candidates) >= lowActivityPoolSize:
		return scoring.ActivityLow
	default:
		return scoring.ActivityNormal
	}
}

// advancedScorer is the full weighted relevance model
func advancedScorer(in rankInput) scoreFunc {
	ratios := interactionRatios(in.graph.ViewerID, in.candidates, in.now.Add(-in.lookback))
	modifier := scoring.ContextModifier(in.context)

	return func(item *models.ContentItem) float64 {
		affinity := in.graph.Affinity(item.AuthorID)
		affinity.InteractionRatio = ratios[item.AuthorID]
		return scoring.DefaultWeights.Combine(scoring.Components{
			Recency:      scoring.Recency(item.CreatedAt, in.now),
			Engagement:   scoring.Engagement(item, in.maxima),
			Relationship: scoring.Relationship(affinity),
			Quality:      scoring.ContentQuality(item),
			Preference:   scoring.NeutralPreference,
		}, modifier)
	}
}

// simpleScorer is the reduced model of the fallback path
func simpleScorer(in rankInput) scoreFunc {
	return func(item *models.ContentItem) float64 {
		return scoring.SimpleScore(item, in.maxima, in.graph.Affinity(item.AuthorID), in.now)
	}
}

// scoreAll scores every candidate, fanning out across goroutines once the
// pool is larger than parallelThreshold. A panic in any scorer is returned
// as an error.
func scoreAll(ctx context.Context, candidates []models.ContentItem, score scoreFunc, parallelThreshold int) (ranked []models.RankedItem, err error) {
	ranked = make([]models.RankedItem, len(candidates))

	scoreRange := func(lo, hi int) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scoring panicked: %v", r)
			}
		}()
		for i := lo; i < hi; i++ {
			ranked[i] = models.RankedItem{ContentItem: candidates[i], Score: score(&candidates[i])}
		}
		return nil
	}

	if parallelThreshold <= 0 || len(candidates) <= parallelThreshold {
		if err := scoreRange(0, len(candidates)); err != nil {
			return nil, err
		}
		return ranked, ctx.Err()
	}

	workers := runtime.NumCPU()
	chunk := (len(candidates) + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for start := 0; start < len(candidates); start += chunk {
		end := min(start+chunk, len(candidates))
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			if err := scoreRange(lo, hi); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(start, end)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return ranked, ctx.Err()
}

// sortRanked orders by score, then newest first, then id for stability
func sortRanked(items []models.RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ContentID < b.ContentID
	})
}

// chronological orders newest first with a zero score
func chronological(candidates []models.ContentItem) []models.RankedItem {
	items := make([]models.ContentItem, len(candidates))
	copy(items, candidates)
	sortNewestFirst(items)
	ranked := make([]models.RankedItem, len(items))
	for i := range items {
		ranked[i] = models.RankedItem{ContentItem: items[i]}
	}
	return ranked
}

// diversifiedPage builds pages 1..page in sequence from the ordered list.
// On each page an author other than the viewer contributes at most perAuthor
// items; items over the cap are deferred to later pages, never dropped.
// It reports whether any items remain after the requested page.
func diversifiedPage(ordered []models.RankedItem, viewerID string, perAuthor, limit, page int) ([]models.RankedItem, bool) {
	remaining := ordered
	for p := 1; ; p++ {
		var taken, deferred []models.RankedItem
		counts := make(map[string]int)

		for i, item := range remaining {
			if len(taken) == limit {
				deferred = append(deferred, remaining[i:]...)
				break
			}
			if item.AuthorID != viewerID && counts[item.AuthorID] >= perAuthor {
				deferred = append(deferred, item)
				continue
			}
			counts[item.AuthorID]++
			taken = append(taken, item)
		}

		if p == page || len(taken) == 0 {
			return taken, len(deferred) > 0
		}
		remaining = deferred
	}
}

// plainPage slices without diversity
func plainPage(ordered []models.RankedItem, limit, page int) ([]models.RankedItem, bool) {
	start := (page - 1) * limit
	if start >= len(ordered) {
		return nil, false
	}
	end := min(start+limit, len(ordered))
	return ordered[start:end], end < len(ordered)
}
