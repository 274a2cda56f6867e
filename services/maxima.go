package services

import (
	"context"
	"errors"
	"time"

	cache "github.com/patrickmn/go-cache"

	"pulse_server/scoring"
)

const maximaCacheKey = "maxima"

// MaximaSource supplies engagement normalisation denominators. Values are
// derived from the store's most-liked item and cached for ttl, so they may
// lag concurrent writes by at most ttl.
type MaximaSource struct {
	store ContentStore
	cache *cache.Cache
}

func NewMaximaSource(store ContentStore, ttl time.Duration) *MaximaSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MaximaSource{store: store, cache: cache.New(ttl, 2*ttl)}
}

// Current never fails: store errors yield the baseline, uncached
func (m *MaximaSource) Current(ctx context.Context) scoring.Maxima {
	if v, ok := m.cache.Get(maximaCacheKey); ok {
		return v.(scoring.Maxima)
	}

	top, err := m.store.TopLikedContent(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			serviceLog("maxima").Warn().Err(err).Msg("top-liked lookup failed, using baseline")
			return scoring.BaselineMaxima
		}
		top = nil
	}
	maxima := scoring.MaximaFrom(top)
	m.cache.SetDefault(maximaCacheKey, maxima)
	return maxima
}

// Invalidate drops the cached value
func (m *MaximaSource) Invalidate() {
	m.cache.Delete(maximaCacheKey)
}
