package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"pulse_server/models"
)

// MemoryStore is a process-local Store for development and tests.
// Content and stories live in a TTL cache so items with an expiry
// disappear without any application-level polling.
type MemoryStore struct {
	mu sync.Mutex

	content       *cache.Cache
	stories       *cache.Cache
	edges         map[string]models.SocialEdge // fromId|edgeKey -> edge
	users         map[string]models.UserProfile
	notifications map[string][]models.Notification // recipientId -> newest last

	now func() time.Time
}

// NewMemoryStore creates an empty store; the janitor sweeps expired items every minute
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		content:       cache.New(cache.NoExpiration, time.Minute),
		stories:       cache.New(cache.NoExpiration, time.Minute),
		edges:         make(map[string]models.SocialEdge),
		users:         make(map[string]models.UserProfile),
		notifications: make(map[string][]models.Notification),
		now:           time.Now,
	}
}

// WithClock overrides the store's notion of now (tests)
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func ttlUntil(expiresAt *time.Time, now time.Time) (time.Duration, bool) {
	if expiresAt == nil {
		return cache.NoExpiration, true
	}
	ttl := expiresAt.Sub(now)
	return ttl, ttl > 0
}

// ---------------------------------------------------------------- content

func (m *MemoryStore) getContentLocked(contentID string) (models.ContentItem, bool) {
	v, ok := m.content.Get(contentID)
	if !ok {
		return models.ContentItem{}, false
	}
	item := v.(models.ContentItem)
	if item.Expired(m.now()) {
		return models.ContentItem{}, false
	}
	return item, true
}

func (m *MemoryStore) setContentLocked(item models.ContentItem) {
	item.SyncCounts()
	item.BuildSearchText()
	ttl, live := ttlUntil(item.ExpiresAt, m.now())
	if !live {
		m.content.Delete(item.ContentID)
		return
	}
	m.content.Set(item.ContentID, item, ttl)
}

func cloneContent(item models.ContentItem) *models.ContentItem {
	item.Likes = slices.Clone(item.Likes)
	item.Dislikes = slices.Clone(item.Dislikes)
	item.Saves = slices.Clone(item.Saves)
	item.Comments = slices.Clone(item.Comments)
	item.Media = slices.Clone(item.Media)
	item.Hashtags = slices.Clone(item.Hashtags)
	return &item
}

func (m *MemoryStore) GetContent(_ context.Context, contentID string) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.getContentLocked(contentID)
	if !ok {
		return nil, notFound("content", contentID)
	}
	return cloneContent(item), nil
}

func (m *MemoryStore) PutContent(_ context.Context, item *models.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setContentLocked(*cloneContent(*item))
	return nil
}

func (m *MemoryStore) DeleteContent(_ context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content.Delete(contentID)
	return nil
}

func (m *MemoryStore) allContentLocked() []models.ContentItem {
	now := m.now()
	items := make([]models.ContentItem, 0, m.content.ItemCount())
	for _, v := range m.content.Items() {
		item := v.Object.(models.ContentItem)
		if !item.Expired(now) {
			items = append(items, item)
		}
	}
	return items
}

func (m *MemoryStore) ListContentByAuthors(_ context.Context, q ContentQuery) ([]models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ContentItem
	for _, item := range m.allContentLocked() {
		if !slices.Contains(q.AuthorIDs, item.AuthorID) {
			continue
		}
		if !q.Since.IsZero() && item.CreatedAt.Before(q.Since) {
			continue
		}
		if q.ServableOnly && (item.Archived || item.Hidden) {
			continue
		}
		out = append(out, *cloneContent(item))
	}
	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func sortNewestFirst(items []models.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ContentID < items[j].ContentID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func (m *MemoryStore) TopLikedContent(_ context.Context) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var top *models.ContentItem
	for _, item := range m.allContentLocked() {
		if top == nil || len(item.Likes) > len(top.Likes) {
			top = cloneContent(item)
		}
	}
	if top == nil {
		return nil, notFound("content", "top-liked")
	}
	return top, nil
}

func (m *MemoryStore) ToggleReaction(_ context.Context, contentID, actorID, kind string) (*models.ContentItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getContentLocked(contentID)
	if !ok {
		return nil, false, notFound("content", contentID)
	}
	item = *cloneContent(item)

	var active bool
	switch kind {
	case models.ActionLike:
		item.Likes, active = toggle(item.Likes, actorID)
		if active {
			item.Dislikes = remove(item.Dislikes, actorID)
		}
	case models.ActionDislike:
		item.Dislikes, active = toggle(item.Dislikes, actorID)
		if active {
			item.Likes = remove(item.Likes, actorID)
		}
	case models.ActionSave:
		item.Saves, active = toggle(item.Saves, actorID)
	default:
		return nil, false, policyError(CodeInvalidAction, "unsupported reaction %q", kind)
	}

	m.setContentLocked(item)
	out, _ := m.getContentLocked(contentID)
	return cloneContent(out), active, nil
}

func toggle(set []string, id string) ([]string, bool) {
	if slices.Contains(set, id) {
		return remove(set, id), false
	}
	return append(set, id), true
}

func remove(set []string, id string) []string {
	return slices.DeleteFunc(set, func(s string) bool { return s == id })
}

func (m *MemoryStore) IncrementCounter(_ context.Context, contentID, counter string, delta int) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getContentLocked(contentID)
	if !ok {
		return nil, notFound("content", contentID)
	}
	switch counter {
	case CounterShares:
		item.ShareCount += delta
	case CounterViews:
		item.ViewCount += delta
	default:
		return nil, policyError(CodeInvalidAction, "unsupported counter %q", counter)
	}
	m.setContentLocked(item)
	return cloneContent(item), nil
}

func (m *MemoryStore) AppendComment(_ context.Context, contentID string, comment models.Comment) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getContentLocked(contentID)
	if !ok {
		return nil, notFound("content", contentID)
	}
	item = *cloneContent(item)
	item.Comments = append(item.Comments, comment)
	item.CommentCount++
	m.setContentLocked(item)
	return cloneContent(item), nil
}

func (m *MemoryStore) UpdateDerived(_ context.Context, contentID string, d DerivedMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getContentLocked(contentID)
	if !ok {
		return notFound("content", contentID)
	}
	engagedAt := d.LastEngagedAt
	item.EngagementRate = d.EngagementRate
	item.Reach = d.Reach
	item.LastEngagedAt = &engagedAt
	item.AlgorithmScore = d.AlgorithmScore
	m.setContentLocked(item)
	return nil
}

func (m *MemoryStore) SetContentFlags(_ context.Context, contentID string, flags ContentFlags) (*models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getContentLocked(contentID)
	if !ok {
		return nil, notFound("content", contentID)
	}
	if flags.Archived != nil {
		item.Archived = *flags.Archived
	}
	if flags.Pinned != nil {
		item.Pinned = *flags.Pinned
	}
	if flags.Hidden != nil {
		item.Hidden = *flags.Hidden
	}
	m.setContentLocked(item)
	return cloneContent(item), nil
}

func (m *MemoryStore) SearchContent(_ context.Context, query string, limit int) ([]models.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "#"))
	var out []models.ContentItem
	for _, item := range m.allContentLocked() {
		if strings.Contains(item.SearchText, q) {
			out = append(out, *cloneContent(item))
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DistinctTags(_ context.Context, prefix string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix = strings.ToLower(strings.TrimPrefix(prefix, "#"))
	seen := make(map[string]struct{})
	for _, item := range m.allContentLocked() {
		for _, tag := range item.Hashtags {
			tag = strings.ToLower(tag)
			if strings.HasPrefix(tag, prefix) {
				seen[tag] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}

// ---------------------------------------------------------------- graph

func edgeID(fromID, kind, toID string) string {
	return fromID + "|" + models.EdgeKeyFor(kind, toID)
}

func (m *MemoryStore) PutEdge(_ context.Context, edge models.SocialEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge.EdgeKey = models.EdgeKeyFor(edge.Kind, edge.ToID)
	m.edges[edgeID(edge.FromID, edge.Kind, edge.ToID)] = edge
	return nil
}

func (m *MemoryStore) DeleteEdge(_ context.Context, fromID, kind, toID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, edgeID(fromID, kind, toID))
	return nil
}

func (m *MemoryStore) HasEdge(_ context.Context, fromID, kind, toID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[edgeID(fromID, kind, toID)]
	return ok, nil
}

func (m *MemoryStore) ListEdges(_ context.Context, fromID, kind string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.FromID == fromID && e.Kind == kind {
			out = append(out, e.ToID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ListIncoming(_ context.Context, toID, kind string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.ToID == toID && e.Kind == kind {
			out = append(out, e.FromID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ---------------------------------------------------------------- users

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, notFound("user", userID)
	}
	return &u, nil
}

func (m *MemoryStore) PutUser(_ context.Context, user *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	u.BuildSearchText()
	m.users[u.UserID] = u
	return nil
}

func (m *MemoryStore) SearchUsers(_ context.Context, query string, limit int) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	var out []models.UserProfile
	for _, u := range m.users {
		if strings.Contains(u.SearchText, q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SetPreferences(_ context.Context, userID string, prefs map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	if u.Preferences == nil {
		u.Preferences = make(map[string]bool, len(prefs))
	}
	for k, v := range prefs {
		u.Preferences[k] = v
	}
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) AdjustFollowerCount(_ context.Context, userID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u.FollowerCount = max(0, u.FollowerCount+delta)
	m.users[userID] = u
	return nil
}

// ---------------------------------------------------------------- stories

func cloneStory(s models.Story) *models.Story {
	s.Viewers = slices.Clone(s.Viewers)
	s.Media = slices.Clone(s.Media)
	return &s
}

func (m *MemoryStore) getStoryLocked(storyID string) (models.Story, bool) {
	v, ok := m.stories.Get(storyID)
	if !ok {
		return models.Story{}, false
	}
	story := v.(models.Story)
	if story.Expired(m.now()) {
		return models.Story{}, false
	}
	return story, true
}

func (m *MemoryStore) setStoryLocked(story models.Story) {
	expiresAt := story.ExpiresAt
	ttl, live := ttlUntil(&expiresAt, m.now())
	if !live {
		m.stories.Delete(story.StoryID)
		return
	}
	m.stories.Set(story.StoryID, story, ttl)
}

func (m *MemoryStore) PutStory(_ context.Context, story *models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStoryLocked(*cloneStory(*story))
	return nil
}

func (m *MemoryStore) GetStory(_ context.Context, storyID string) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	story, ok := m.getStoryLocked(storyID)
	if !ok {
		return nil, notFound("story", storyID)
	}
	return cloneStory(story), nil
}

func (m *MemoryStore) AddStoryViewer(_ context.Context, storyID, viewerID string) (*models.Story, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	story, ok := m.getStoryLocked(storyID)
	if !ok {
		return nil, false, notFound("story", storyID)
	}
	if story.ViewedBy(viewerID) {
		return cloneStory(story), false, nil
	}
	if story.OneTimeView && len(story.Viewers) > 0 {
		return nil, false, policyError(CodeOneTimeViewConsumed, "story %s can only be viewed once", storyID)
	}
	story = *cloneStory(story)
	story.Viewers = append(story.Viewers, viewerID)
	story.ViewCount++
	m.setStoryLocked(story)
	return cloneStory(story), true, nil
}

func (m *MemoryStore) ListStoriesByAuthors(_ context.Context, authorIDs []string) ([]models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []models.Story
	for _, v := range m.stories.Items() {
		story := v.Object.(models.Story)
		if story.Expired(now) || !slices.Contains(authorIDs, story.AuthorID) {
			continue
		}
		out = append(out, *cloneStory(story))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------- notifications

func (m *MemoryStore) PutNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[n.RecipientID] = append(m.notifications[n.RecipientID], *n)
	return nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, recipientID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.notifications[recipientID]
	out := make([]models.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if unreadOnly && all[i].Read {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, recipientID, notificationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.notifications[recipientID] {
		if n.NotificationID == notificationID {
			changed := !n.Read
			m.notifications[recipientID][i].Read = true
			return changed, nil
		}
	}
	return false, notFound("notification", notificationID)
}

func (m *MemoryStore) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for i := range m.notifications[recipientID] {
		if !m.notifications[recipientID][i].Read {
			m.notifications[recipientID][i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.notifications[recipientID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) DeleteNotification(_ context.Context, recipientID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.notifications[recipientID]
	for i, n := range list {
		if n.NotificationID == notificationID {
			m.notifications[recipientID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return notFound("notification", notificationID)
}
