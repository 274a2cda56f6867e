package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulse_server/models"
)

func TestMemoryStore_ToggleReactionIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	putPost(t, store, "p1", "author", t0, models.VisibilityPublic)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := store.ToggleReaction(ctx, "p1", fmt.Sprintf("actor-%d", i), models.ActionLike)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	item, err := store.GetContent(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, item.Likes, 50)
	require.Equal(t, 50, item.LikeCount)
}

func TestMemoryStore_LikeAndDislikeExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	putPost(t, store, "p1", "author", t0, models.VisibilityPublic)

	item, active, err := store.ToggleReaction(ctx, "p1", "v", models.ActionLike)
	require.NoError(t, err)
	require.True(t, active)
	require.True(t, item.LikedBy("v"))

	item, active, err = store.ToggleReaction(ctx, "p1", "v", models.ActionDislike)
	require.NoError(t, err)
	require.True(t, active)
	require.False(t, item.LikedBy("v"))
	require.True(t, item.DislikedBy("v"))
	require.Zero(t, item.LikeCount)
}

func TestMemoryStore_ExpiredContentDisappears(t *testing.T) {
	ctx := context.Background()
	c := newClock(t0)
	store := NewMemoryStore().WithClock(c.Now)

	expires := t0.Add(time.Hour)
	require.NoError(t, store.PutContent(ctx, &models.ContentItem{
		ContentID: "p1", AuthorID: "a", Visibility: models.VisibilityPublic, CreatedAt: t0, ExpiresAt: &expires,
	}))
	_, err := store.GetContent(ctx, "p1")
	require.NoError(t, err)

	c.Advance(time.Hour)
	_, err = store.GetContent(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)

	items, err := store.ListContentByAuthors(ctx, ContentQuery{AuthorIDs: []string{"a"}})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestMemoryStore_ReturnedItemsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	putPost(t, store, "p1", "author", t0, models.VisibilityPublic)

	item, _, err := store.ToggleReaction(ctx, "p1", "v", models.ActionLike)
	require.NoError(t, err)
	item.Likes[0] = "mutated"

	again, err := store.GetContent(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"v"}, again.Likes)
}

func TestMemoryStore_ListContentByAuthors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	putPost(t, store, "old", "a", t0.Add(-2*time.Hour), models.VisibilityPublic)
	putPost(t, store, "new", "a", t0, models.VisibilityPublic)
	putPost(t, store, "other", "b", t0, models.VisibilityPublic)
	putPost(t, store, "skip", "c", t0, models.VisibilityPublic)

	items, err := store.ListContentByAuthors(ctx, ContentQuery{AuthorIDs: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "old", items[2].ContentID)

	items, err = store.ListContentByAuthors(ctx, ContentQuery{AuthorIDs: []string{"a"}, Since: t0.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "new", items[0].ContentID)

	items, err = store.ListContentByAuthors(ctx, ContentQuery{AuthorIDs: []string{"a", "b"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestMemoryStore_AddStoryViewer(t *testing.T) {
	ctx := context.Background()
	c := newClock(t0)
	store := NewMemoryStore().WithClock(c.Now)
	require.NoError(t, store.PutStory(ctx, &models.Story{
		StoryID: "s1", AuthorID: "a", OneTimeView: true, CreatedAt: t0, ExpiresAt: t0.Add(models.StoryLifetime),
	}))

	story, added, err := store.AddStoryViewer(ctx, "s1", "v1")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, 1, story.ViewCount)

	story, added, err = store.AddStoryViewer(ctx, "s1", "v1")
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, 1, story.ViewCount)

	_, _, err = store.AddStoryViewer(ctx, "s1", "v2")
	require.True(t, IsPolicy(err, CodeOneTimeViewConsumed))
}

func TestMemoryStore_Notifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, store.PutNotification(ctx, &models.Notification{
			RecipientID: "r", NotificationID: id, CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := store.ListNotifications(ctx, "r", 2, false)
	require.NoError(t, err)
	require.Equal(t, "n3", list[0].NotificationID)
	require.Len(t, list, 2)

	changed, err := store.MarkNotificationRead(ctx, "r", "n3")
	require.NoError(t, err)
	require.True(t, changed)
	changed, err = store.MarkNotificationRead(ctx, "r", "n3")
	require.NoError(t, err)
	require.False(t, changed)

	unread, err := store.ListNotifications(ctx, "r", 0, true)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	count, err := store.MarkAllNotificationsRead(ctx, "r")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	n, err := store.CountUnread(ctx, "r")
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, store.DeleteNotification(ctx, "r", "n1"))
	err = store.DeleteNotification(ctx, "r", "n1")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_FollowerCountNeverNegative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedUsers(t, store, "a")

	require.NoError(t, store.AdjustFollowerCount(ctx, "a", -1))
	u, err := store.GetUser(ctx, "a")
	require.NoError(t, err)
	require.Zero(t, u.FollowerCount)
}

func TestMemoryStore_SearchAndTags(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.PutContent(ctx, &models.ContentItem{
		ContentID: "p1", AuthorID: "a", Text: "Sunset at the pier", Hashtags: []string{"sunset", "summer"}, CreatedAt: t0,
	}))
	require.NoError(t, store.PutContent(ctx, &models.ContentItem{
		ContentID: "p2", AuthorID: "a", Text: "Lunch", Hashtags: []string{"food"}, CreatedAt: t0,
	}))

	items, err := store.SearchContent(ctx, "#sunset", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	tags, err := store.DistinctTags(ctx, "su", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"summer", "sunset"}, tags)
}
