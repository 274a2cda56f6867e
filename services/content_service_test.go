package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulse_server/models"
)

func TestCreatePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan", "carol")
	follow(t, e.store, "fan", "author")

	item, err := e.content.CreatePost(ctx, "author", CreatePostRequest{
		Text: "Golden hour #Sunset with @carol",
		Media: []models.MediaItem{
			{Key: "b.jpg", Type: models.MediaImage, Order: 2},
			{Key: "a.mp4", Type: models.MediaVideo, Order: 1, DurationSeconds: 30},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.ContentTypeCarousel, item.ContentType)
	require.Equal(t, models.VisibilityPublic, item.Visibility)
	require.Equal(t, []string{"sunset"}, item.Hashtags)
	require.Equal(t, []string{"carol"}, item.Mentions)
	require.Equal(t, "a.mp4", item.Media[0].Key)
	require.Equal(t, 1, item.Media[1].Order)

	posts, err := e.notifications.List(ctx, "fan", 0, false)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, models.NotificationPost, posts[0].Type)

	mentions, err := e.notifications.List(ctx, "carol", 0, false)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	require.Equal(t, models.NotificationMention, mentions[0].Type)

	live := e.publisher.inRoom(models.FollowRoom("author"), models.EventNewPost)
	require.Len(t, live, 1)
	require.Equal(t, models.NewPostEvent{ContentID: item.ContentID, AuthorID: "author"}, live[0].Payload)
}

func TestCreatePost_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	past := t0.Add(-time.Minute)

	cases := []struct {
		name string
		req  CreatePostRequest
		code string
	}{
		{"empty", CreatePostRequest{Text: "  "}, CodeInvalidAction},
		{"expired", CreatePostRequest{Text: "hi", ExpiresAt: &past}, CodeInvalidAction},
		{"long image", CreatePostRequest{Media: []models.MediaItem{{Key: "x", Type: models.MediaImage, DurationSeconds: 16}}}, CodeMediaDurationExceeded},
		{"unknown media", CreatePostRequest{Media: []models.MediaItem{{Key: "x", Type: "gif"}}}, CodeInvalidAction},
		{"too many", CreatePostRequest{Media: make([]models.MediaItem, models.MaxMediaItems+1)}, CodeInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.content.CreatePost(ctx, "author", tc.req)
			require.True(t, IsPolicy(err, tc.code), "got %v", err)
		})
	}
}

func TestCreatePost_CloseFriendsSkipsFollowRoom(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan", "bestie")
	follow(t, e.store, "fan", "author")
	follow(t, e.store, "bestie", "author")
	require.NoError(t, e.store.PutEdge(ctx, models.SocialEdge{FromID: "author", ToID: "bestie", Kind: models.EdgeCloseFriend}))

	_, err := e.content.CreatePost(ctx, "author", CreatePostRequest{Text: "inner circle", Visibility: models.VisibilityCloseFriends})
	require.NoError(t, err)

	require.Empty(t, e.publisher.inRoom(models.FollowRoom("author"), models.EventNewPost))

	fan, err := e.notifications.List(ctx, "fan", 0, false)
	require.NoError(t, err)
	require.Empty(t, fan)
	bestie, err := e.notifications.List(ctx, "bestie", 0, false)
	require.NoError(t, err)
	require.Len(t, bestie, 1)
}

func TestContent_OwnerOperations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan")
	putPost(t, e.store, "p1", "author", t0, models.VisibilityPublic)

	_, err := e.content.Archive(ctx, "fan", "p1")
	require.True(t, IsPolicy(err, CodeNotOwner))
	require.True(t, IsPolicy(e.content.Delete(ctx, "fan", "p1"), CodeNotOwner))

	item, err := e.content.Archive(ctx, "author", "p1")
	require.NoError(t, err)
	require.True(t, item.Archived)

	_, err = e.content.Get(ctx, "fan", "p1")
	require.True(t, IsPolicy(err, CodeVisibilityDenied), "archived posts leave public reads")

	own, err := e.content.Get(ctx, "author", "p1")
	require.NoError(t, err)
	require.True(t, own.Archived)

	_, err = e.content.Unarchive(ctx, "author", "p1")
	require.NoError(t, err)
	_, err = e.content.Get(ctx, "fan", "p1")
	require.NoError(t, err)

	require.NoError(t, e.content.Delete(ctx, "author", "p1"))
	_, err = e.content.Get(ctx, "author", "p1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContent_ListByAuthorPinnedFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan")
	putPost(t, e.store, "old", "author", t0.Add(-2*time.Hour), models.VisibilityPublic)
	putPost(t, e.store, "new", "author", t0, models.VisibilityPublic)
	putPost(t, e.store, "hidden", "author", t0, models.VisibilityPublic)

	_, err := e.content.SetPinned(ctx, "author", "old", true)
	require.NoError(t, err)
	_, err = e.content.SetHidden(ctx, "author", "hidden", true)
	require.NoError(t, err)

	items, err := e.content.ListByAuthor(ctx, "fan", "author", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "old", items[0].ContentID)
	require.Equal(t, "new", items[1].ContentID)

	mine, err := e.content.ListByAuthor(ctx, "author", "author", 10)
	require.NoError(t, err)
	require.Len(t, mine, 3)

	require.NoError(t, e.graph.Block(ctx, "author", "fan"))
	_, err = e.content.ListByAuthor(ctx, "fan", "author", 10)
	require.True(t, IsPolicy(err, CodeBlocked))
}
