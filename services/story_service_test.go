package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulse_server/models"
)

func storyMedia() []models.MediaItem {
	return []models.MediaItem{{Key: "stories/1.jpg", Type: models.MediaImage, DurationSeconds: 5}}
}

func TestStory_PublishNotifiesFollowers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan", "stranger")
	follow(t, e.store, "fan", "author")

	story, err := e.stories.Publish(ctx, "author", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)
	require.Equal(t, models.VisibilityFollowers, story.Visibility)
	require.Equal(t, t0.Add(24*time.Hour), story.ExpiresAt)

	list, err := e.notifications.List(ctx, "fan", 0, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.NotificationStory, list[0].Type)
	require.Equal(t, story.StoryID, list[0].StoryID)

	none, err := e.notifications.List(ctx, "stranger", 0, false)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStory_ViewDeduplicates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan")
	follow(t, e.store, "fan", "author")

	story, err := e.stories.Publish(ctx, "author", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		viewed, err := e.stories.View(ctx, "fan", story.StoryID)
		require.NoError(t, err)
		require.Equal(t, 1, viewed.ViewCount)
	}

	own, err := e.stories.View(ctx, "author", story.StoryID)
	require.NoError(t, err)
	require.Equal(t, 1, own.ViewCount, "author views are not counted")

	viewers, err := e.stories.Viewers(ctx, "author", story.StoryID)
	require.NoError(t, err)
	require.Equal(t, []string{"fan"}, viewers)

	_, err = e.stories.Viewers(ctx, "fan", story.StoryID)
	require.True(t, IsPolicy(err, CodeNotOwner))
}

func TestStory_OneTimeView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "first", "second")

	story, err := e.stories.Publish(ctx, "author", PublishStoryRequest{
		Media:       storyMedia(),
		Visibility:  models.VisibilityPublic,
		OneTimeView: true,
	})
	require.NoError(t, err)

	_, err = e.stories.View(ctx, "first", story.StoryID)
	require.NoError(t, err)

	_, err = e.stories.View(ctx, "second", story.StoryID)
	require.True(t, IsPolicy(err, CodeOneTimeViewConsumed))

	follow(t, e.store, "second", "author")
	groups, err := e.stories.ListActive(ctx, "second")
	require.NoError(t, err)
	require.Empty(t, groups, "consumed one-time stories are hidden from others")
}

func TestStory_ExpiresAfterLifetime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "author", "fan")
	follow(t, e.store, "fan", "author")

	story, err := e.stories.Publish(ctx, "author", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)

	e.clock.Advance(6 * time.Hour)
	groups, err := e.stories.ListActive(ctx, "fan")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.InDelta(t, 25.0, groups[0].Stories[0].Progress, 1e-9)

	e.clock.Advance(18*time.Hour - time.Second)
	_, err = e.stories.View(ctx, "fan", story.StoryID)
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	_, err = e.stories.View(ctx, "fan", story.StoryID)
	require.ErrorIs(t, err, ErrNotFound)

	groups, err = e.stories.ListActive(ctx, "fan")
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestStory_ListActiveOrdering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedUsers(t, e.store, "me", "a", "b")
	follow(t, e.store, "me", "a")
	follow(t, e.store, "me", "b")

	_, err := e.stories.Publish(ctx, "a", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	_, err = e.stories.Publish(ctx, "me", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	_, err = e.stories.Publish(ctx, "b", PublishStoryRequest{Media: storyMedia()})
	require.NoError(t, err)

	groups, err := e.stories.ListActive(ctx, "me")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	require.Equal(t, "me", groups[0].AuthorID)
	require.Equal(t, "b", groups[1].AuthorID)
	require.Equal(t, "a", groups[2].AuthorID)
}

func TestStory_RejectsLongMedia(t *testing.T) {
	e := newEnv(t)
	_, err := e.stories.Publish(context.Background(), "author", PublishStoryRequest{
		Media: []models.MediaItem{{Key: "v.mp4", Type: models.MediaVideo, DurationSeconds: 61}},
	})
	require.True(t, IsPolicy(err, CodeMediaDurationExceeded))
}
