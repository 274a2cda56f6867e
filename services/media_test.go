package services

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"pulse_server/models"
	"pulse_server/scoring"
)

type fakePresigner struct {
	fail map[string]bool
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.fail[*params.Key] {
		return nil, errors.New("denied")
	}
	return &v4.PresignedHTTPRequest{URL: "https://" + *params.Bucket + ".example/" + *params.Key + "?sig"}, nil
}

func TestMediaService_Sign(t *testing.T) {
	m := &MediaService{Presigner: &fakePresigner{fail: map[string]bool{"bad.jpg": true}}, Bucket: "media", TTL: time.Hour}
	media := []models.MediaItem{{Key: "a.jpg"}, {Key: "bad.jpg"}, {}}

	m.Sign(context.Background(), media)
	require.Equal(t, "https://media.example/a.jpg?sig", media[0].URL)
	require.Empty(t, media[1].URL)
	require.Empty(t, media[2].URL)

	var disabled *MediaService
	disabled.Sign(context.Background(), media)
}

func TestValidateMedia(t *testing.T) {
	ok := []models.MediaItem{
		{Type: models.MediaVideo, DurationSeconds: 60},
		{Type: models.MediaImage, DurationSeconds: 15},
	}
	require.NoError(t, ValidateMedia(ok))

	err := ValidateMedia([]models.MediaItem{{Type: models.MediaVideo, DurationSeconds: 61}})
	require.True(t, IsPolicy(err, CodeMediaDurationExceeded))

	err = ValidateMedia([]models.MediaItem{{Type: models.MediaImage, DurationSeconds: -1}})
	require.True(t, IsPolicy(err, CodeInvalidAction))
}

func TestMaximaSource(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	store := &failingStore{MemoryStore: mem, failTop: true}

	m := NewMaximaSource(store, time.Minute)
	require.Equal(t, scoring.BaselineMaxima, m.Current(ctx), "errors fall back to the baseline")

	store.failTop = false
	require.Equal(t, scoring.BaselineMaxima, m.Current(ctx), "empty corpus floors at the baseline")

	item := putPost(t, mem, "p1", "a", t0, models.VisibilityPublic)
	item.Likes = make([]string, 40)
	for i := range item.Likes {
		item.Likes[i] = string(rune('A' + i))
	}
	require.NoError(t, mem.PutContent(ctx, item))

	require.Equal(t, scoring.BaselineMaxima, m.Current(ctx), "cached until invalidated")
	m.Invalidate()
	require.Equal(t, 40.0, m.Current(ctx).Likes)
}
