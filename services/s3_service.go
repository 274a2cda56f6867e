package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pulse_server/models"
)

// ReadPresigner is the subset of the S3 presign client used for media reads
type ReadPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// MediaService turns stored media keys into short-lived read URLs
type MediaService struct {
	Presigner ReadPresigner
	Bucket    string
	TTL       time.Duration
}

// NewMediaService builds a presigner from the default AWS credential chain
func NewMediaService(ctx context.Context, region, bucket string, ttl time.Duration) (*MediaService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &MediaService{
		Presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:    bucket,
		TTL:       ttl,
	}, nil
}

// GenerateReadURL generates a presigned URL for reading a media object
func (m *MediaService) GenerateReadURL(ctx context.Context, key string) (string, error) {
	presigned, err := m.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.TTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return presigned.URL, nil
}

// Sign fills URL on each entry in place. Entries that fail keep an empty
// URL; a missing signature never fails a read.
func (m *MediaService) Sign(ctx context.Context, media []models.MediaItem) {
	if m == nil || m.Presigner == nil {
		return
	}
	for i := range media {
		if media[i].Key == "" {
			continue
		}
		url, err := m.GenerateReadURL(ctx, media[i].Key)
		if err != nil {
			serviceLog("media").Warn().Err(err).Str("key", media[i].Key).Msg("failed to sign media")
			continue
		}
		media[i].URL = url
	}
}

// ValidateMedia enforces the item count and per-type duration limits
func ValidateMedia(media []models.MediaItem) error {
	if len(media) > models.MaxMediaItems {
		return policyError(CodeInvalidAction, "at most %d media items are allowed, got %d", models.MaxMediaItems, len(media))
	}
	for i, item := range media {
		switch item.Type {
		case models.MediaVideo:
			if item.DurationSeconds > models.MaxVideoDurationSeconds {
				return policyError(CodeMediaDurationExceeded, "media %d: video is %ds, limit is %ds", i, item.DurationSeconds, models.MaxVideoDurationSeconds)
			}
		case models.MediaImage:
			if item.DurationSeconds > models.MaxImageDurationSeconds {
				return policyError(CodeMediaDurationExceeded, "media %d: image shows for %ds, limit is %ds", i, item.DurationSeconds, models.MaxImageDurationSeconds)
			}
		default:
			return policyError(CodeInvalidAction, "media %d: unsupported type %q", i, item.Type)
		}
		if item.DurationSeconds < 0 {
			return policyError(CodeInvalidAction, "media %d: negative duration", i)
		}
	}
	return nil
}

// orderMedia sorts by the client-supplied order and renumbers from zero
func orderMedia(media []models.MediaItem) []models.MediaItem {
	out := append([]models.MediaItem(nil), media...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i
		out[i].URL = ""
	}
	return out
}
