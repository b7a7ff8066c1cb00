package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofKey(t *testing.T) {
	projectID := uuid.MustParse("0b6f6f3e-5a1c-4f0e-9d57-2d4a1c6f8e01")
	now := time.Unix(1700000000, 42)

	key := ProofKey(projectID, "Ivan Petrov!", 777, ".JPG", now)

	parts := strings.Split(key, "/")
	require.Len(t, parts, 4)
	assert.Equal(t, "proofs", parts[0])
	assert.Equal(t, projectID.String(), parts[1])
	assert.Equal(t, "ivan-petrov-777", parts[2])
	assert.True(t, strings.HasPrefix(parts[3], "1700000000000000042-"))
	assert.True(t, strings.HasSuffix(parts[3], ".jpg"))
}

func TestProofKeyEmptyUsername(t *testing.T) {
	key := ProofKey(uuid.New(), "", 5, "png", time.Now())
	assert.Contains(t, key, "/user-5/")
	assert.True(t, strings.HasSuffix(key, ".png"))
}

func TestProofKeyUnique(t *testing.T) {
	projectID := uuid.New()
	now := time.Now()
	assert.NotEqual(t,
		ProofKey(projectID, "a", 1, ".jpg", now),
		ProofKey(projectID, "a", 1, ".jpg", now))
}

func TestDetectImage(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	ct, ext := DetectImage(jpeg, "photos/file_1.jpg")
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, ".jpg", ext)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	ct, ext = DetectImage(png, "")
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, ".png", ext)

	_, ext = DetectImage([]byte("plain"), "photos/file_2.heic")
	assert.Equal(t, ".heic", ext)
}

func TestS3StorePresign(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "proofs",
		Region:          "auto",
		Endpoint:        "https://account.r2.example.com",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		UsePathStyle:    true,
		PresignTTL:      30 * 24 * time.Hour,
	}, metrics.Nop{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, store.cfg.PresignTTL)

	link, err := store.PresignGet(context.Background(), "proofs/p/u-1/x.jpg")
	require.NoError(t, err)
	assert.Contains(t, link, "https://account.r2.example.com/proofs/proofs/p/u-1/x.jpg")
	assert.Contains(t, link, "X-Amz-Expires=604800")
	assert.NotContains(t, link, "SECRET")
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{}, metrics.Nop{}, logger.NewNop())
	assert.Error(t, err)
}
