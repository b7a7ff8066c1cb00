package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatorClaimsOnce(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator()

	ok, err := d.Claim(ctx, "tg:update:1", time.Hour)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Claim(ctx, "tg:update:1", time.Hour)
	assert.False(t, ok)

	assert.NoError(t, d.Release(ctx, "tg:update:1"))
	ok, _ = d.Claim(ctx, "tg:update:1", time.Hour)
	assert.True(t, ok)
}

func TestDeduplicatorExpires(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator()
	now := time.Now()
	d.now = func() time.Time { return now }

	ok, _ := d.Claim(ctx, "k", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.Claim(ctx, "k", time.Minute)
	assert.True(t, ok)
}
