package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
)

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	assert.Equal(t, 1, b.Count())

	dl := domain.NewDownload("a/b", "f")
	b.Publish(dl)

	got := <-ch
	require.NotNil(t, got)
	assert.Equal(t, dl.ID, got.ID)

	got.Status = domain.StatusFailed
	assert.Equal(t, domain.StatusQueued, dl.Status, "subscribers receive copies")

	b.Unsubscribe(ch)
	assert.Zero(t, b.Count())
	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless
	b.Unsubscribe(ch)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	dl := domain.NewDownload("a/b", "f")
	for i := 0; i < 200; i++ {
		b.Publish(dl)
	}
	assert.Equal(t, 64, len(ch))
}
