package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
)

type fakeQueue struct {
	items []*models.ContentItem
	used  []int64
}

func (f *fakeQueue) Create(ctx context.Context, item *models.ContentItem) (int64, error) {
	return 0, nil
}

func (f *fakeQueue) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	return nil, nil
}

func (f *fakeQueue) OldestUnused(ctx context.Context) (*models.ContentItem, error) {
	if len(f.items) == 0 {
		return nil, nil
	}
	return f.items[0], nil
}

func (f *fakeQueue) MarkUsed(ctx context.Context, id int64) error {
	f.used = append(f.used, id)
	return nil
}

func (f *fakeQueue) List(ctx context.Context, limit int) ([]*models.ContentItem, error) {
	return f.items, nil
}

func (f *fakeQueue) Remove(ctx context.Context, id int64) error { return nil }

func TestNextPrefersQueuedItem(t *testing.T) {
	feedCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedCalled = true
	}))
	defer srv.Close()

	queue := &fakeQueue{items: []*models.ContentItem{{ID: 3, Body: "queued quote"}}}
	src := NewSource(queue, srv.URL)

	item, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), item.ID)
	assert.False(t, feedCalled)

	require.NoError(t, src.MarkUsed(context.Background(), item))
	assert.Equal(t, []int64{3}, queue.used)
}

func TestNextFallsBackToFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"body":"feed quote one","citation":"A"},{"body":"feed quote two","citation":"B"}]`))
	}))
	defer srv.Close()

	queue := &fakeQueue{}
	src := NewSource(queue, srv.URL).(*source)
	src.pickFn = func(n int) int { return 1 }

	item, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feed quote two", item.Body)
	assert.Zero(t, item.ID)

	// Feed items are transient; marking them used touches nothing.
	require.NoError(t, src.MarkUsed(context.Background(), item))
	assert.Empty(t, queue.used)
}

func TestNextWithEmptyQueueAndFeedReportsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := NewSource(&fakeQueue{}, srv.URL)

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoContent)
}
