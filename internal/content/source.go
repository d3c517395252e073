package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/repository"
)

var ErrNoContent = errors.New("no content available")

// Source picks the next quote to publish: the oldest unused queued
// item wins, the remote feed fills in when the queue is empty. Feed
// items carry no queue id, so MarkUsed is a no-op for them.
type Source interface {
	Next(ctx context.Context) (*models.ContentItem, error)
	MarkUsed(ctx context.Context, item *models.ContentItem) error
}

type source struct {
	queue   repository.ContentRepository
	feedURL string
	client  *http.Client
	pickFn  func(n int) int
}

func NewSource(queue repository.ContentRepository, feedURL string) Source {
	return &source{
		queue:   queue,
		feedURL: feedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		pickFn:  rand.Intn,
	}
}

func (s *source) Next(ctx context.Context) (*models.ContentItem, error) {
	item, err := s.queue.OldestUnused(ctx)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	return s.fromFeed(ctx)
}

func (s *source) MarkUsed(ctx context.Context, item *models.ContentItem) error {
	if item.ID == 0 {
		return nil
	}
	return s.queue.MarkUsed(ctx, item.ID)
}

func (s *source) fromFeed(ctx context.Context) (*models.ContentItem, error) {
	if s.feedURL == "" {
		return nil, ErrNoContent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("feed returned %d: %s", resp.StatusCode, string(body))
	}

	var items []models.ContentItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error parsing feed: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoContent
	}

	picked := items[s.pickFn(len(items))]
	picked.ID = 0
	return &picked, nil
}
