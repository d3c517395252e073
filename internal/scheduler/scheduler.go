package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailyquill/dailyquill/internal/connector"
	"github.com/dailyquill/dailyquill/internal/content"
	"github.com/dailyquill/dailyquill/internal/media"
	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/repository"
)

// Phase is the scheduler's observable state. One run walks Idle to
// RecordingResults and back; Phase reads are advisory.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSelectingContent
	PhasePreparingMedia
	PhasePublishing
	PhaseRecordingResults
)

func (p Phase) String() string {
	switch p {
	case PhaseSelectingContent:
		return "selecting_content"
	case PhasePreparingMedia:
		return "preparing_media"
	case PhasePublishing:
		return "publishing"
	case PhaseRecordingResults:
		return "recording_results"
	default:
		return "idle"
	}
}

const (
	publishConcurrency = 4

	// attemptTimeout bounds a single publish call once the trigger's
	// cancellation no longer applies.
	attemptTimeout = 10 * time.Minute
)

// attempt pairs a platform with the outcome of its publish call.
type attempt struct {
	platform models.PlatformID
	result   connector.PostResult
}

type Scheduler struct {
	source     content.Source
	generator  media.Generator
	connectors map[models.PlatformID]connector.Connector
	posts      repository.PostRepository
	logs       repository.PostLogRepository
	settings   repository.SettingsRepository

	running atomic.Bool
	phase   atomic.Int32
}

func New(
	source content.Source,
	generator media.Generator,
	connectors map[models.PlatformID]connector.Connector,
	posts repository.PostRepository,
	logs repository.PostLogRepository,
	settings repository.SettingsRepository,
) *Scheduler {
	return &Scheduler{
		source:     source,
		generator:  generator,
		connectors: connectors,
		posts:      posts,
		logs:       logs,
		settings:   settings,
	}
}

func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Run executes one publish cycle. A second trigger while a run is in
// flight is a no-op and returns no post. Cancellation is honored up to
// the publishing phase; once attempts are in flight the run completes
// and records whatever happened.
func (s *Scheduler) Run(ctx context.Context) (*models.Post, error) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Info("publish cycle already running, trigger ignored")
		return nil, nil
	}
	defer func() {
		s.phase.Store(int32(PhaseIdle))
		s.running.Store(false)
	}()

	s.phase.Store(int32(PhaseSelectingContent))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, err := s.source.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("selecting content: %w", err)
	}

	post := &models.Post{
		ContentID:   item.ID,
		Caption:     buildCaption(item),
		Link:        item.Link,
		ScheduledAt: time.Now(),
		Status:      models.PostStatusPending,
	}
	post.ID, err = s.posts.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.phase.Store(int32(PhasePreparingMedia))
	if err := ctx.Err(); err != nil {
		s.finish(post)
		return nil, err
	}

	imagePath, err := s.generator.RenderImage(ctx, item)
	if err != nil {
		slog.Info("image render failed, using plain fallback", "error", err.Error())
		imagePath, err = s.generator.RenderPlainImage(ctx, item)
		if err != nil {
			s.finish(post)
			return post, fmt.Errorf("rendering media: %w", err)
		}
	}
	post.MediaPath = imagePath
	if err := s.posts.UpdateMediaPath(ctx, imagePath, post.ID); err != nil {
		slog.Info(err.Error())
	}

	targets := s.targets(ctx)

	// Video is rendered once, and only when a target wants it. A
	// render failure fails those attempts, not the whole cycle.
	videoPath, videoErr := s.renderVideoIfNeeded(ctx, item, targets)

	s.phase.Store(int32(PhasePublishing))
	if err := ctx.Err(); err != nil {
		s.finish(post)
		return nil, err
	}

	// Attempts that have started run to completion or per-attempt
	// timeout. Cancelling mid-flight could leave a platform-side post
	// with no local record, so the trigger's context stops mattering
	// here, for the log and status writes too.
	detached := context.WithoutCancel(ctx)

	attempts := s.publish(detached, post, targets, imagePath, videoPath, videoErr)

	s.phase.Store(int32(PhaseRecordingResults))
	s.record(detached, post, item, attempts)
	return post, nil
}

// targets filters the closed platform set down to enabled and
// configured connectors.
func (s *Scheduler) targets(ctx context.Context) []connector.Connector {
	enabled := map[models.PlatformID]bool{}
	for _, p := range models.Platforms {
		enabled[p.ID] = true
	}
	if settings, err := s.settings.ListPlatformSettings(ctx); err == nil {
		for _, setting := range settings {
			enabled[setting.Platform] = setting.Enabled
		}
	}

	var targets []connector.Connector
	for _, p := range models.Platforms {
		conn, ok := s.connectors[p.ID]
		if !ok || !enabled[p.ID] {
			continue
		}
		if !conn.IsConfigured(ctx) {
			continue
		}
		targets = append(targets, conn)
	}
	return targets
}

func (s *Scheduler) renderVideoIfNeeded(ctx context.Context, item *models.ContentItem, targets []connector.Connector) (string, error) {
	for _, conn := range targets {
		platform, ok := models.PlatformByID(conn.Platform())
		if !ok || platform.PreferredMedia != models.MediaVideo {
			continue
		}
		return s.generator.RenderVideo(ctx, item)
	}
	return "", nil
}

// publish fans out over the targets. Attempts are independent; one
// platform failing never short-circuits the rest.
func (s *Scheduler) publish(ctx context.Context, post *models.Post, targets []connector.Connector, imagePath, videoPath string, videoErr error) []attempt {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, publishConcurrency)
	results := make(chan attempt, len(targets))

	for _, conn := range targets {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn connector.Connector) {
			defer wg.Done()
			defer func() { <-semaphore }()

			attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
			defer cancel()

			platform, _ := models.PlatformByID(conn.Platform())

			var result connector.PostResult
			if platform.PreferredMedia == models.MediaVideo {
				switch {
				case videoErr != nil:
					result = connector.Failed(fmt.Errorf("video unavailable: %w", videoErr))
				case videoPath == "":
					result = connector.Failed(errors.New("video unavailable"))
				default:
					result = conn.PostVideo(attemptCtx, videoPath, post.Caption)
				}
			} else {
				result = conn.Post(attemptCtx, imagePath, post.Caption, post.Link)
			}

			if result.Err != nil {
				slog.Info("publish attempt failed", "platform", conn.Platform(), "error", result.Err.Error())
			}
			results <- attempt{platform: conn.Platform(), result: result}
		}(conn)
	}

	wg.Wait()
	close(results)

	attempts := make([]attempt, 0, len(targets))
	for a := range results {
		attempts = append(attempts, a)
	}
	return attempts
}

// record writes one log per attempt and settles the post's status:
// posted if at least one platform accepted it, failed otherwise.
func (s *Scheduler) record(ctx context.Context, post *models.Post, item *models.ContentItem, attempts []attempt) {
	anySuccess := false
	for _, a := range attempts {
		entry := &models.PostLog{
			PostID:    post.ID,
			Platform:  a.platform,
			Success:   a.result.Success,
			RemoteID:  a.result.RemoteID,
			RemoteURL: a.result.RemoteURL,
		}
		if a.result.Err != nil {
			entry.Error = a.result.Err.Error()
		}
		if _, err := s.logs.Create(ctx, entry); err != nil {
			slog.Info("failed to record attempt", "platform", a.platform, "error", err.Error())
		}
		if a.result.Success {
			anySuccess = true
		}
	}

	status := models.PostStatusFailed
	if anySuccess {
		status = models.PostStatusPosted
	}
	post.Status = status
	if err := s.posts.UpdateStatus(ctx, status, post.ID); err != nil {
		slog.Info(err.Error())
	}

	if anySuccess {
		if err := s.source.MarkUsed(ctx, item); err != nil {
			slog.Info(err.Error())
		}
	}
}

// finish marks a post failed when the cycle dies before publishing.
func (s *Scheduler) finish(post *models.Post) {
	post.Status = models.PostStatusFailed
	if err := s.posts.UpdateStatus(context.Background(), models.PostStatusFailed, post.ID); err != nil {
		slog.Info(err.Error())
	}
}

func buildCaption(item *models.ContentItem) string {
	if item.Citation == "" {
		return item.Body
	}
	return fmt.Sprintf("%s\n\n- %s", item.Body, item.Citation)
}
