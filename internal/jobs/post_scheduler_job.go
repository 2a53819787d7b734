package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
)

// ScanSummary counts what one scan did with the posts it found due.
type ScanSummary struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type PostScheduler struct {
	pr  repository.PostRepository
	pub service.PublisherService

	interval    time.Duration
	window      time.Duration
	concurrency int
	now         func() time.Time

	mu       sync.Mutex
	running  bool
	cron     *cron.Cron
	scanning atomic.Bool
}

func NewPostScheduler(cfg config.Scheduler, pr repository.PostRepository, pub service.PublisherService) *PostScheduler {
	s := &PostScheduler{
		pr:          pr,
		pub:         pub,
		interval:    cfg.Interval,
		window:      cfg.Window,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
	if s.interval < time.Second {
		s.interval = time.Minute
	}
	if s.window <= 0 {
		s.window = 5 * time.Minute
	}
	if s.concurrency <= 0 {
		s.concurrency = 10
	}
	return s
}

// Start begins polling for due posts. Calling it on a running scheduler
// does nothing.
func (s *PostScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("error scheduling post scan: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	slog.Info("post scheduler started", "event", "scheduler_started", "interval", s.interval, "window", s.window)
	return nil
}

// Stop halts polling. Publishes already in flight run to completion.
func (s *PostScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.cron = nil
	s.running = false
	slog.Info("post scheduler stopped", "event", "scheduler_stopped")
}

func (s *PostScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *PostScheduler) tick() {
	if !s.scanning.CompareAndSwap(false, true) {
		slog.Info("previous scan still running, skipping tick", "event", "scan_skipped")
		return
	}
	defer s.scanning.Store(false)

	if _, err := s.RunOnce(context.Background()); err != nil {
		slog.Error("post scan failed", "event", "scan_failed", "error", err)
	}
}

// RunOnce publishes every post due within the scan window. A failing post
// does not stop its siblings; failures are reflected in the summary.
func (s *PostScheduler) RunOnce(ctx context.Context) (ScanSummary, error) {
	now := s.now()

	posts, err := s.pr.ListDue(ctx, now, now.Add(s.window))
	if err != nil {
		return ScanSummary{}, err
	}

	summary := ScanSummary{Due: len(posts)}
	if len(posts) == 0 {
		return summary, nil
	}
	slog.Info("due posts found", "event", "scan", "count", len(posts))

	var published, failed, skipped atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, post := range posts {
		g.Go(func() error {
			err := s.pub.PublishPost(ctx, post)
			switch {
			case err == nil:
				published.Add(1)
			case errors.Is(err, models.ErrStatusConflict), errors.Is(err, models.ErrPostNotFound):
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	summary.Published = int(published.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())

	slog.Info("scan complete", "event", "scan_complete", "due", summary.Due, "published", summary.Published,
		"failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

func (s *PostScheduler) GetFailedPosts(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return s.pr.GetFailed(ctx, userID)
}

// RetryFailedPost runs the full publish sequence again for postID. It does
// not check who owns the post; callers acting for a user must check that
// first, as the post handler does with PostService.PostInfo.
func (s *PostScheduler) RetryFailedPost(ctx context.Context, postID string) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	slog.Info("retrying post", "event", "retry", "post_id", post.ID, "status", post.Status, "attempts", post.Attempts)
	return s.pub.PublishPost(ctx, post)
}
