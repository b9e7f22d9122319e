// Status tracker.
//
// The tracker owns everything that happens after submission: follow-up
// scheduling and delivery to a notifier, the no-response auto-close sweep,
// and retention archival of terminal applications and stale opportunities.
// It also serves the read side of the lifecycle: per-application timelines
// and the per-user conversion funnel.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
)

// Notifier receives follow-up tasks when they come due. Implementations
// deliver the nudge (mail, chat message, dashboard item); the tracker only
// cares that delivery succeeded before marking the task done.
type Notifier interface {
	Notify(ctx context.Context, task domain.FollowUpTask) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, task domain.FollowUpTask) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, task domain.FollowUpTask) error {
	return f(ctx, task)
}

// TrackerConfig tunes the tracker's sweep loop.
type TrackerConfig struct {
	// SweepInterval is how often the sweep loop runs.
	SweepInterval time.Duration
	// NoResponseAfter is how long an application may sit in tracking before
	// it is auto-closed with a no_response outcome.
	NoResponseAfter time.Duration
	// Retention is how long terminal applications and unprocessed
	// opportunities are kept before soft-archival.
	Retention time.Duration
	// StatusCheckAfter is the delay before the first status-check follow-up.
	StatusCheckAfter time.Duration
	// ThankYouAfter is the delay before the thank-you-note follow-up.
	ThankYouAfter time.Duration
}

// DefaultTrackerConfig returns the stock sweep tuning.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		SweepInterval:    time.Hour,
		NoResponseAfter:  30 * 24 * time.Hour,
		Retention:        90 * 24 * time.Hour,
		StatusCheckAfter: 7 * 24 * time.Hour,
		ThankYouAfter:    24 * time.Hour,
	}
}

// Tracker implements the post-submission status tracking service.
type Tracker struct {
	// AutoClose is invoked by the sweep for applications stuck in tracking
	// past the no-response window. Wired to the orchestrator's OnOutcome.
	AutoClose func(ctx context.Context, applicationID string) error

	db       *gorm.DB
	cfg      TrackerConfig
	notifier Notifier
	stop     chan struct{}
	done     chan struct{}
}

// NewTracker builds a tracker. notifier may be nil, in which case due
// follow-ups are only logged.
func NewTracker(db *gorm.DB, cfg TrackerConfig, notifier Notifier) *Tracker {
	return &Tracker{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (t *Tracker) Start(ctx context.Context) {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Sweep(ctx)
			case <-t.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for a running sweep to finish.
func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

// PlanFollowUps schedules the standard follow-up set for an application that
// just entered tracking: a thank-you note, a status check, and a deadline
// reminder when the opportunity still has one coming up.
func (t *Tracker) PlanFollowUps(ctx context.Context, app *domain.Application, deadline *time.Time) error {
	now := time.Now().UTC()
	tasks := []domain.FollowUpTask{
		{Kind: domain.FollowUpThankYouNote, DueAt: now.Add(t.cfg.ThankYouAfter)},
		{Kind: domain.FollowUpStatusCheck, DueAt: now.Add(t.cfg.StatusCheckAfter)},
	}
	if deadline != nil && deadline.After(now.Add(48*time.Hour)) {
		tasks = append(tasks, domain.FollowUpTask{
			Kind:  domain.FollowUpDeadlineReminder,
			DueAt: deadline.Add(-48 * time.Hour),
		})
	}
	for i := range tasks {
		tasks[i].ID = uuid.NewString()
		tasks[i].ApplicationID = app.ID
		if err := repo.CreateFollowUp(ctx, t.db, &tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleFollowUp creates a single ad-hoc follow-up task.
func (t *Tracker) ScheduleFollowUp(ctx context.Context, applicationID, kind string, dueAt time.Time) (*domain.FollowUpTask, error) {
	if _, err := repo.GetApplication(ctx, t.db, applicationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	task := &domain.FollowUpTask{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Kind:          kind,
		DueAt:         dueAt.UTC(),
	}
	if err := repo.CreateFollowUp(ctx, t.db, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Timeline returns the full audit trail for an application.
func (t *Tracker) Timeline(ctx context.Context, applicationID string) ([]domain.TimelineEvent, error) {
	if _, err := repo.GetApplication(ctx, t.db, applicationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return repo.ListTimeline(ctx, t.db, applicationID)
}

// Funnel returns the per-user conversion summary.
func (t *Tracker) Funnel(ctx context.Context, userID string) (*repo.FunnelCounts, error) {
	return repo.UserFunnel(ctx, t.db, userID)
}

// Sweep runs one maintenance pass: deliver due follow-ups, auto-close
// no-response applications, and archive expired records. Each sub-pass logs
// and continues on error so one bad record cannot stall the others.
func (t *Tracker) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	t.deliverDueFollowUps(ctx, now)
	t.closeNoResponse(ctx, now)
	t.archiveExpired(ctx, now)
}

func (t *Tracker) deliverDueFollowUps(ctx context.Context, now time.Time) {
	due, err := repo.ListDueFollowUps(ctx, t.db, now, 100)
	if err != nil {
		log.Error().Err(err).Msg("list due follow-ups")
		return
	}
	for _, task := range due {
		if t.notifier != nil {
			if err := t.notifier.Notify(ctx, task); err != nil {
				// Leave uncompleted; the next sweep retries it.
				log.Warn().Err(err).Str("task_id", task.ID).Msg("follow-up notification failed")
				continue
			}
		} else {
			log.Info().
				Str("application_id", task.ApplicationID).
				Str("kind", task.Kind).
				Msg("follow-up due")
		}
		if err := repo.CompleteFollowUp(ctx, t.db, task.ID); err != nil {
			log.Error().Err(err).Str("task_id", task.ID).Msg("complete follow-up")
		}
	}
}

func (t *Tracker) closeNoResponse(ctx context.Context, now time.Time) {
	if t.AutoClose == nil {
		return
	}
	stuck, err := repo.ListStuckTracking(ctx, t.db, now.Add(-t.cfg.NoResponseAfter), 100)
	if err != nil {
		log.Error().Err(err).Msg("list stuck tracking applications")
		return
	}
	for _, app := range stuck {
		if err := t.AutoClose(ctx, app.ID); err != nil {
			log.Warn().Err(err).Str("application_id", app.ID).Msg("auto-close failed")
		}
	}
}

func (t *Tracker) archiveExpired(ctx context.Context, now time.Time) {
	cutoff := now.Add(-t.cfg.Retention)

	n, err := repo.ArchiveOpportunitiesBefore(ctx, t.db, cutoff, now)
	if err != nil {
		log.Error().Err(err).Msg("archive stale opportunities")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("archived stale opportunities")
	}

	for _, state := range []string{
		domain.StateSkipped,
		domain.StateSubmissionFailed,
		domain.StateClosed,
		domain.StateRejected,
		domain.StateAbandoned,
	} {
		apps, err := repo.ListApplicationsInState(ctx, t.db, state, 500)
		if err != nil {
			log.Error().Err(err).Str("state", state).Msg("list terminal applications")
			continue
		}
		for _, app := range apps {
			if app.ArchivedAt != nil || app.UpdatedAt.After(cutoff) {
				continue
			}
			if err := repo.ArchiveApplication(ctx, t.db, app.ID, now); err != nil {
				log.Error().Err(err).Str("application_id", app.ID).Msg("archive application")
			}
		}
	}
}
