// Workflow orchestrator.
//
// The orchestrator owns every application state transition. A bounded worker
// pool drains a channel of application IDs; each worker advances its
// application step by step until the record parks (waiting on an external
// event) or reaches a terminal state. Suspension points hold no worker:
//
//   - generation_requested parks while a dedicated goroutine runs the draft
//     call, its retries, and its backoff sleeps;
//   - pending_approval parks until OnApprovalDecision;
//   - submitting parks until the submission engine reports OnSubmissionResult;
//   - tracking parks until OnOutcome (or the status tracker's no-response
//     auto-close).
//
// Applications deferred in scored by the daily admission quota are re-queued
// by a periodic sweep, so freed budget (or the next UTC day) picks them up
// without waiting for a restart.
//
// Every write goes through the version-guarded compare-and-swap in the repo
// layer; a lost race is re-read and re-evaluated, never blindly retried, so
// two workers can never double-process one application. Operator
// cancellation is a flag honored at the next transition boundary.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/generate"
	"github.com/growthengine/opportunity-engine/internal/platform"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/scoring"
)

var stateTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "application_transitions_total",
		Help: "Application state transitions by target state.",
	},
	[]string{"to"},
)

// Automation levels controlling the approval gate.
const (
	AutomationFullAuto       = "full_auto"
	AutomationReviewRequired = "review_required"
)

// Decisions accepted by OnApprovalDecision.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Submitter is the slice of the submission engine the orchestrator needs.
type Submitter interface {
	Enqueue(ctx context.Context, job SubmissionJob) error
}

// FollowUpPlanner schedules post-submission follow-ups. Implemented by the
// status tracker; optional.
type FollowUpPlanner interface {
	PlanFollowUps(ctx context.Context, app *domain.Application, deadline *time.Time) error
}

// OrchestratorConfig tunes the worker pool and workflow policy.
type OrchestratorConfig struct {
	Workers            int
	QueueCapacity      int
	DailyQuota         int
	AutomationLevel    string
	AutoApproveQuality float64
	GenerationTimeout  time.Duration
	GenerationRetry    RetryPolicy
	DefaultPlatform    string
	RequeueInterval    time.Duration
}

// Orchestrator drives applications through the workflow state machine.
type Orchestrator struct {
	// OnClosed fires after an application closes with an outcome. Wired to
	// the feedback adapter; optional.
	OnClosed func(ctx context.Context, app *domain.Application)

	cfg       OrchestratorConfig
	db        *gorm.DB
	weights   *scoring.Store
	profiles  ProfileSource
	generator generate.Generator
	submitter Submitter
	followUps FollowUpPlanner

	work chan string
	quit chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	stopped    bool
	generating map[string]struct{}
	quotaDay   time.Time
	quotaUse   int
}

// NewOrchestrator wires the orchestrator. followUps may be nil.
func NewOrchestrator(
	db *gorm.DB,
	cfg OrchestratorConfig,
	weights *scoring.Store,
	profiles ProfileSource,
	generator generate.Generator,
	submitter Submitter,
	followUps FollowUpPlanner,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.RequeueInterval <= 0 {
		cfg.RequeueInterval = time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		db:         db,
		weights:    weights,
		profiles:   profiles,
		generator:  generator,
		submitter:  submitter,
		followUps:  followUps,
		work:       make(chan string, cfg.QueueCapacity),
		quit:       make(chan struct{}),
		generating: make(map[string]struct{}),
	}
}

// Start launches the worker pool and the deferred-admission sweep.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for id := range o.work {
				o.advance(ctx, id)
			}
		}()
	}

	// Applications deferred in scored by the quota gate are re-queued on a
	// timer, not only at startup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		t := time.NewTicker(o.cfg.RequeueInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.quit:
				return
			case <-t.C:
				o.requeueDeferred(ctx)
			}
		}
	}()
}

// Stop closes the work channel and waits for in-flight steps to finish.
// Parked and queued applications are picked up again by Resume on restart.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.quit)
	close(o.work)
	o.mu.Unlock()
	o.wg.Wait()
}

// KickoffOpportunity fans a freshly ingested opportunity out to every
// configured user profile, creating one application per user and queueing it
// for processing. An existing (user, opportunity) application is left alone.
func (o *Orchestrator) KickoffOpportunity(ctx context.Context, opp *domain.Opportunity) error {
	for _, userID := range o.profiles.UserIDs() {
		app := &domain.Application{
			ID:            uuid.NewString(),
			OpportunityID: opp.ID,
			UserID:        userID,
			State:         domain.StateDiscovered,
			Version:       1,
		}
		if err := repo.CreateApplication(ctx, o.db, app); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				continue
			}
			return err
		}
		o.recordEvent(ctx, app.ID, domain.StateDiscovered, map[string]any{
			"opportunity_id": opp.ID,
			"user_id":        userID,
		})
		o.enqueue(app.ID)
	}
	return nil
}

// Resume re-queues every application sitting in a state the orchestrator
// drives forward. Called once at startup to recover work interrupted by a
// crash or shutdown. Parked states are excluded: they resume on their own
// events.
func (o *Orchestrator) Resume(ctx context.Context) error {
	resumable := []string{
		domain.StateDiscovered,
		domain.StateScored,
		domain.StateAdmitted,
		domain.StateGenerationRequested,
		domain.StateGenerated,
		domain.StateAutoApproved,
		domain.StateApproved,
		domain.StateSubmitted,
	}
	for _, state := range resumable {
		apps, err := repo.ListApplicationsInState(ctx, o.db, state, o.cfg.QueueCapacity)
		if err != nil {
			return fmt.Errorf("resume %s: %w", state, err)
		}
		for i := range apps {
			o.enqueue(apps[i].ID)
		}
	}
	return nil
}

// requeueDeferred re-queues applications sitting in scored, i.e. work the
// quota gate deferred. Runs on the sweep timer so a quota reset or freed
// budget is picked up without a restart; re-admission itself stays with the
// workers.
func (o *Orchestrator) requeueDeferred(ctx context.Context) {
	apps, err := repo.ListApplicationsInState(ctx, o.db, domain.StateScored, o.cfg.QueueCapacity)
	if err != nil {
		log.Error().Err(err).Msg("list deferred applications")
		return
	}
	for i := range apps {
		o.enqueue(apps[i].ID)
	}
}

// OnApprovalDecision resolves a pending_approval application with a human
// decision. "approved" resumes the workflow toward submission; "rejected" is
// terminal.
func (o *Orchestrator) OnApprovalDecision(ctx context.Context, appID, decision, reviewer string) error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return ErrInvalidDecision
	}
	app, err := o.getApp(ctx, appID)
	if err != nil {
		return err
	}
	if domain.IsTerminal(app.State) {
		return ErrAlreadyTerminal
	}
	if app.State != domain.StatePendingApproval {
		return ErrNotAwaitingApproval
	}

	target := domain.StateApproved
	if decision == DecisionRejected {
		target = domain.StateRejected
	}
	if err := o.transition(ctx, app, target, map[string]any{
		"decision": decision,
		"reviewer": reviewer,
	}); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, target, map[string]any{"reviewer": reviewer})
	if target == domain.StateApproved {
		o.enqueue(app.ID)
	}
	return nil
}

// OnSubmissionResult resumes an application parked in submitting once the
// submission engine reports a terminal delivery result.
func (o *Orchestrator) OnSubmissionResult(ctx context.Context, res SubmissionResult) {
	app, err := o.getApp(ctx, res.ApplicationID)
	if err != nil {
		log.Error().Err(err).Str("application_id", res.ApplicationID).Msg("submission result for unknown application")
		return
	}
	if app.State != domain.StateSubmitting {
		log.Warn().
			Str("application_id", app.ID).
			Str("state", app.State).
			Msg("submission result ignored, application not submitting")
		return
	}

	if res.Delivered {
		err = o.transition(ctx, app, domain.StateSubmitted, map[string]any{"last_error": ""})
		if err == nil {
			o.recordEvent(ctx, app.ID, domain.StateSubmitted, map[string]any{
				"platform":    res.Platform,
				"delivery_id": res.DeliveryID,
				"attempts":    res.Attempts,
			})
			o.enqueue(app.ID)
		}
	} else {
		err = o.transition(ctx, app, domain.StateSubmissionFailed, map[string]any{"last_error": res.LastError})
		if err == nil {
			o.recordEvent(ctx, app.ID, domain.StateSubmissionFailed, map[string]any{
				"platform": res.Platform,
				"attempts": res.Attempts,
				"error":    res.LastError,
			})
		}
	}
	if err != nil {
		log.Error().Err(err).Str("application_id", app.ID).Msg("apply submission result")
	}
}

// OnOutcome closes a tracking application with a reported outcome and hands
// the closed record to the feedback adapter.
func (o *Orchestrator) OnOutcome(ctx context.Context, appID, outcome string) error {
	if !domain.ValidOutcome(outcome) {
		return ErrInvalidOutcome
	}
	app, err := o.getApp(ctx, appID)
	if err != nil {
		return err
	}
	if domain.IsTerminal(app.State) {
		return ErrAlreadyTerminal
	}
	if app.State != domain.StateTracking {
		return ErrNotTracking
	}
	if err := o.transition(ctx, app, domain.StateClosed, map[string]any{"outcome": outcome}); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, domain.StateClosed, map[string]any{"outcome": outcome})
	if o.OnClosed != nil {
		o.OnClosed(ctx, app)
	}
	return nil
}

// Cancel flags an application for abandonment. Running steps observe the
// flag at the next transition boundary; parked applications are queued so a
// worker abandons them promptly. Terminal applications cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, appID string) error {
	app, err := o.getApp(ctx, appID)
	if err != nil {
		return err
	}
	if !domain.CanCancel(app.State) {
		return ErrAlreadyTerminal
	}
	if err := repo.SetCancelRequested(ctx, o.db, app.ID); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, "cancel_requested", nil)
	o.enqueue(app.ID)
	return nil
}

func (o *Orchestrator) enqueue(appID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	select {
	case o.work <- appID:
	default:
		// Full queue is not fatal: Resume re-drives anything left behind.
		log.Warn().Str("application_id", appID).Msg("orchestrator queue full, deferred to resume")
	}
}

// advance drives one application forward until it parks, terminates, or a
// step fails.
func (o *Orchestrator) advance(ctx context.Context, appID string) {
	for {
		app, err := o.getApp(ctx, appID)
		if err != nil {
			log.Error().Err(err).Str("application_id", appID).Msg("load application")
			return
		}
		if domain.IsTerminal(app.State) {
			return
		}
		if app.CancelRequested {
			if err := o.transition(ctx, app, domain.StateAbandoned, nil); err == nil {
				o.recordEvent(ctx, app.ID, domain.StateAbandoned, nil)
			}
			return
		}

		proceed, err := o.step(ctx, app)
		if errors.Is(err, repo.ErrVersionConflict) {
			continue // someone else moved the record, re-read and re-evaluate
		}
		if err != nil {
			log.Error().Err(err).
				Str("application_id", app.ID).
				Str("state", app.State).
				Msg("workflow step failed")
			return
		}
		if !proceed {
			return
		}
	}
}

// step executes the action for the application's current state. It returns
// true when the worker should keep driving this application.
func (o *Orchestrator) step(ctx context.Context, app *domain.Application) (bool, error) {
	switch app.State {
	case domain.StateDiscovered:
		return true, o.stepScore(ctx, app)
	case domain.StateScored:
		return o.stepAdmit(ctx, app)
	case domain.StateAdmitted:
		err := o.transition(ctx, app, domain.StateGenerationRequested, nil)
		return err == nil, err
	case domain.StateGenerationRequested:
		return false, o.beginGeneration(ctx, app)
	case domain.StateGenerated:
		return true, o.stepApprovalGate(ctx, app)
	case domain.StateAutoApproved:
		err := o.transition(ctx, app, domain.StateApproved, map[string]any{"decision": DecisionApproved})
		return err == nil, err
	case domain.StateApproved:
		return false, o.stepSubmit(ctx, app)
	case domain.StateSubmitted:
		return false, o.stepTrack(ctx, app)
	case domain.StatePendingApproval, domain.StateSubmitting, domain.StateTracking:
		return false, nil // parked, resumed by events
	default:
		return false, fmt.Errorf("no step for state %s", app.State)
	}
}

// stepScore evaluates fit under the active weights version and persists the
// breakdown for later outcome attribution.
func (o *Orchestrator) stepScore(ctx context.Context, app *domain.Application) error {
	profile, ok := o.profiles.Profile(app.UserID)
	if !ok {
		return ErrUnknownProfile
	}
	opp, err := repo.GetOpportunity(ctx, o.db, app.OpportunityID)
	if err != nil {
		return err
	}

	w := o.weights.Current()
	res := scoring.Score(profile, *opp, w, time.Now().UTC())

	// Map-form updates bypass the model's field serializer, so the breakdown
	// goes to its text column pre-encoded.
	features, err := json.Marshal(res.Features)
	if err != nil {
		return fmt.Errorf("encode feature scores: %w", err)
	}
	if err := o.transition(ctx, app, domain.StateScored, map[string]any{
		"score":           res.Score,
		"tier":            res.Tier,
		"weights_version": w.Version,
		"feature_scores":  string(features),
	}); err != nil {
		return err
	}
	if err := repo.UpdateOpportunityScore(ctx, o.db, opp.ID, res.Score, res.Tier); err != nil {
		log.Warn().Err(err).Str("opportunity_id", opp.ID).Msg("record opportunity score")
	}
	o.recordEvent(ctx, app.ID, domain.StateScored, map[string]any{
		"score":           res.Score,
		"tier":            res.Tier,
		"weights_version": w.Version,
	})
	return nil
}

// stepAdmit applies the tier gate and the daily admission quota. Tier 3 is
// skipped outright; a scored application over quota stays parked in scored
// until the deferred-admission sweep (or a Resume pass) finds budget for it.
func (o *Orchestrator) stepAdmit(ctx context.Context, app *domain.Application) (bool, error) {
	if app.Tier >= 3 {
		if err := o.transition(ctx, app, domain.StateSkipped, map[string]any{"last_error": "below admission tier"}); err != nil {
			return false, err
		}
		o.recordEvent(ctx, app.ID, domain.StateSkipped, map[string]any{"reason": "below admission tier"})
		return false, nil
	}
	if !o.admitWithinQuota(ctx) {
		log.Info().Str("application_id", app.ID).Msg("daily admission quota reached, deferred")
		return false, nil
	}
	if err := o.transition(ctx, app, domain.StateAdmitted, nil); err != nil {
		o.releaseQuota()
		return false, err
	}
	o.recordEvent(ctx, app.ID, domain.StateAdmitted, map[string]any{"tier": app.Tier})
	return true, nil
}

// errStopping aborts a generation goroutine during shutdown. The application
// stays in generation_requested and Resume re-drives it.
var errStopping = errors.New("orchestrator stopping")

// beginGeneration parks the application in generation_requested and hands the
// draft call to its own goroutine. The pool worker is released immediately:
// generator latency, retries, and backoff sleeps never hold a slot. The
// in-flight set keeps a Resume pass from spawning a second call for the same
// application.
func (o *Orchestrator) beginGeneration(ctx context.Context, app *domain.Application) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	if _, busy := o.generating[app.ID]; busy {
		o.mu.Unlock()
		return nil
	}
	o.generating[app.ID] = struct{}{}
	o.mu.Unlock()

	snapshot := *app
	go o.runGeneration(ctx, &snapshot)
	return nil
}

func (o *Orchestrator) runGeneration(ctx context.Context, app *domain.Application) {
	defer func() {
		o.mu.Lock()
		delete(o.generating, app.ID)
		o.mu.Unlock()
	}()

	if err := o.generateDraft(ctx, app); err != nil {
		if !errors.Is(err, errStopping) && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).
				Str("application_id", app.ID).
				Str("state", app.State).
				Msg("workflow step failed")
		}
		return
	}
	// Keep driving on this goroutine; the approval and submission parks
	// release it promptly.
	o.advance(ctx, app.ID)
}

// generateDraft requests a draft from the generation collaborator. Timeouts
// and transport errors are transient: each try gets its own deadline and the
// retry budget decides when to give up and skip the application.
func (o *Orchestrator) generateDraft(ctx context.Context, app *domain.Application) error {
	profile, ok := o.profiles.Profile(app.UserID)
	if !ok {
		return ErrUnknownProfile
	}
	opp, err := repo.GetOpportunity(ctx, o.db, app.OpportunityID)
	if err != nil {
		return err
	}
	constraints := generate.Constraints{ContentType: contentTypeFor(opp.Type)}

	var draft generate.Draft
	var lastErr error
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
		draft, lastErr = o.generator.Generate(callCtx, profile, *opp, constraints)
		cancel()
		if lastErr == nil {
			break
		}
		log.Warn().Err(lastErr).
			Str("application_id", app.ID).
			Int("attempt", attempt).
			Msg("generation attempt failed")
		if o.cfg.GenerationRetry.Exhausted(attempt) {
			if err := o.transition(ctx, app, domain.StateSkipped, map[string]any{"last_error": "generation failed: " + lastErr.Error()}); err != nil {
				return err
			}
			o.recordEvent(ctx, app.ID, domain.StateSkipped, map[string]any{"reason": "generation failed", "error": lastErr.Error()})
			return nil
		}
		select {
		case <-time.After(o.cfg.GenerationRetry.Backoff(attempt)):
		case <-o.quit:
			return errStopping
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := o.transition(ctx, app, domain.StateGenerated, map[string]any{
		"content_ref":   draft.ContentRef,
		"quality_score": draft.QualityScore,
	}); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, domain.StateGenerated, map[string]any{
		"content_ref":   draft.ContentRef,
		"quality_score": draft.QualityScore,
	})
	return nil
}

// stepApprovalGate routes a generated draft either through auto-approval or
// into the human review queue.
func (o *Orchestrator) stepApprovalGate(ctx context.Context, app *domain.Application) error {
	autoOK := o.cfg.AutomationLevel == AutomationFullAuto &&
		app.QualityScore != nil &&
		*app.QualityScore >= o.cfg.AutoApproveQuality

	if autoOK {
		if err := o.transition(ctx, app, domain.StateAutoApproved, nil); err != nil {
			return err
		}
		o.recordEvent(ctx, app.ID, domain.StateAutoApproved, map[string]any{"quality_score": *app.QualityScore})
		return nil
	}
	if err := o.transition(ctx, app, domain.StatePendingApproval, nil); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, domain.StatePendingApproval, nil)
	return nil
}

// stepSubmit hands the application to the submission engine and parks it in
// submitting. The engine's OnResult callback resumes it.
func (o *Orchestrator) stepSubmit(ctx context.Context, app *domain.Application) error {
	opp, err := repo.GetOpportunity(ctx, o.db, app.OpportunityID)
	if err != nil {
		return err
	}
	plat := o.cfg.DefaultPlatform
	if p, ok := o.profiles.Profile(app.UserID); ok && p.PreferredPlatform != "" {
		plat = p.PreferredPlatform
	}

	if err := o.transition(ctx, app, domain.StateSubmitting, map[string]any{"platform": plat}); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, domain.StateSubmitting, map[string]any{"platform": plat})

	job := SubmissionJob{
		ApplicationID: app.ID,
		Platform:      plat,
		Tier:          app.Tier,
		Deadline:      opp.Deadline,
		Package: platform.Package{
			ApplicationID: app.ID,
			OpportunityID: opp.ID,
			UserID:        app.UserID,
			ContentRef:    app.ContentRef,
			Title:         opp.Title,
			Organization:  opp.Organization,
			Deadline:      opp.Deadline,
		},
	}
	if err := o.submitter.Enqueue(ctx, job); err != nil {
		if errors.Is(err, platform.ErrUnknownPlatform) && plat != o.cfg.DefaultPlatform {
			job.Platform = o.cfg.DefaultPlatform
			err = o.submitter.Enqueue(ctx, job)
		}
		if err != nil {
			o.OnSubmissionResult(ctx, SubmissionResult{
				ApplicationID: app.ID,
				Platform:      job.Platform,
				LastError:     "enqueue: " + err.Error(),
			})
			return nil
		}
	}
	return nil
}

// stepTrack moves a submitted application into tracking and schedules its
// follow-ups.
func (o *Orchestrator) stepTrack(ctx context.Context, app *domain.Application) error {
	if err := o.transition(ctx, app, domain.StateTracking, nil); err != nil {
		return err
	}
	o.recordEvent(ctx, app.ID, domain.StateTracking, nil)
	if o.followUps != nil {
		var deadline *time.Time
		if opp, err := repo.GetOpportunity(ctx, o.db, app.OpportunityID); err == nil {
			deadline = opp.Deadline
		}
		if err := o.followUps.PlanFollowUps(ctx, app, deadline); err != nil {
			log.Warn().Err(err).Str("application_id", app.ID).Msg("schedule follow-ups")
		}
	}
	return nil
}

// transition performs the version-guarded write and keeps the in-memory copy
// in sync on success. Illegal moves are programming errors surfaced loudly.
func (o *Orchestrator) transition(ctx context.Context, app *domain.Application, to string, extra map[string]any) error {
	if !domain.CanTransition(app.State, to) {
		return fmt.Errorf("illegal transition %s -> %s for application %s", app.State, to, app.ID)
	}
	updates := map[string]any{"state": to}
	for k, v := range extra {
		updates[k] = v
	}
	if err := repo.TransitionApplication(ctx, o.db, app.ID, app.Version, updates); err != nil {
		return err
	}
	stateTransitions.WithLabelValues(to).Inc()

	fresh, err := repo.GetApplication(ctx, o.db, app.ID)
	if err != nil {
		return err
	}
	*app = *fresh
	return nil
}

func (o *Orchestrator) getApp(ctx context.Context, id string) (*domain.Application, error) {
	app, err := repo.GetApplication(ctx, o.db, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

func (o *Orchestrator) recordEvent(ctx context.Context, appID, kind string, payload map[string]any) {
	if _, err := repo.AppendEvent(ctx, o.db, appID, kind, payload); err != nil {
		log.Error().Err(err).Str("application_id", appID).Str("kind", kind).Msg("append timeline event")
	}
}

// admitWithinQuota reserves one slot of the daily admission budget. The
// counter survives restarts: the first reservation of each UTC day hydrates
// it from the persisted timeline.
func (o *Orchestrator) admitWithinQuota(ctx context.Context) bool {
	if o.cfg.DailyQuota <= 0 {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(o.quotaDay) {
		used, err := repo.CountEventsSince(ctx, o.db, domain.StateAdmitted, day)
		if err != nil {
			log.Error().Err(err).Msg("hydrate admission quota")
			used = 0
		}
		o.quotaDay = day
		o.quotaUse = int(used)
	}
	if o.quotaUse >= o.cfg.DailyQuota {
		return false
	}
	o.quotaUse++
	return true
}

func (o *Orchestrator) releaseQuota() {
	o.mu.Lock()
	if o.quotaUse > 0 {
		o.quotaUse--
	}
	o.mu.Unlock()
}

// contentTypeFor maps an opportunity type to the draft kind the generator
// should produce.
func contentTypeFor(oppType string) string {
	switch oppType {
	case "grant":
		return "proposal"
	case "scholarship", "fellowship":
		return "essay"
	case "accelerator":
		return "pitch"
	default:
		return "cover_letter"
	}
}
