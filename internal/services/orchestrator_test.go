package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/generate"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/scoring"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []SubmissionJob
	err  error
}

func (f *fakeSubmitter) Enqueue(_ context.Context, job SubmissionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeSubmitter) list() []SubmissionJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmissionJob(nil), f.jobs...)
}

type fakePlanner struct {
	mu      sync.Mutex
	planned []string
}

func (f *fakePlanner) PlanFollowUps(_ context.Context, app *domain.Application, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planned = append(f.planned, app.ID)
	return nil
}

func okGenerator(quality float64) generate.Generator {
	return generate.Func(func(context.Context, domain.Profile, domain.Opportunity, generate.Constraints) (generate.Draft, error) {
		return generate.Draft{ContentRef: "draft-1", QualityScore: quality}, nil
	})
}

// permissiveWeights makes every scored application land in tier 1 so workflow
// tests are not coupled to scoring arithmetic.
func permissiveWeights() *scoring.Store {
	w := scoring.DefaultWeights()
	w.Tier1Threshold = 0.01
	w.Tier2Threshold = 0.001
	return scoring.NewStore(w)
}

// strictWeights makes every scored application land in tier 3.
func strictWeights() *scoring.Store {
	w := scoring.DefaultWeights()
	w.Tier1Threshold = 0.999
	w.Tier2Threshold = 0.998
	return scoring.NewStore(w)
}

func testOrchestratorConfig(level string) OrchestratorConfig {
	return OrchestratorConfig{
		Workers:            1,
		QueueCapacity:      64,
		AutomationLevel:    level,
		AutoApproveQuality: 0.8,
		GenerationTimeout:  time.Second,
		GenerationRetry:    RetryPolicy{MaxAttempts: 3, Base: time.Millisecond, Multiplier: 1},
		DefaultPlatform:    domain.PlatformEmail,
	}
}

func testProfiles() *StaticProfiles {
	return NewStaticProfiles([]domain.Profile{{
		UserID:          "u-1",
		Skills:          []string{"go", "sql"},
		ExperienceYears: 6,
		Interests:       []string{"backend"},
	}})
}

func mkOpportunity(t *testing.T, db *gorm.DB) *domain.Opportunity {
	t.Helper()
	o := &domain.Opportunity{
		ID:           uuid.NewString(),
		Fingerprint:  uuid.NewString(),
		Type:         "job",
		Title:        "Backend Engineer",
		Organization: "Acme Corp",
		Skills:       []string{"go", "sql"},
		YearsNeeded:  4,
		DiscoveredAt: time.Now().UTC(),
	}
	if err := repo.CreateOpportunity(context.Background(), db, o); err != nil {
		t.Fatalf("CreateOpportunity: %v", err)
	}
	return o
}

// kickoff creates the applications for an opportunity and returns the one for
// u-1. Tests drive the workflow by calling advance directly instead of
// starting the worker pool.
func kickoff(t *testing.T, o *Orchestrator, opp *domain.Opportunity) *domain.Application {
	t.Helper()
	if err := o.KickoffOpportunity(context.Background(), opp); err != nil {
		t.Fatalf("KickoffOpportunity: %v", err)
	}
	apps, err := repo.ListApplicationsInState(context.Background(), o.db, domain.StateDiscovered, 10)
	if err != nil || len(apps) == 0 {
		t.Fatalf("no discovered application (err=%v)", err)
	}
	for i := range apps {
		if apps[i].OpportunityID == opp.ID {
			return &apps[i]
		}
	}
	t.Fatal("application for opportunity not found")
	return nil
}

func appState(t *testing.T, db *gorm.DB, id string) *domain.Application {
	t.Helper()
	app, err := repo.GetApplication(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	return app
}

// waitState polls until the application reaches the wanted state. Generation
// runs on its own goroutine, so states beyond generation_requested settle
// asynchronously even when advance is called inline.
func waitState(t *testing.T, db *gorm.DB, id, want string) *domain.Application {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		app := appState(t, db, id)
		if app.State == want {
			return app
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", app.State, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestOrchestrator_FullAutoHappyPath(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sub := &fakeSubmitter{}
	plan := &fakePlanner{}

	var closedMu sync.Mutex
	var closed []string

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		permissiveWeights(), testProfiles(), okGenerator(0.9), sub, plan)
	o.OnClosed = func(_ context.Context, app *domain.Application) {
		closedMu.Lock()
		closed = append(closed, app.ID)
		closedMu.Unlock()
	}

	opp := mkOpportunity(t, db)
	app := kickoff(t, o, opp)

	// Drives discovered through scoring, admission, generation,
	// auto-approval, and into the submission engine.
	o.advance(ctx, app.ID)

	got := waitState(t, db, app.ID, domain.StateSubmitting)
	if got.Score <= 0 || got.Tier != 1 || got.WeightsVersion != 1 {
		t.Errorf("scoring fields not persisted: score=%v tier=%d wv=%d", got.Score, got.Tier, got.WeightsVersion)
	}
	if got.FeatureScores[scoring.FeatureSkillMatch] <= 0 {
		t.Errorf("feature breakdown not persisted: %+v", got.FeatureScores)
	}
	if got.ContentRef != "draft-1" || got.QualityScore == nil {
		t.Errorf("generation fields not persisted: %+v", got)
	}
	if got.Decision != DecisionApproved {
		t.Errorf("decision = %q, want approved", got.Decision)
	}
	if jobs := sub.list(); len(jobs) != 1 || jobs[0].Platform != domain.PlatformEmail {
		t.Fatalf("submitted jobs = %+v", jobs)
	}

	// The engine reports delivery; the worker then moves it into tracking.
	o.OnSubmissionResult(ctx, SubmissionResult{
		ApplicationID: app.ID, Platform: domain.PlatformEmail,
		Delivered: true, DeliveryID: "dl-1", Attempts: 1,
	})
	o.advance(ctx, app.ID)

	got = appState(t, db, app.ID)
	if got.State != domain.StateTracking {
		t.Fatalf("state = %s, want tracking", got.State)
	}
	if len(plan.planned) != 1 {
		t.Errorf("follow-ups planned = %v, want one entry", plan.planned)
	}

	if err := o.OnOutcome(ctx, app.ID, domain.OutcomeAccepted); err != nil {
		t.Fatalf("OnOutcome: %v", err)
	}
	got = appState(t, db, app.ID)
	if got.State != domain.StateClosed || got.Outcome != domain.OutcomeAccepted {
		t.Fatalf("state=%s outcome=%s, want closed/accepted", got.State, got.Outcome)
	}
	if len(closed) != 1 || closed[0] != app.ID {
		t.Errorf("OnClosed hook fired for %v, want [%s]", closed, app.ID)
	}

	// Timeline carries the whole journey.
	events, err := repo.ListTimeline(ctx, db, app.ID)
	if err != nil {
		t.Fatalf("ListTimeline: %v", err)
	}
	if len(events) < 8 {
		t.Errorf("timeline has %d events, want the full journey recorded", len(events))
	}
}

func TestOrchestrator_ReviewRequiredParksForApproval(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sub := &fakeSubmitter{}

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationReviewRequired),
		permissiveWeights(), testProfiles(), okGenerator(0.95), sub, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)

	waitState(t, db, app.ID, domain.StatePendingApproval)
	if len(sub.list()) != 0 {
		t.Fatal("nothing may reach the submission engine before approval")
	}

	if err := o.OnApprovalDecision(ctx, app.ID, "maybe", "alice"); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("err = %v, want ErrInvalidDecision", err)
	}

	if err := o.OnApprovalDecision(ctx, app.ID, DecisionApproved, "alice"); err != nil {
		t.Fatalf("OnApprovalDecision: %v", err)
	}
	o.advance(ctx, app.ID)

	got := appState(t, db, app.ID)
	if got.State != domain.StateSubmitting {
		t.Fatalf("state = %s, want submitting after approval", got.State)
	}
	if got.Reviewer != "alice" {
		t.Errorf("reviewer = %q, want alice", got.Reviewer)
	}

	// A second decision arrives too late.
	if err := o.OnApprovalDecision(ctx, app.ID, DecisionApproved, "bob"); !errors.Is(err, ErrNotAwaitingApproval) {
		t.Fatalf("err = %v, want ErrNotAwaitingApproval", err)
	}
}

func TestOrchestrator_RejectionIsTerminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationReviewRequired),
		permissiveWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)
	waitState(t, db, app.ID, domain.StatePendingApproval)

	if err := o.OnApprovalDecision(ctx, app.ID, DecisionRejected, "alice"); err != nil {
		t.Fatalf("OnApprovalDecision: %v", err)
	}
	got := appState(t, db, app.ID)
	if got.State != domain.StateRejected {
		t.Fatalf("state = %s, want rejected", got.State)
	}

	if err := o.OnApprovalDecision(ctx, app.ID, DecisionApproved, "bob"); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("err = %v, want ErrAlreadyTerminal", err)
	}
}

func TestOrchestrator_GenerationRetriesThenSucceeds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var calls atomic.Int32
	gen := generate.Func(func(context.Context, domain.Profile, domain.Opportunity, generate.Constraints) (generate.Draft, error) {
		if calls.Add(1) < 3 {
			return generate.Draft{}, errors.New("upstream timeout")
		}
		return generate.Draft{ContentRef: "draft-after-retry", QualityScore: 0.7}, nil
	})

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationReviewRequired),
		permissiveWeights(), testProfiles(), gen, &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)

	got := waitState(t, db, app.ID, domain.StatePendingApproval)
	if got.ContentRef != "draft-after-retry" {
		t.Fatalf("content = %q, want draft-after-retry", got.ContentRef)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("generator called %d times, want 3", n)
	}
}

func TestOrchestrator_GenerationExhaustionSkips(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	gen := generate.Func(func(context.Context, domain.Profile, domain.Opportunity, generate.Constraints) (generate.Draft, error) {
		return generate.Draft{}, errors.New("model unavailable")
	})

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		permissiveWeights(), testProfiles(), gen, &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)

	got := waitState(t, db, app.ID, domain.StateSkipped)
	if !strings.Contains(got.LastError, "generation failed") {
		t.Errorf("last_error = %q", got.LastError)
	}
}

func TestOrchestrator_GenerationReleasesWorker(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	gen := generate.Func(func(ctx context.Context, _ domain.Profile, _ domain.Opportunity, _ generate.Constraints) (generate.Draft, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return generate.Draft{}, ctx.Err()
		}
		return generate.Draft{ContentRef: "slow-draft", QualityScore: 0.9}, nil
	})

	cfg := testOrchestratorConfig(AutomationReviewRequired)
	cfg.GenerationTimeout = time.Minute
	o := NewOrchestrator(db, cfg, permissiveWeights(), testProfiles(), gen, &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))

	// advance must return with the draft call still in flight instead of
	// holding its caller through generator latency.
	o.advance(ctx, app.ID)
	if got := appState(t, db, app.ID); got.State != domain.StateGenerationRequested {
		t.Fatalf("state = %s, want generation_requested", got.State)
	}

	// A resume pass touching the same application must not start a second
	// draft call.
	o.advance(ctx, app.ID)

	close(release)
	got := waitState(t, db, app.ID, domain.StatePendingApproval)
	if got.ContentRef != "slow-draft" {
		t.Fatalf("content = %q, want slow-draft", got.ContentRef)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("generator called %d times, want 1", n)
	}
}

func TestOrchestrator_LowTierIsSkipped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		strictWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)

	got := appState(t, db, app.ID)
	if got.State != domain.StateSkipped {
		t.Fatalf("state = %s, want skipped", got.State)
	}
	if got.Tier != 3 {
		t.Errorf("tier = %d, want 3", got.Tier)
	}
}

func TestOrchestrator_DailyQuotaDefersAdmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg := testOrchestratorConfig(AutomationReviewRequired)
	cfg.DailyQuota = 1
	o := NewOrchestrator(db, cfg, permissiveWeights(), testProfiles(),
		okGenerator(0.9), &fakeSubmitter{}, nil)

	first := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, first.ID)
	waitState(t, db, first.ID, domain.StatePendingApproval)

	second := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, second.ID)

	// Over quota: stays scored until budget frees up.
	if got := appState(t, db, second.ID); got.State != domain.StateScored {
		t.Fatalf("second state = %s, want scored", got.State)
	}

	// The periodic sweep re-queues deferred work without a restart.
	for len(o.work) > 0 {
		<-o.work
	}
	o.requeueDeferred(ctx)
	select {
	case id := <-o.work:
		if id != second.ID {
			t.Fatalf("requeued %s, want %s", id, second.ID)
		}
	default:
		t.Fatal("deferred application not requeued")
	}
}

func TestOrchestrator_CancelAbandons(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationReviewRequired),
		permissiveWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)
	waitState(t, db, app.ID, domain.StatePendingApproval)

	if err := o.Cancel(ctx, app.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	o.advance(ctx, app.ID)

	got := appState(t, db, app.ID)
	if got.State != domain.StateAbandoned {
		t.Fatalf("state = %s, want abandoned", got.State)
	}

	if err := o.Cancel(ctx, app.ID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("err = %v, want ErrAlreadyTerminal", err)
	}
}

func TestOrchestrator_SubmissionFailureRecorded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		permissiveWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)
	waitState(t, db, app.ID, domain.StateSubmitting)

	o.OnSubmissionResult(ctx, SubmissionResult{
		ApplicationID: app.ID,
		Platform:      domain.PlatformEmail,
		Delivered:     false,
		Attempts:      6,
		LastError:     "rate limited",
	})

	got := appState(t, db, app.ID)
	if got.State != domain.StateSubmissionFailed {
		t.Fatalf("state = %s, want submission_failed", got.State)
	}
	if got.LastError != "rate limited" {
		t.Errorf("last_error = %q", got.LastError)
	}
}

func TestOrchestrator_EnqueueFailureFailsSubmission(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub := &fakeSubmitter{err: ErrQueueFull}
	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		permissiveWeights(), testProfiles(), okGenerator(0.9), sub, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)

	got := waitState(t, db, app.ID, domain.StateSubmissionFailed)
	if !strings.Contains(got.LastError, "enqueue") {
		t.Errorf("last_error = %q", got.LastError)
	}
}

func TestOrchestrator_OutcomeGuards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationReviewRequired),
		permissiveWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))
	o.advance(ctx, app.ID)
	waitState(t, db, app.ID, domain.StatePendingApproval) // not tracking

	if err := o.OnOutcome(ctx, app.ID, "ghosted"); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v, want ErrInvalidOutcome", err)
	}
	if err := o.OnOutcome(ctx, app.ID, domain.OutcomeAccepted); !errors.Is(err, ErrNotTracking) {
		t.Fatalf("err = %v, want ErrNotTracking", err)
	}
	if err := o.OnOutcome(ctx, uuid.NewString(), domain.OutcomeAccepted); !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("err = %v, want ErrApplicationNotFound", err)
	}
}

func TestOrchestrator_ResumeRequeuesInterruptedWork(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	o := NewOrchestrator(db, testOrchestratorConfig(AutomationFullAuto),
		permissiveWeights(), testProfiles(), okGenerator(0.9), &fakeSubmitter{}, nil)

	app := kickoff(t, o, mkOpportunity(t, db))

	// Drain the kickoff enqueue, then simulate a restart.
	for len(o.work) > 0 {
		<-o.work
	}
	if err := o.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	select {
	case id := <-o.work:
		if id != app.ID {
			t.Fatalf("resumed %s, want %s", id, app.ID)
		}
	default:
		t.Fatal("resume queued nothing")
	}
}
