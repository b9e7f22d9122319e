// Package domain defines the persistence models for opportunities,
// applications, submission attempts, follow-up tasks, and the append-only
// lifecycle timeline. These types are mapped with GORM and form the core
// data layer of the orchestration engine.
package domain

import (
	"time"
)

// Opportunity is a canonicalized record of a discovered opportunity (job,
// grant, scholarship, fellowship, accelerator, …). Records are immutable once
// merged: a new ingestion matching an existing fingerprint merges into the
// existing row (latest-wins for mutable fields, union for the source list)
// instead of creating a duplicate.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Fingerprint: normalized content hash; unique across the store.
//   - Sources: every source that has reported this opportunity (union on merge).
//   - DiscoveredAt: earliest discovery time across all sources.
//   - ArchivedAt: soft-archive marker set after the retention window; rows
//     are never deleted.
type Opportunity struct {
	ID           string     `json:"id"            gorm:"type:char(36);primaryKey"`
	Fingerprint  string     `json:"fingerprint"   gorm:"type:char(64);not null;uniqueIndex:ux_opportunity_fingerprint"`
	Type         string     `json:"type"          gorm:"type:varchar(32);not null;default:'job'"`
	Title        string     `json:"title"         gorm:"type:varchar(512);not null"`
	Organization string     `json:"organization"  gorm:"type:varchar(255);not null"`
	CanonicalURL string     `json:"canonical_url" gorm:"type:varchar(2048)"`
	Description  string     `json:"description"   gorm:"type:text"`
	Location     string     `json:"location"      gorm:"type:varchar(255)"`
	Sources      []string   `json:"sources"       gorm:"serializer:json"`
	Tags         []string   `json:"tags"          gorm:"serializer:json"`
	Skills       []string   `json:"skills"        gorm:"serializer:json"`
	YearsNeeded  int        `json:"years_needed"`
	SalaryMin    *float64   `json:"salary_min,omitempty"`
	SalaryMax    *float64   `json:"salary_max,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Tier         int        `json:"tier"`
	Score        float64    `json:"score"`
	DiscoveredAt time.Time  `json:"discovered_at" gorm:"not null;index"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Opportunity.
func (Opportunity) TableName() string { return "opportunities" }

// Application tracks one (user, opportunity) pair through the workflow state
// machine. It is owned exclusively by the orchestrator; every state change
// goes through a version-guarded compare-and-swap so that two workers can
// never double-process the same record.
//
// Fields:
//   - State: current workflow state (see states.go).
//   - Version: monotonically increasing optimistic-concurrency counter.
//   - WeightsVersion: scoring weights version in effect when the record was
//     scored; used by the outcome feedback adapter for attribution.
//   - FeatureScores: per-feature score breakdown captured at scoring time.
//   - CancelRequested: operator cancellation flag, honored at the next
//     transition boundary.
type Application struct {
	ID              string             `json:"id"             gorm:"type:char(36);primaryKey"`
	OpportunityID   string             `json:"opportunity_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_app_user_opportunity,priority:2"`
	UserID          string             `json:"user_id"        gorm:"type:varchar(64);not null;index;uniqueIndex:ux_app_user_opportunity,priority:1"`
	State           string             `json:"state"          gorm:"type:varchar(32);not null;index"`
	Version         int64              `json:"version"        gorm:"not null;default:1"`
	Score           float64            `json:"score"`
	Tier            int                `json:"tier"`
	WeightsVersion  int                `json:"weights_version"`
	FeatureScores   map[string]float64 `json:"feature_scores" gorm:"serializer:json"`
	ContentRef      string             `json:"content_ref"    gorm:"type:varchar(512)"`
	QualityScore    *float64           `json:"quality_score,omitempty"`
	Platform        string             `json:"platform"       gorm:"type:varchar(32)"`
	Decision        string             `json:"decision"       gorm:"type:varchar(16)"`
	Reviewer        string             `json:"reviewer"       gorm:"type:varchar(64)"`
	Outcome         string             `json:"outcome"        gorm:"type:varchar(16)"`
	LastError       string             `json:"last_error"     gorm:"type:text"`
	CancelRequested bool               `json:"cancel_requested"`
	ArchivedAt      *time.Time         `json:"archived_at,omitempty" gorm:"index"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	// Opportunity is the parent record this application targets.
	Opportunity Opportunity `json:"-" gorm:"foreignKey:OpportunityID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }

// SubmissionAttempt records a single platform dispatch try. Every retry for
// the same (application, platform) pair reuses the same idempotency key so a
// platform adapter can detect and collapse duplicate delivery. Rows are
// immutable once Status becomes terminal (delivered, failed, expired).
type SubmissionAttempt struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ApplicationID  string     `json:"application_id"  gorm:"type:char(36);not null;index"`
	Platform       string     `json:"platform"        gorm:"type:varchar(32);not null"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"type:char(64);not null;index"`
	Status         string     `json:"status"          gorm:"type:varchar(16);not null;index"`
	AttemptNumber  int        `json:"attempt_number"  gorm:"not null;default:1"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	DeliveryID     string     `json:"delivery_id"     gorm:"type:varchar(128)"`
	LastError      string     `json:"last_error"      gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Application Application `json:"-" gorm:"foreignKey:ApplicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SubmissionAttempt.
func (SubmissionAttempt) TableName() string { return "submission_attempts" }

// Submission attempt statuses.
const (
	AttemptPending   = "pending"
	AttemptInFlight  = "in_flight"
	AttemptDelivered = "delivered"
	AttemptFailed    = "failed"
	AttemptExpired   = "expired"
)

// FollowUpTask is a scheduled follow-up for an application (status check,
// thank-you note, deadline reminder). Tasks are created by the status tracker
// and handed to an external notifier when due.
type FollowUpTask struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ApplicationID string    `json:"application_id" gorm:"type:char(36);not null;index"`
	Kind          string    `json:"kind"           gorm:"type:varchar(32);not null"`
	DueAt         time.Time `json:"due_at"         gorm:"not null;index"`
	Completed     bool      `json:"completed"      gorm:"not null;default:false;index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Application Application `json:"-" gorm:"foreignKey:ApplicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FollowUpTask.
func (FollowUpTask) TableName() string { return "follow_up_tasks" }

// Follow-up kinds.
const (
	FollowUpStatusCheck      = "status_check"
	FollowUpThankYouNote     = "thank_you_note"
	FollowUpDeadlineReminder = "deadline_reminder"
)

// TimelineEvent is one entry in the append-only per-application audit log.
// Events are never updated or deleted.
type TimelineEvent struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	ApplicationID string         `json:"application_id" gorm:"type:char(36);not null;index:idx_timeline_app,priority:1"`
	Kind          string         `json:"kind"           gorm:"type:varchar(48);not null"`
	Payload       map[string]any `json:"payload"        gorm:"serializer:json"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index:idx_timeline_app,priority:2"`
}

// TableName returns the database table name for TimelineEvent.
func (TimelineEvent) TableName() string { return "timeline_events" }

// WeightsRecord is a persisted, immutable version of the scoring weights.
// New versions are installed whole; existing versions are never mutated, so
// the feedback adapter can always resolve the exact weights an application
// was scored with.
type WeightsRecord struct {
	Version        int                `json:"version"         gorm:"primaryKey;autoIncrement:false"`
	Weights        map[string]float64 `json:"weights"         gorm:"serializer:json"`
	Tier1Threshold float64            `json:"tier1_threshold" gorm:"not null"`
	Tier2Threshold float64            `json:"tier2_threshold" gorm:"not null"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// TableName returns the database table name for WeightsRecord.
func (WeightsRecord) TableName() string { return "scoring_weights" }

// Outcomes reported for a closed application.
const (
	OutcomeAccepted   = "accepted"
	OutcomeRejected   = "rejected"
	OutcomeNoResponse = "no_response"
)

// ValidOutcome reports whether s is a recognized terminal outcome.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomeAccepted, OutcomeRejected, OutcomeNoResponse:
		return true
	}
	return false
}

// Submission platforms supported by the engine.
const (
	PlatformEmail    = "email"
	PlatformLinkedIn = "linkedin"
	PlatformWebForm  = "webform"
	PlatformAPI      = "api"
)
