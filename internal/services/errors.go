// Package services implements the business logic of the orchestration
// engine: ingestion/deduplication, the workflow orchestrator, the submission
// engine, the status tracker, and the outcome feedback adapter.
//
// This file centralizes the service-level error taxonomy:
//
//   - validation errors: malformed input, rejected and never retried;
//   - transient errors: recovered locally by the owning component's retry
//     policy, never surfaced to callers;
//   - conflict errors: optimistic-concurrency version races, retried
//     transparently by the orchestrator;
//   - terminal errors: retry budget exhausted, surfaced only as a state
//     value on the application record (submission_failed, skipped), never
//     as a fault that aborts processing of other applications.
package services

import "errors"

var (
	// ErrValidation is returned for malformed ingestion input (missing
	// required fields). Logged and rejected, never retried.
	ErrValidation = errors.New("invalid input")

	// ErrOpportunityNotFound indicates the referenced opportunity does not
	// exist in the store.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrApplicationNotFound indicates the referenced application does not
	// exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrUnknownProfile indicates no profile is configured for the user.
	ErrUnknownProfile = errors.New("unknown user profile")

	// ErrInvalidDecision is returned when an approval decision is neither
	// "approved" nor "rejected".
	ErrInvalidDecision = errors.New("decision must be approved or rejected")

	// ErrInvalidOutcome is returned when an outcome event carries an
	// unrecognized outcome value.
	ErrInvalidOutcome = errors.New("outcome must be accepted, rejected, or no_response")

	// ErrNotAwaitingApproval is returned when an approval decision arrives
	// for an application that is not pending approval.
	ErrNotAwaitingApproval = errors.New("application is not pending approval")

	// ErrNotTracking is returned when an outcome event arrives for an
	// application that is not in the tracking state.
	ErrNotTracking = errors.New("application is not tracking an outcome")

	// ErrAlreadyTerminal is returned when an operation targets an
	// application that has already reached a terminal state.
	ErrAlreadyTerminal = errors.New("application is in a terminal state")

	// ErrQueueFull is returned by the submission engine when a platform's
	// bounded queue cannot accept more work.
	ErrQueueFull = errors.New("submission queue full")

	// ErrEngineStopped is returned when work is offered to a stopped
	// submission engine or orchestrator.
	ErrEngineStopped = errors.New("engine stopped")
)
