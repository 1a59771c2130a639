// Package pipeline guards the status fields of pipeline items.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
)

// DefaultMaxPublishFailures is how many failed publish attempts an item may
// accumulate before it stays failed.
const DefaultMaxPublishFailures = 3

var (
	// ErrInvalidTransition is returned for a status change the pipeline forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotApproved is returned when a fresh validation did not approve the item.
	ErrNotApproved = errors.New("content not approved")
	// ErrRetriesExhausted is returned when a failed item may not be retried.
	ErrRetriesExhausted = errors.New("publish retries exhausted")
)

var transitions = map[domain.PipelineStatus][]domain.PipelineStatus{
	domain.StatusPending:   {domain.StatusGenerated, domain.StatusPublished, domain.StatusFailed},
	domain.StatusGenerated: {domain.StatusPublished, domain.StatusFailed},
	domain.StatusFailed:    {domain.StatusPending},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to domain.PipelineStatus) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
}

// Validated records a validator verdict. It is the only way a
// validation status reaches storage.
func Validated(result domain.ValidationResult, rejectBelow int, now time.Time) domain.PipelineUpdate {
	status := result.Status(rejectBelow)
	return domain.PipelineUpdate{
		Validation:       &result,
		ValidationStatus: &status,
		ValidatedAt:      &now,
	}
}

// CheckPublishable verifies the stored status allows publishing and that a
// fresh validation approved the content.
func CheckPublishable(item domain.PipelineItem, fresh domain.ValidationResult) error {
	if err := CanTransition(item.Status, domain.StatusPublished); err != nil {
		return err
	}
	if !fresh.Approved {
		return fmt.Errorf("%w: score %d", ErrNotApproved, fresh.Details.OverallScore)
	}
	return nil
}

// Published marks an item as posted with the platform references.
func Published(item domain.PipelineItem, refs map[domain.Platform]string) (domain.PipelineUpdate, error) {
	if err := CanTransition(item.Status, domain.StatusPublished); err != nil {
		return domain.PipelineUpdate{}, err
	}
	status := domain.StatusPublished
	empty := ""
	return domain.PipelineUpdate{Status: &status, PostRefs: refs, ErrorLog: &empty}, nil
}

// Failed records a publish failure and bumps the retry counter. The boolean
// reports whether the item has now used up its retries.
func Failed(item domain.PipelineItem, cause error, maxFailures int) (domain.PipelineUpdate, bool) {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxPublishFailures
	}
	status := domain.StatusFailed
	msg := cause.Error()
	count := item.RetryCount + 1
	return domain.PipelineUpdate{Status: &status, ErrorLog: &msg, RetryCount: &count}, count >= maxFailures
}

// Requeue moves a failed item back to pending while it has retries left.
func Requeue(item domain.PipelineItem, maxFailures int) (domain.PipelineUpdate, error) {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxPublishFailures
	}
	if err := CanTransition(item.Status, domain.StatusPending); err != nil {
		return domain.PipelineUpdate{}, err
	}
	if item.RetryCount >= maxFailures {
		return domain.PipelineUpdate{}, fmt.Errorf("%w: %d failures", ErrRetriesExhausted, item.RetryCount)
	}
	status := domain.StatusPending
	return domain.PipelineUpdate{Status: &status}, nil
}
