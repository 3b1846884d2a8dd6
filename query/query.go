// Package query is the read side of the complaint store: list and detail
// projections for the citizen status page and the admin review queue. It
// never mutates state.
package query

import (
	"context"

	"civiceye/models"
)

// Reader is the subset of the complaint store the query service reads from.
type Reader interface {
	ListByReporter(ctx context.Context, reporterID int64) ([]models.ReviewItem, error)
	ListForReview(ctx context.Context, status models.Status) ([]models.ReviewItem, error)
	GetDetail(ctx context.Context, id int64) (*models.ComplaintDetail, error)
}

// Service exposes read-only projections over committed store state. Reads go
// to the same authoritative store the decision engine writes to, so a read
// that follows a committed decision observes it.
type Service struct {
	reader Reader
}

func New(reader Reader) *Service {
	return &Service{reader: reader}
}

// ListByReporter returns one reporter's complaints with their current
// assessment, newest first.
func (s *Service) ListByReporter(ctx context.Context, reporterID int64) ([]models.ReviewItem, error) {
	return s.reader.ListByReporter(ctx, reporterID)
}

// ListForReview returns complaints awaiting review with their current
// assessment, oldest first so review is first-in-first-out. The filter
// narrows by lifecycle state; empty means all.
func (s *Service) ListForReview(ctx context.Context, filter models.Status) ([]models.ReviewItem, error) {
	if filter != "" && !models.ValidStatus(filter) {
		return nil, models.ErrInvalidStatus
	}
	return s.reader.ListForReview(ctx, filter)
}

// GetDetail returns the complaint, its current assessment and its active
// decision, or ErrNotFound.
func (s *Service) GetDetail(ctx context.Context, id int64) (*models.ComplaintDetail, error) {
	return s.reader.GetDetail(ctx, id)
}
