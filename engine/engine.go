// Package engine implements the complaint decision state machine: it
// validates administrator verdicts, reconciles them with classifier output
// and produces the durable decision record.
package engine

import (
	"context"
	"errors"
	"fmt"

	"civiceye/database"
	"civiceye/metrics"
	"civiceye/models"

	"github.com/apex/log"
)

// Store is the subset of the complaint store the engine works through.
type Store interface {
	GetComplaint(ctx context.Context, id int64) (*models.Complaint, error)
	UserRole(ctx context.Context, userID int64) (models.Role, error)
	ApplyDecision(ctx context.Context, in database.ApplyDecisionInput) (*models.ComplaintDetail, error)
	TransitionStatus(ctx context.Context, id int64, to models.Status) error
}

// Engine enforces the complaint lifecycle rules.
type Engine struct {
	store Store
}

// New creates a decision engine on top of a complaint store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// DecideRequest is one administrator decision call.
type DecideRequest struct {
	ComplaintID  int64
	AdminID      int64
	Verdict      models.Verdict
	OverrideType *models.Category
}

// Decide records an administrator's disposition of a complaint. The decision
// is idempotent per complaint id: a second call fully replaces the first.
// The complaint status advances transactionally with the decision write.
func (e *Engine) Decide(ctx context.Context, req DecideRequest) (*models.ComplaintDetail, error) {
	// Existence is resolved first: a missing complaint id reads as NotFound
	// regardless of the caller's role.
	if _, err := e.store.GetComplaint(ctx, req.ComplaintID); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}

	if !models.ValidVerdict(req.Verdict) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, req.Verdict)
	}
	if req.OverrideType != nil && !models.ValidCategory(*req.OverrideType) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCategory, *req.OverrideType)
	}

	detail, err := e.store.ApplyDecision(ctx, database.ApplyDecisionInput{
		ComplaintID:  req.ComplaintID,
		AdminID:      req.AdminID,
		Verdict:      req.Verdict,
		OverrideType: req.OverrideType,
		NewStatus:    statusForVerdict(req.Verdict),
	})
	if err != nil {
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(req.Verdict)).Inc()
	log.Infof("Decision recorded for complaint %d: verdict=%s effective=%s admin=%d",
		req.ComplaintID, req.Verdict, detail.Decision.EffectiveType, req.AdminID)
	return detail, nil
}

// UpdateStatus moves a complaint through its lifecycle on behalf of an
// administrator, rejecting transitions the state machine does not allow.
func (e *Engine) UpdateStatus(ctx context.Context, adminID, complaintID int64, status models.Status) error {
	if _, err := e.store.GetComplaint(ctx, complaintID); err != nil {
		return err
	}
	if err := e.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}
	return e.store.TransitionStatus(ctx, complaintID, status)
}

// requireAdmin re-validates the role of the given admin id. The auth
// collaborator has already authorized the caller; this guards against a
// stale or fabricated admin_id in the payload.
func (e *Engine) requireAdmin(ctx context.Context, adminID int64) error {
	role, err := e.store.UserRole(ctx, adminID)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrForbidden
	}
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return models.ErrForbidden
	}
	return nil
}

// statusForVerdict maps an admin verdict to the lifecycle state it implies.
// A pending verdict re-opens review without touching citizen-visible status.
func statusForVerdict(v models.Verdict) *models.Status {
	switch v {
	case models.VerdictVerified:
		s := models.StatusVerified
		return &s
	case models.VerdictRejected:
		s := models.StatusRejected
		return &s
	}
	return nil
}
