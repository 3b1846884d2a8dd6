package database

import (
	"context"
	"database/sql"
	"fmt"

	"civiceye/models"

	"github.com/apex/log"
)

// ApplyDecisionInput is a validated admin decision ready to persist.
type ApplyDecisionInput struct {
	ComplaintID  int64
	AdminID      int64
	Verdict      models.Verdict
	OverrideType *models.Category
	// NewStatus is the lifecycle state implied by the verdict, nil when the
	// verdict leaves the citizen-visible status untouched.
	NewStatus *models.Status
}

// ApplyDecision writes or overwrites the decision for a complaint and, when
// the verdict implies one, advances the complaint status in the same
// transaction. The complaint row is locked first so concurrent decisions on
// the same id serialize; the loser's write fully replaces the winner's
// (last-write-wins, no merge).
func (s *Store) ApplyDecision(ctx context.Context, in ApplyDecisionInput) (*models.ComplaintDetail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	var c models.Complaint
	err = tx.QueryRowContext(ctx, `SELECT id, reporter_id, complaint_type, description, location, image_path, status, created_at, updated_at
		FROM complaints WHERE id = ? FOR UPDATE`, in.ComplaintID).
		Scan(&c.ID, &c.ReporterID, &nullCategory{&c.ComplaintType}, &c.Description, &c.Location, &c.ImagePath, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	// Resolved is terminal: no verdict moves a resolved complaint back into
	// the review flow. A rejection stays reversible by a fresh decision.
	if in.NewStatus != nil && c.Status == models.StatusResolved && *in.NewStatus != c.Status {
		return nil, fmt.Errorf("%w: cannot move %s to %s", models.ErrInvalidStatus, c.Status, *in.NewStatus)
	}

	// The effective category resolves against the assessment current at
	// decision time. A later re-score does not alter this decision.
	assessment, err := currentAssessmentTx(ctx, tx, in.ComplaintID)
	if err != nil {
		return nil, storeErr(err)
	}
	effective := models.EffectiveCategory(in.OverrideType, assessment)

	res, err := tx.ExecContext(ctx, `INSERT
		INTO decisions (complaint_id, ai_status, override_type, effective_type, decision_source, admin_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE ai_status = ?, override_type = ?, effective_type = ?, decision_source = ?, admin_id = ?, decision_timestamp = CURRENT_TIMESTAMP`,
		in.ComplaintID, in.Verdict, nullableOverride(in.OverrideType), effective, models.SourceAdmin, in.AdminID,
		in.Verdict, nullableOverride(in.OverrideType), effective, models.SourceAdmin, in.AdminID)
	if err != nil {
		return nil, storeErr(err)
	}
	// ON DUPLICATE KEY UPDATE reports 2 affected rows for an overwrite.
	if rows, rerr := res.RowsAffected(); rerr == nil && rows > 2 {
		log.Warnf("applyDecision: unexpected rows affected %d", rows)
	}

	if in.NewStatus != nil && c.Status != *in.NewStatus {
		res, err := tx.ExecContext(ctx, `UPDATE complaints
			SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, *in.NewStatus, in.ComplaintID)
		if err != nil {
			return nil, storeErr(err)
		}
		logResult("applyDecision status", res, 1)
		c.Status = *in.NewStatus
	}

	decision, err := decisionTx(ctx, tx, in.ComplaintID)
	if err != nil {
		return nil, storeErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}

	return &models.ComplaintDetail{
		Complaint:  c,
		Assessment: assessment,
		Decision:   decision,
	}, nil
}

func nullableOverride(c *models.Category) interface{} {
	if c == nil {
		return nil
	}
	return string(*c)
}
