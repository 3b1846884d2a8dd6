package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"civiceye/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func assessmentRow(complaintID int64, detected models.Category, confidence float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"complaint_id", "detected_type", "confidence", "model_name", "assessed_at"}).
		AddRow(complaintID, string(detected), confidence, "v2", time.Now())
}

func decisionRow(complaintID int64, verdict models.Verdict, override interface{}, effective models.Category) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"complaint_id", "ai_status", "override_type", "effective_type", "decision_source", "admin_id", "decision_timestamp"}).
		AddRow(complaintID, string(verdict), override, string(effective), "admin", 7, time.Now())
}

func TestApplyDecisionVerified(t *testing.T) {
	it(func() {
		store := NewStore(db)
		newStatus := models.StatusVerified

		mock.ExpectBegin()
		mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(complaintRow(7, models.StatusPending))
		mock.ExpectQuery("FROM ai_assessments WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(assessmentRow(7, models.CategoryPothole, 0.87))
		mock.ExpectExec("INSERT\\s+INTO decisions").
			WithArgs(int64(7), "verified", nil, "pothole", "admin", int64(7),
				"verified", nil, "pothole", "admin", int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE complaints").
			WithArgs("verified", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM decisions WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(decisionRow(7, models.VerdictVerified, nil, models.CategoryPothole))
		mock.ExpectCommit()

		detail, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{
			ComplaintID: 7,
			AdminID:     7,
			Verdict:     models.VerdictVerified,
			NewStatus:   &newStatus,
		})
		if err != nil {
			t.Fatalf("ApplyDecision: unexpected error: %v", err)
		}
		if detail.Status != models.StatusVerified {
			t.Errorf("ApplyDecision: status = %s, want verified", detail.Status)
		}
		if detail.Decision == nil || detail.Decision.EffectiveType != models.CategoryPothole {
			t.Errorf("ApplyDecision: decision = %+v, want effective pothole", detail.Decision)
		}
		if detail.Assessment == nil || detail.Assessment.DetectedType != models.CategoryPothole {
			t.Errorf("ApplyDecision: assessment = %+v, want pothole", detail.Assessment)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestApplyDecisionOverrideWithoutAssessment(t *testing.T) {
	it(func() {
		store := NewStore(db)
		override := models.CategoryGarbage
		newStatus := models.StatusRejected

		mock.ExpectBegin()
		mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(complaintRow(7, models.StatusPending))
		mock.ExpectQuery("FROM ai_assessments WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT\\s+INTO decisions").
			WithArgs(int64(7), "rejected", "garbage", "garbage", "admin", int64(7),
				"rejected", "garbage", "garbage", "admin", int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 2))
		mock.ExpectExec("UPDATE complaints").
			WithArgs("rejected", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM decisions WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(decisionRow(7, models.VerdictRejected, "garbage", models.CategoryGarbage))
		mock.ExpectCommit()

		detail, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{
			ComplaintID:  7,
			AdminID:      7,
			Verdict:      models.VerdictRejected,
			OverrideType: &override,
			NewStatus:    &newStatus,
		})
		if err != nil {
			t.Fatalf("ApplyDecision: unexpected error: %v", err)
		}
		if detail.Assessment != nil {
			t.Errorf("ApplyDecision: assessment = %+v, want nil", detail.Assessment)
		}
		if detail.Decision.EffectiveType != models.CategoryGarbage {
			t.Errorf("ApplyDecision: effective = %s, want garbage", detail.Decision.EffectiveType)
		}
		if detail.Status != models.StatusRejected {
			t.Errorf("ApplyDecision: status = %s, want rejected", detail.Status)
		}
	})
}

func TestApplyDecisionPendingLeavesStatus(t *testing.T) {
	it(func() {
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(complaintRow(7, models.StatusVerified))
		mock.ExpectQuery("FROM ai_assessments WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(assessmentRow(7, models.CategoryPothole, 0.87))
		mock.ExpectExec("INSERT\\s+INTO decisions").
			WillReturnResult(sqlmock.NewResult(1, 2))
		// No UPDATE complaints: a pending verdict re-opens review without
		// touching the citizen-visible status.
		mock.ExpectQuery("FROM decisions WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(decisionRow(7, models.VerdictPending, nil, models.CategoryPothole))
		mock.ExpectCommit()

		detail, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{
			ComplaintID: 7,
			AdminID:     7,
			Verdict:     models.VerdictPending,
		})
		if err != nil {
			t.Fatalf("ApplyDecision: unexpected error: %v", err)
		}
		if detail.Status != models.StatusVerified {
			t.Errorf("ApplyDecision: status = %s, want verified (unchanged)", detail.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestApplyDecisionResolvedIsTerminal(t *testing.T) {
	it(func() {
		store := NewStore(db)

		for _, verdict := range []models.Verdict{models.VerdictVerified, models.VerdictRejected} {
			newStatus := models.StatusVerified
			if verdict == models.VerdictRejected {
				newStatus = models.StatusRejected
			}

			mock.ExpectBegin()
			mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
				WithArgs(int64(7)).
				WillReturnRows(complaintRow(7, models.StatusResolved))
			mock.ExpectRollback()

			_, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{
				ComplaintID: 7,
				AdminID:     7,
				Verdict:     verdict,
				NewStatus:   &newStatus,
			})
			if !errors.Is(err, models.ErrInvalidStatus) {
				t.Errorf("ApplyDecision(%s on resolved): error = %v, want ErrInvalidStatus", verdict, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestApplyDecisionRepeatRefreshesTimestamp(t *testing.T) {
	it(func() {
		store := NewStore(db)
		newStatus := models.StatusVerified

		mock.ExpectBegin()
		mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(complaintRow(7, models.StatusVerified))
		mock.ExpectQuery("FROM ai_assessments WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(assessmentRow(7, models.CategoryPothole, 0.87))
		// A byte-identical repeat must still touch decision_timestamp
		// explicitly rather than relying on ON UPDATE.
		mock.ExpectExec(`(?s)INSERT\s+INTO decisions.*ON DUPLICATE KEY UPDATE.*decision_timestamp = CURRENT_TIMESTAMP`).
			WithArgs(int64(7), "verified", nil, "pothole", "admin", int64(7),
				"verified", nil, "pothole", "admin", int64(7)).
			WillReturnResult(sqlmock.NewResult(1, 2))
		// Status already verified: no complaints UPDATE.
		mock.ExpectQuery("FROM decisions WHERE complaint_id = \\?").
			WithArgs(int64(7)).
			WillReturnRows(decisionRow(7, models.VerdictVerified, nil, models.CategoryPothole))
		mock.ExpectCommit()

		detail, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{
			ComplaintID: 7,
			AdminID:     7,
			Verdict:     models.VerdictVerified,
			NewStatus:   &newStatus,
		})
		if err != nil {
			t.Fatalf("ApplyDecision: unexpected error: %v", err)
		}
		if detail.Status != models.StatusVerified {
			t.Errorf("ApplyDecision: status = %s, want verified", detail.Status)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestApplyDecisionNotFound(t *testing.T) {
	it(func() {
		store := NewStore(db)

		mock.ExpectBegin()
		mock.ExpectQuery("FROM complaints WHERE id = \\? FOR UPDATE").
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := store.ApplyDecision(context.Background(), ApplyDecisionInput{ComplaintID: 99, AdminID: 7, Verdict: models.VerdictVerified})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("ApplyDecision: error = %v, want ErrNotFound", err)
		}
	})
}
