package engine

import (
	"context"
	"errors"
	"testing"

	"civiceye/database"
	"civiceye/models"
)

// fakeStore records the engine's store calls.
type fakeStore struct {
	roles      map[int64]models.Role
	complaints map[int64]*models.Complaint

	applied     *database.ApplyDecisionInput
	transitions []models.Status
	applyErr    error
}

func (f *fakeStore) GetComplaint(_ context.Context, id int64) (*models.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) UserRole(_ context.Context, userID int64) (models.Role, error) {
	role, ok := f.roles[userID]
	if !ok {
		return "", models.ErrNotFound
	}
	return role, nil
}

func (f *fakeStore) ApplyDecision(_ context.Context, in database.ApplyDecisionInput) (*models.ComplaintDetail, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applied = &in
	effective := models.EffectiveCategory(in.OverrideType, nil)
	status := models.StatusPending
	if in.NewStatus != nil {
		status = *in.NewStatus
	}
	return &models.ComplaintDetail{
		Complaint: models.Complaint{ID: in.ComplaintID, Status: status},
		Decision: &models.Decision{
			ComplaintID:   in.ComplaintID,
			AIStatus:      in.Verdict,
			OverrideType:  in.OverrideType,
			EffectiveType: effective,
			AdminID:       in.AdminID,
			Source:        models.SourceAdmin,
		},
	}, nil
}

func (f *fakeStore) TransitionStatus(_ context.Context, _ int64, to models.Status) error {
	f.transitions = append(f.transitions, to)
	return nil
}

func adminStore() *fakeStore {
	return &fakeStore{
		roles: map[int64]models.Role{
			7:  models.RoleAdmin,
			42: models.RoleUser,
		},
		complaints: map[int64]*models.Complaint{
			1: {ID: 1, Status: models.StatusPending},
		},
	}
}

func TestDecideVerified(t *testing.T) {
	store := adminStore()
	e := New(store)

	detail, err := e.Decide(context.Background(), DecideRequest{
		ComplaintID: 1,
		AdminID:     7,
		Verdict:     models.VerdictVerified,
	})
	if err != nil {
		t.Fatalf("Decide: unexpected error: %v", err)
	}
	if detail.Status != models.StatusVerified {
		t.Errorf("Decide: status = %s, want verified", detail.Status)
	}
	if detail.Decision.AdminID != 7 {
		t.Errorf("Decide: admin_id = %d, want 7", detail.Decision.AdminID)
	}
	if store.applied.NewStatus == nil || *store.applied.NewStatus != models.StatusVerified {
		t.Errorf("Decide: applied status = %v, want verified", store.applied.NewStatus)
	}
}

func TestDecideRejectedWithOverride(t *testing.T) {
	store := adminStore()
	e := New(store)
	override := models.CategoryGarbage

	detail, err := e.Decide(context.Background(), DecideRequest{
		ComplaintID:  1,
		AdminID:      7,
		Verdict:      models.VerdictRejected,
		OverrideType: &override,
	})
	if err != nil {
		t.Fatalf("Decide: unexpected error: %v", err)
	}
	if detail.Status != models.StatusRejected {
		t.Errorf("Decide: status = %s, want rejected", detail.Status)
	}
	if detail.Decision.EffectiveType != models.CategoryGarbage {
		t.Errorf("Decide: effective = %s, want garbage", detail.Decision.EffectiveType)
	}
}

func TestDecidePendingVerdictKeepsStatus(t *testing.T) {
	store := adminStore()
	e := New(store)

	_, err := e.Decide(context.Background(), DecideRequest{
		ComplaintID: 1,
		AdminID:     7,
		Verdict:     models.VerdictPending,
	})
	if err != nil {
		t.Fatalf("Decide: unexpected error: %v", err)
	}
	if store.applied.NewStatus != nil {
		t.Errorf("Decide: applied status = %v, want nil (no-op)", *store.applied.NewStatus)
	}
}

func TestDecideUnknownComplaint(t *testing.T) {
	store := adminStore()
	e := New(store)

	// A missing complaint id reads as NotFound for any caller, admin or not.
	for _, adminID := range []int64{7, 42} {
		_, err := e.Decide(context.Background(), DecideRequest{
			ComplaintID: 99,
			AdminID:     adminID,
			Verdict:     models.VerdictVerified,
		})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Decide(admin=%d): error = %v, want ErrNotFound", adminID, err)
		}
	}
	if store.applied != nil {
		t.Error("Decide: decision was applied for missing complaint")
	}

	if err := e.UpdateStatus(context.Background(), 42, 99, models.StatusVerified); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UpdateStatus: error = %v, want ErrNotFound", err)
	}
}

func TestDecideForbidden(t *testing.T) {
	store := adminStore()
	e := New(store)

	testCases := []struct {
		name    string
		adminID int64
	}{
		{"Non-admin caller", 42},
		{"Unknown caller", 99},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Decide(context.Background(), DecideRequest{
				ComplaintID: 1,
				AdminID:     tc.adminID,
				Verdict:     models.VerdictVerified,
			})
			if !errors.Is(err, models.ErrForbidden) {
				t.Errorf("Decide: error = %v, want ErrForbidden", err)
			}
			if store.applied != nil {
				t.Error("Decide: decision was applied despite Forbidden")
			}
		})
	}
}

func TestDecideInvalidPayload(t *testing.T) {
	store := adminStore()
	e := New(store)

	badCategory := models.Category("graffiti")
	if _, err := e.Decide(context.Background(), DecideRequest{
		ComplaintID:  1,
		AdminID:      7,
		Verdict:      models.VerdictVerified,
		OverrideType: &badCategory,
	}); !errors.Is(err, models.ErrInvalidCategory) {
		t.Errorf("Decide: error = %v, want ErrInvalidCategory", err)
	}

	if _, err := e.Decide(context.Background(), DecideRequest{
		ComplaintID: 1,
		AdminID:     7,
		Verdict:     models.Verdict("resolved"),
	}); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("Decide: error = %v, want ErrInvalidStatus", err)
	}

	if store.applied != nil {
		t.Error("Decide: decision was applied despite invalid payload")
	}
}

func TestUpdateStatus(t *testing.T) {
	store := adminStore()
	e := New(store)

	if err := e.UpdateStatus(context.Background(), 7, 1, models.StatusVerified); err != nil {
		t.Fatalf("UpdateStatus: unexpected error: %v", err)
	}
	if len(store.transitions) != 1 || store.transitions[0] != models.StatusVerified {
		t.Errorf("UpdateStatus: transitions = %v", store.transitions)
	}

	if err := e.UpdateStatus(context.Background(), 42, 1, models.StatusVerified); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("UpdateStatus: error = %v, want ErrForbidden", err)
	}
	if err := e.UpdateStatus(context.Background(), 7, 1, models.Status("in-progress")); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("UpdateStatus: error = %v, want ErrInvalidStatus", err)
	}
}

func TestStatusForVerdict(t *testing.T) {
	if s := statusForVerdict(models.VerdictVerified); s == nil || *s != models.StatusVerified {
		t.Errorf("statusForVerdict(verified) = %v", s)
	}
	if s := statusForVerdict(models.VerdictRejected); s == nil || *s != models.StatusRejected {
		t.Errorf("statusForVerdict(rejected) = %v", s)
	}
	if s := statusForVerdict(models.VerdictPending); s != nil {
		t.Errorf("statusForVerdict(pending) = %v, want nil", *s)
	}
}
