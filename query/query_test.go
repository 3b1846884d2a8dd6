package query

import (
	"context"
	"errors"
	"testing"

	"civiceye/models"
)

type fakeReader struct {
	byReporter map[int64][]models.ReviewItem
	forReview  []models.ReviewItem
	details    map[int64]*models.ComplaintDetail

	reviewFilter models.Status
}

func (f *fakeReader) ListByReporter(_ context.Context, reporterID int64) ([]models.ReviewItem, error) {
	return f.byReporter[reporterID], nil
}

func (f *fakeReader) ListForReview(_ context.Context, status models.Status) ([]models.ReviewItem, error) {
	f.reviewFilter = status
	return f.forReview, nil
}

func (f *fakeReader) GetDetail(_ context.Context, id int64) (*models.ComplaintDetail, error) {
	detail, ok := f.details[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return detail, nil
}

func TestListByReporter(t *testing.T) {
	reader := &fakeReader{byReporter: map[int64][]models.ReviewItem{
		42: {{Complaint: models.Complaint{ID: 1, ReporterID: 42, Status: models.StatusPending}}},
	}}
	svc := New(reader)

	items, err := svc.ListByReporter(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListByReporter: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Errorf("items = %+v", items)
	}

	items, err = svc.ListByReporter(context.Background(), 99)
	if err != nil {
		t.Fatalf("ListByReporter unknown reporter: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("unknown reporter items = %+v", items)
	}
}

func TestListForReviewFilter(t *testing.T) {
	tests := []struct {
		filter  models.Status
		wantErr bool
	}{
		{"", false},
		{models.StatusPending, false},
		{models.StatusResolved, false},
		{"bogus", true},
	}

	for _, tc := range tests {
		reader := &fakeReader{}
		svc := New(reader)

		_, err := svc.ListForReview(context.Background(), tc.filter)
		if tc.wantErr {
			if !errors.Is(err, models.ErrInvalidStatus) {
				t.Errorf("filter %q: err = %v, want ErrInvalidStatus", tc.filter, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("filter %q: %v", tc.filter, err)
		}
		if reader.reviewFilter != tc.filter {
			t.Errorf("filter %q: reader saw %q", tc.filter, reader.reviewFilter)
		}
	}
}

func TestGetDetail(t *testing.T) {
	reader := &fakeReader{details: map[int64]*models.ComplaintDetail{
		5: {
			Complaint: models.Complaint{ID: 5, Status: models.StatusVerified},
			Assessment: &models.AIAssessment{
				ComplaintID:  5,
				DetectedType: models.CategoryGarbage,
				Confidence:   0.92,
			},
		},
	}}
	svc := New(reader)

	detail, err := svc.GetDetail(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if detail.Assessment == nil || detail.Assessment.DetectedType != models.CategoryGarbage {
		t.Errorf("detail = %+v", detail)
	}

	if _, err := svc.GetDetail(context.Background(), 6); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing detail: err = %v, want ErrNotFound", err)
	}
}
