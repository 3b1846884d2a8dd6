package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"civiceye/models"

	"github.com/apex/log"
	retry "github.com/avast/retry-go"
)

// Store is the durable record of complaints, assessments and decisions.
// All mutations are atomic per complaint id; reads are retried at most once.
type Store struct {
	db *sql.DB
}

// NewStore creates a complaint store on top of an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// logResult warns when a mutation affected an unexpected number of rows.
func logResult(msgPrefix string, r sql.Result, want int64) {
	rows, err := r.RowsAffected()
	if err != nil {
		log.Errorf("%s: failed to get rows affected: %v", msgPrefix, err)
		return
	}
	if rows != want {
		log.Warnf("%s: expected to affect %d row(s), affected %d", msgPrefix, want, rows)
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// readRetry retries an idempotent read at most once.
func readRetry(fn func() error) error {
	return retry.Do(fn,
		retry.Attempts(2),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// NotFound is a definitive answer, not a transient failure.
			return err != sql.ErrNoRows
		}),
	)
}

// CreateComplaint inserts a new complaint in the pending state and returns
// its assigned id.
func (s *Store) CreateComplaint(ctx context.Context, c *models.Complaint) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT
		INTO complaints (reporter_id, complaint_type, description, location, image_path, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ReporterID, nullableCategory(c.ComplaintType), c.Description, c.Location, c.ImagePath, models.StatusPending)
	if err != nil {
		log.Errorf("Error inserting complaint: %v", err)
		return 0, storeErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr(err)
	}
	return id, nil
}

// GetComplaint returns one complaint or ErrNotFound.
func (s *Store) GetComplaint(ctx context.Context, id int64) (*models.Complaint, error) {
	var c models.Complaint
	err := readRetry(func() error {
		return s.db.QueryRowContext(ctx, `SELECT id, reporter_id, complaint_type, description, location, image_path, status, created_at, updated_at
			FROM complaints WHERE id = ?`, id).
			Scan(&c.ID, &c.ReporterID, &nullCategory{&c.ComplaintType}, &c.Description, &c.Location, &c.ImagePath, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	})
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

// UserRole returns the role of a user or ErrNotFound.
func (s *Store) UserRole(ctx context.Context, userID int64) (models.Role, error) {
	var role models.Role
	err := readRetry(func() error {
		return s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, userID).Scan(&role)
	})
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", storeErr(err)
	}
	return role, nil
}

// TransitionStatus moves a complaint to a new lifecycle state. The current
// state is read under a row lock so concurrent updates serialize per id.
// Disallowed transitions fail with ErrInvalidStatus and leave no mutation.
func (s *Store) TransitionStatus(ctx context.Context, id int64, to models.Status) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return storeErr(err)
	}
	defer tx.Rollback()

	var current models.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM complaints WHERE id = ? FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	if err != nil {
		return storeErr(err)
	}

	if !models.CanTransition(current, to) {
		return fmt.Errorf("%w: cannot move %s to %s", models.ErrInvalidStatus, current, to)
	}

	if current != to {
		res, err := tx.ExecContext(ctx, `UPDATE complaints
			SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, to, id)
		if err != nil {
			return storeErr(err)
		}
		logResult("transitionStatus", res, 1)
	}

	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

// AttachAssessment appends a classifier result for a complaint. The complaint
// row is touched in the same transaction so its updated_at marker moves with
// the attach.
func (s *Store) AttachAssessment(ctx context.Context, a models.AIAssessment) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return storeErr(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE complaints
		SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, a.ComplaintID)
	if err != nil {
		return storeErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	res, err = tx.ExecContext(ctx, `INSERT
		INTO ai_assessments (complaint_id, detected_type, confidence, model_name)
		VALUES (?, ?, ?, ?)`,
		a.ComplaintID, a.DetectedType, a.Confidence, a.ModelName)
	if err != nil {
		return storeErr(err)
	}
	logResult("attachAssessment", res, 1)

	if err := tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

// CurrentAssessment returns the newest assessment for a complaint, or nil
// when the classifier has never produced one.
func (s *Store) CurrentAssessment(ctx context.Context, complaintID int64) (*models.AIAssessment, error) {
	var a *models.AIAssessment
	err := readRetry(func() error {
		var err error
		a, err = currentAssessmentTx(ctx, s.db, complaintID)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return a, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func currentAssessmentTx(ctx context.Context, q querier, complaintID int64) (*models.AIAssessment, error) {
	var a models.AIAssessment
	err := q.QueryRowContext(ctx, `SELECT complaint_id, detected_type, confidence, model_name, assessed_at
		FROM ai_assessments WHERE complaint_id = ? ORDER BY id DESC LIMIT 1`, complaintID).
		Scan(&a.ComplaintID, &a.DetectedType, &a.Confidence, &a.ModelName, &a.AssessedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDecision returns the active decision for a complaint, or nil.
func (s *Store) GetDecision(ctx context.Context, complaintID int64) (*models.Decision, error) {
	var d *models.Decision
	err := readRetry(func() error {
		var err error
		d, err = decisionTx(ctx, s.db, complaintID)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return d, nil
}

func decisionTx(ctx context.Context, q querier, complaintID int64) (*models.Decision, error) {
	var (
		d        models.Decision
		override sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT complaint_id, ai_status, override_type, effective_type, decision_source, admin_id, decision_timestamp
		FROM decisions WHERE complaint_id = ?`, complaintID).
		Scan(&d.ComplaintID, &d.AIStatus, &override, &d.EffectiveType, &d.Source, &d.AdminID, &d.DecidedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if override.Valid {
		c := models.Category(override.String)
		d.OverrideType = &c
	}
	return &d, nil
}

const reviewItemColumns = `c.id, c.reporter_id, c.complaint_type, c.description, c.location, c.image_path, c.status, c.created_at, c.updated_at,
		a.detected_type, a.confidence, a.model_name, a.assessed_at`

const reviewItemJoin = `FROM complaints c
		LEFT JOIN ai_assessments a
		ON a.id = (SELECT MAX(id) FROM ai_assessments WHERE complaint_id = c.id)`

// ListByReporter returns a reporter's complaints joined with their current
// assessment, newest first.
func (s *Store) ListByReporter(ctx context.Context, reporterID int64) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	err := readRetry(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT `+reviewItemColumns+` `+reviewItemJoin+`
			WHERE c.reporter_id = ?
			ORDER BY c.created_at DESC, c.id DESC`, reporterID)
		if err != nil {
			return err
		}
		defer rows.Close()
		items, err = scanReviewItems(rows)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// ListForReview returns complaints for admin review joined with their current
// assessment, oldest first so review is first-in-first-out. An empty status
// filter lists every complaint.
func (s *Store) ListForReview(ctx context.Context, status models.Status) ([]models.ReviewItem, error) {
	query := `SELECT ` + reviewItemColumns + ` ` + reviewItemJoin
	args := []interface{}{}
	if status != "" {
		query += ` WHERE c.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY c.created_at ASC, c.id ASC`

	var items []models.ReviewItem
	err := readRetry(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		items, err = scanReviewItems(rows)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func scanReviewItems(rows *sql.Rows) ([]models.ReviewItem, error) {
	items := []models.ReviewItem{}
	for rows.Next() {
		var (
			item         models.ReviewItem
			detectedType sql.NullString
			confidence   sql.NullFloat64
			modelName    sql.NullString
			assessedAt   sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.ReporterID, &nullCategory{&item.ComplaintType}, &item.Description,
			&item.Location, &item.ImagePath, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&detectedType, &confidence, &modelName, &assessedAt); err != nil {
			return nil, err
		}
		if detectedType.Valid {
			item.Assessment = &models.AIAssessment{
				ComplaintID:  item.ID,
				DetectedType: models.Category(detectedType.String),
				Confidence:   confidence.Float64,
				ModelName:    modelName.String,
				AssessedAt:   assessedAt.Time,
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetDetail returns the full decision view of one complaint.
func (s *Store) GetDetail(ctx context.Context, id int64) (*models.ComplaintDetail, error) {
	complaint, err := s.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment, err := s.CurrentAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ComplaintDetail{
		Complaint:  *complaint,
		Assessment: assessment,
		Decision:   decision,
	}, nil
}

// nullableCategory maps the empty category to NULL for storage.
func nullableCategory(c models.Category) interface{} {
	if c == "" {
		return nil
	}
	return string(c)
}

// nullCategory scans a nullable category column into a Category value,
// mapping NULL to the empty category.
type nullCategory struct {
	c *models.Category
}

func (n *nullCategory) Scan(value interface{}) error {
	var ns sql.NullString
	if err := ns.Scan(value); err != nil {
		return err
	}
	*n.c = models.Category(ns.String)
	return nil
}
