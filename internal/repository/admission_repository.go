package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-portal-api/internal/models"
)

// maxExportRows bounds a single CSV export.
const maxExportRows = 10000

const applicationColumns = `id, application_number, student_id, grade_applying, previous_school, previous_grade,
	status, interview_notes, created_at, updated_at`

// AdmissionRepository persists admission applications with their student and guardian rows.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs the repository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// CreateWithGuardian inserts the student, its primary parent and the application
// atomically. Any failure leaves none of the three rows behind.
func (r *AdmissionRepository) CreateWithGuardian(ctx context.Context, student *models.Student, parent *models.Parent, application *models.AdmissionApplication) (err error) {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	student.Active = false
	student.CreatedAt, student.UpdatedAt = now, now
	parent.StudentID = student.ID
	parent.IsPrimary = true
	parent.CreatedAt = now
	application.StudentID = student.ID
	application.Status = models.AdmissionStatusPending
	application.CreatedAt, application.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const studentQuery = `INSERT INTO students
	(id, admission_number, full_name, date_of_birth, gender, address, city, nationality, enrollment_date, current_grade, active, created_at, updated_at)
	VALUES (:id, :admission_number, :full_name, :date_of_birth, :gender, :address, :city, :nationality, :enrollment_date, :current_grade, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, studentQuery, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}

	const parentQuery = `INSERT INTO parents
	(id, student_id, relationship, full_name, email, phone, is_primary, created_at)
	VALUES (:id, :student_id, :relationship, :full_name, :email, :phone, :is_primary, :created_at)`
	if _, err = tx.NamedExecContext(ctx, parentQuery, parent); err != nil {
		return fmt.Errorf("insert parent: %w", err)
	}

	const applicationQuery = `INSERT INTO admission_applications
	(id, application_number, student_id, grade_applying, previous_school, previous_grade, status, interview_notes, created_at, updated_at)
	VALUES (:id, :application_number, :student_id, :grade_applying, :previous_school, :previous_grade, :status, :interview_notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, applicationQuery, application); err != nil {
		return fmt.Errorf("insert admission application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit admission: %w", err)
	}
	return nil
}

// UpdateStatus writes a new status, merging notes, and activates the student in
// the same transaction when the application becomes enrolled.
func (r *AdmissionRepository) UpdateStatus(ctx context.Context, id string, change models.AdmissionStatusChange) (application *models.AdmissionApplication, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var studentID string
	if err = tx.GetContext(ctx, &studentID, `SELECT student_id FROM admission_applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock admission application: %w", err)
	}

	updateQuery := `UPDATE admission_applications
	SET status = $1, interview_notes = COALESCE($2, interview_notes), updated_at = $3
	WHERE id = $4
	RETURNING ` + applicationColumns
	var updated models.AdmissionApplication
	if err = tx.GetContext(ctx, &updated, updateQuery, change.Status, change.Notes, change.ChangedAt, id); err != nil {
		return nil, fmt.Errorf("update admission status: %w", err)
	}

	if change.Status == models.AdmissionStatusEnrolled {
		const activateQuery = `UPDATE students SET active = true, enrollment_date = COALESCE(enrollment_date, $1), updated_at = $1 WHERE id = $2`
		var result sql.Result
		if result, err = tx.ExecContext(ctx, activateQuery, change.ChangedAt, studentID); err != nil {
			return nil, fmt.Errorf("activate student: %w", err)
		}
		var rows int64
		if rows, err = result.RowsAffected(); err != nil {
			return nil, fmt.Errorf("check student activation rows: %w", err)
		}
		if rows == 0 {
			err = fmt.Errorf("activate student %s: no row updated", studentID)
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admission status: %w", err)
	}
	return &updated, nil
}

// GetByID fetches an application row.
func (r *AdmissionRepository) GetByID(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM admission_applications WHERE id = $1`
	var application models.AdmissionApplication
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// GetDetail fetches an application with its student and guardians.
func (r *AdmissionRepository) GetDetail(ctx context.Context, id string) (*models.AdmissionApplicationDetail, error) {
	application, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.AdmissionApplicationDetail{AdmissionApplication: *application}

	const studentQuery = `SELECT id, admission_number, full_name, date_of_birth, gender, address, city, nationality,
	enrollment_date, current_grade, active, created_at, updated_at FROM students WHERE id = $1`
	if err := r.db.GetContext(ctx, &detail.Student, studentQuery, application.StudentID); err != nil {
		return nil, fmt.Errorf("get applicant student: %w", err)
	}

	const parentQuery = `SELECT id, student_id, relationship, full_name, email, phone, is_primary, created_at
	FROM parents WHERE student_id = $1 ORDER BY is_primary DESC, created_at ASC`
	if err := r.db.SelectContext(ctx, &detail.Parents, parentQuery, application.StudentID); err != nil {
		return nil, fmt.Errorf("list applicant parents: %w", err)
	}
	return detail, nil
}

// List returns applications joined with their student, newest first.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionListItem, int, error) {
	where, args := admissionConditions(filter)
	size, offset := pageBounds(filter.Page, filter.PageSize)

	items, err := r.list(ctx, where, args, size, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM admission_applications a JOIN students s ON s.id = a.student_id WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admission applications: %w", err)
	}
	return items, total, nil
}

// ListForExport returns every matching application up to the export cap.
func (r *AdmissionRepository) ListForExport(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionListItem, error) {
	where, args := admissionConditions(filter)
	return r.list(ctx, where, args, maxExportRows, 0)
}

func (r *AdmissionRepository) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]models.AdmissionListItem, error) {
	query := fmt.Sprintf(`SELECT a.id, a.application_number, a.student_id, a.grade_applying, a.previous_school, a.previous_grade,
	a.status, a.interview_notes, a.created_at, a.updated_at,
	s.full_name AS student_name, s.admission_number, s.active AS student_active
	FROM admission_applications a JOIN students s ON s.id = a.student_id
	WHERE %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d`, where, limit, offset)
	var items []models.AdmissionListItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list admission applications: %w", err)
	}
	return items, nil
}

func admissionConditions(filter models.AdmissionFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 3)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.GradeApplying != "" {
		args = append(args, filter.GradeApplying)
		conditions = append(conditions, fmt.Sprintf("a.grade_applying = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%[1]d OR LOWER(a.application_number) LIKE $%[1]d)", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}
