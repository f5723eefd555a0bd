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

// ErrNotPending signals that a moderation transition lost against the current status.
var ErrNotPending = errors.New("submission is not pending")

const submissionColumns = `id, title, body, submitter_name, submitter_email, category,
	file_name, file_size, file_type, status, admin_notes, reviewed_by, created_at, reviewed_at`

// SubmissionRepository persists public content submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new pending submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	submission.Status = models.SubmissionStatusPending
	submission.ReviewedAt = nil
	submission.ReviewedBy = nil
	submission.AdminNotes = nil

	const query = `INSERT INTO submissions
	(id, title, body, submitter_name, submitter_email, category, file_name, file_size, file_type, file_data, status, created_at)
	VALUES (:id, :title, :body, :submitter_name, :submitter_email, :category, :file_name, :file_size, :file_type, :file_data, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches submission metadata without the attachment bytes.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetAttachment loads the stored file of a submission.
func (r *SubmissionRepository) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	const query = `SELECT file_name, file_size, file_type, file_data FROM submissions WHERE id = $1`
	var attachment models.Attachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// List returns submissions matching the filter, newest first, with the total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		submissionColumns, where, size, offset)
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM submissions WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// ApprovalParams holds the values generated for the published article.
type ApprovalParams struct {
	ArticleID string
	Slug      string
	Review    models.SubmissionReview
}

// Approve publishes the submission as an article and marks it approved in one
// transaction. The submission row is locked for the duration, so concurrent
// approvals serialise and every loser receives ErrNotPending.
func (r *SubmissionRepository) Approve(ctx context.Context, id string, params ApprovalParams) (article *models.Article, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.Submission
	const lockQuery = `SELECT id, title, body, submitter_name, submitter_email, category, file_name, file_size, file_type, file_data, status
	FROM submissions WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	if locked.Status != models.SubmissionStatusPending {
		err = ErrNotPending
		return nil, err
	}

	articleID := params.ArticleID
	if articleID == "" {
		articleID = uuid.NewString()
	}
	submissionID := locked.ID
	article = &models.Article{
		ID:           articleID,
		SubmissionID: &submissionID,
		Title:        locked.Title,
		Slug:         params.Slug,
		Body:         locked.Body,
		AuthorName:   locked.SubmitterName,
		AuthorEmail:  locked.SubmitterEmail,
		Category:     locked.Category,
		Attachment:   locked.Attachment,
		PublishedAt:  params.Review.ReviewedAt,
	}
	if _, err = tx.NamedExecContext(ctx, insertArticleQuery, article); err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}

	if err = markReviewed(ctx, tx, id, params.Review); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}
	return article, nil
}

// Reject marks the submission rejected under the same locking discipline as Approve.
func (r *SubmissionRepository) Reject(ctx context.Context, id string, review models.SubmissionReview) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.SubmissionStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM submissions WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock submission: %w", err)
	}
	if status != models.SubmissionStatusPending {
		err = ErrNotPending
		return err
	}

	if err = markReviewed(ctx, tx, id, review); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reject: %w", err)
	}
	return nil
}

func markReviewed(ctx context.Context, tx *sqlx.Tx, id string, review models.SubmissionReview) error {
	const query = `UPDATE submissions SET status = $1, admin_notes = $2, reviewed_by = $3, reviewed_at = $4
	WHERE id = $5 AND status = $6`
	var reviewer *string
	if review.ReviewerID != "" {
		reviewer = &review.ReviewerID
	}
	result, err := tx.ExecContext(ctx, query, review.Status, review.Notes, reviewer, review.ReviewedAt, id, models.SubmissionStatusPending)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return ErrNotPending
	}
	return nil
}

func pageBounds(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
