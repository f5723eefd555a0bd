package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/pkg/database"
)

var lockedSubmissionColumns = []string{"id", "title", "body", "submitter_name", "submitter_email", "category",
	"file_name", "file_size", "file_type", "file_data", "status"}

func TestSubmissionRepositoryCreateForcesPending(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	sub := &models.Submission{
		Title:          "My Trip",
		Body:           strPtr("..."),
		SubmitterName:  "Ana",
		SubmitterEmail: "ana@example.com",
		Category:       "Travel",
		Status:         models.SubmissionStatusApproved,
		ReviewedAt:     &now,
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Nil(t, sub.ReviewedAt)
	assert.False(t, sub.CreatedAt.IsZero())
}

func TestSubmissionRepositoryGetAttachment(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"file_name", "file_size", "file_type", "file_data"}).
		AddRow("essay.pdf", int64(4), "application/pdf", []byte("%PDF"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_name, file_size, file_type, file_data FROM submissions WHERE id = $1")).
		WithArgs("sub-1").
		WillReturnRows(rows)

	att, err := repo.GetAttachment(context.Background(), "sub-1")
	require.NoError(t, err)
	require.True(t, att.HasFile())
	assert.Equal(t, "essay.pdf", *att.FileName)
	assert.Equal(t, []byte("%PDF"), att.FileData)
}

func TestSubmissionRepositoryList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "title", "body", "submitter_name", "submitter_email", "category",
		"file_name", "file_size", "file_type", "status", "admin_notes", "reviewed_by", "created_at", "reviewed_at"}).
		AddRow("sub-1", "My Trip", "...", "Ana", "ana@example.com", "Travel", nil, nil, nil, "pending", nil, nil, created, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE 1=1 AND status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("pending").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions WHERE 1=1 AND status = $1")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.SubmissionFilter{Status: models.SubmissionStatusPending})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "My Trip", items[0].Title)
	assert.Nil(t, items[0].ReviewedAt)
}

func TestSubmissionRepositoryApprove(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)
	reviewedAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE id = $1 FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(lockedSubmissionColumns).
			AddRow("sub-1", "My Trip", "...", "Ana", "ana@example.com", "Travel", "trip.pdf", int64(3), "application/pdf", []byte("pdf"), "pending"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $1, admin_notes = $2, reviewed_by = $3, reviewed_at = $4")).
		WithArgs("approved", "Great piece", "editor-1", reviewedAt, "sub-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	article, err := repo.Approve(context.Background(), "sub-1", ApprovalParams{
		Slug: "my-trip-abc",
		Review: models.SubmissionReview{
			Status:     models.SubmissionStatusApproved,
			Notes:      strPtr("Great piece"),
			ReviewerID: "editor-1",
			ReviewedAt: reviewedAt,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "My Trip", article.Title)
	assert.Equal(t, "my-trip-abc", article.Slug)
	assert.Equal(t, "Ana", article.AuthorName)
	require.NotNil(t, article.SubmissionID)
	assert.Equal(t, "sub-1", *article.SubmissionID)
	assert.Equal(t, []byte("pdf"), article.FileData)
	assert.Zero(t, article.Claps)
	assert.Zero(t, article.ViewCount)
}

func TestSubmissionRepositoryApproveNotPending(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(lockedSubmissionColumns).
			AddRow("sub-1", "My Trip", nil, "Ana", "ana@example.com", "Travel", nil, nil, nil, nil, "approved"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sub-1", ApprovalParams{Slug: "x", Review: models.SubmissionReview{Status: models.SubmissionStatusApproved}})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestSubmissionRepositoryApproveMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "missing", ApprovalParams{Slug: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubmissionRepositoryApproveDuplicateSlugRollsBack(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(lockedSubmissionColumns).
			AddRow("sub-1", "My Trip", "...", "Ana", "ana@example.com", "Travel", nil, nil, nil, nil, "pending"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "articles_slug_key"})
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sub-1", ApprovalParams{Slug: "my-trip-1", Review: models.SubmissionReview{Status: models.SubmissionStatusApproved}})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, "articles_slug_key"))
}

func TestSubmissionRepositoryApproveLostConditionalUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(lockedSubmissionColumns).
			AddRow("sub-1", "My Trip", "...", "Ana", "ana@example.com", "Travel", nil, nil, nil, nil, "pending"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sub-1", ApprovalParams{Slug: "my-trip-1", Review: models.SubmissionReview{Status: models.SubmissionStatusApproved}})
	assert.True(t, errors.Is(err, ErrNotPending))
}

func TestSubmissionRepositoryReject(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)
	reviewedAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions WHERE id = $1 FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $1")).
		WithArgs("rejected", nil, "editor-1", reviewedAt, "sub-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Reject(context.Background(), "sub-1", models.SubmissionReview{
		Status:     models.SubmissionStatusRejected,
		ReviewerID: "editor-1",
		ReviewedAt: reviewedAt,
	})
	require.NoError(t, err)
}

func TestSubmissionRepositoryRejectTerminal(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions")).
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
	mock.ExpectRollback()

	err := repo.Reject(context.Background(), "sub-1", models.SubmissionReview{Status: models.SubmissionStatusRejected})
	assert.ErrorIs(t, err, ErrNotPending)
}
