package service

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/notify"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
}

// SubmissionConfig bounds attachments and names who hears about new submissions.
type SubmissionConfig struct {
	MaxFileSize    int64
	AllowedMIMEs   []string
	ReviewerEmails []string
}

// SubmissionService accepts public content submissions.
type SubmissionService struct {
	repo      submissionStore
	notifier  notify.Notifier
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubmissionConfig
	mimeSet   map[string]struct{}
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionStore, notifier notify.Notifier, validate *validator.Validate, logger *zap.Logger, cfg SubmissionConfig) *SubmissionService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &SubmissionService{repo: repo, notifier: notifier, validator: validate, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// MaxFileSize returns the attachment ceiling in bytes.
func (s *SubmissionService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Submit validates and stores a pending submission, then tells reviewers.
// Repeated calls create repeated submissions.
func (s *SubmissionService) Submit(ctx context.Context, req dto.SubmitContentRequest, upload *dto.SubmissionUpload) (*models.Submission, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.SubmitterName = strings.TrimSpace(req.SubmitterName)
	req.SubmitterEmail = strings.TrimSpace(req.SubmitterEmail)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	body := req.Body
	if body != nil && strings.TrimSpace(*body) == "" {
		body = nil
	}
	if body == nil && upload == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either body or attachment is required")
	}

	submission := &models.Submission{
		Title:          req.Title,
		Body:           body,
		SubmitterName:  req.SubmitterName,
		SubmitterEmail: req.SubmitterEmail,
		Category:       req.Category,
	}
	if upload != nil {
		attachment, err := s.checkUpload(upload)
		if err != nil {
			return nil, err
		}
		submission.Attachment = *attachment
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, storeError(err, "failed to store submission")
	}

	s.notifyReviewers(ctx, submission)
	return submission, nil
}

// Get returns submission metadata.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	if err := checkID(id, "submission not found"); err != nil {
		return nil, err
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "submission not found", "failed to load submission")
	}
	return submission, nil
}

// GetAttachment returns the stored file of a submission.
func (s *SubmissionService) GetAttachment(ctx context.Context, id string) (*dto.SubmissionAttachment, error) {
	if err := checkID(id, "submission not found"); err != nil {
		return nil, err
	}
	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "submission not found", "failed to load attachment")
	}
	if !attachment.HasFile() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no attachment")
	}
	contentType := "application/octet-stream"
	if attachment.FileType != nil && *attachment.FileType != "" {
		contentType = *attachment.FileType
	}
	return &dto.SubmissionAttachment{FileName: *attachment.FileName, ContentType: contentType, Data: attachment.FileData}, nil
}

// List returns submissions for the moderation queue.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery) ([]models.Submission, *models.Pagination, error) {
	if query.Status != "" {
		switch query.Status {
		case models.SubmissionStatusPending, models.SubmissionStatusApproved, models.SubmissionStatusRejected:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown submission status")
		}
	}
	filter := models.SubmissionFilter{Status: query.Status, Category: query.Category, Page: query.Page, PageSize: query.PageSize}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list submissions")
	}
	return items, buildPagination(query.Page, query.PageSize, total), nil
}

func (s *SubmissionService) checkUpload(upload *dto.SubmissionUpload) (*models.Attachment, error) {
	size := int64(len(upload.Data))
	if size == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment is empty")
	}
	if size > s.cfg.MaxFileSize || upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	name := strings.TrimSpace(upload.FileName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment file name is required")
	}

	contentType := detectContentType(upload)
	if len(s.mimeSet) > 0 {
		if _, ok := s.mimeSet[contentType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s not allowed", contentType))
		}
	}
	return &models.Attachment{FileName: &name, FileSize: &size, FileType: &contentType, FileData: upload.Data}, nil
}

// detectContentType trusts a client-declared type when present and sniffs otherwise.
func detectContentType(upload *dto.SubmissionUpload) string {
	if declared := strings.TrimSpace(upload.ContentType); declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return strings.ToLower(mediaType)
		}
	}
	detected := mimetype.Detect(upload.Data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}

func (s *SubmissionService) notifyReviewers(ctx context.Context, submission *models.Submission) {
	if len(s.cfg.ReviewerEmails) == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A new submission is waiting for review.\n\n")
	fmt.Fprintf(&b, "Title: %s\nCategory: %s\nFrom: %s <%s>\n", submission.Title, submission.Category, submission.SubmitterName, submission.SubmitterEmail)
	if submission.FileName != nil {
		fmt.Fprintf(&b, "Attachment: %s (%d bytes)\n", *submission.FileName, *submission.FileSize)
	}
	fmt.Fprintf(&b, "Reference: %s\n", submission.ID)

	s.dispatch(ctx, notify.Message{
		To:      s.cfg.ReviewerEmails,
		Subject: "New submission: " + submission.Title,
		Body:    b.String(),
	}, "submission_id", submission.ID)
}

func (s *SubmissionService) dispatch(ctx context.Context, msg notify.Message, refKey, refID string) {
	dispatchNotification(ctx, s.notifier, s.logger, msg, refKey, refID)
}

// dispatchNotification hands msg to the notifier, logging instead of failing.
func dispatchNotification(ctx context.Context, notifier notify.Notifier, logger *zap.Logger, msg notify.Message, refKey, refID string) {
	if len(msg.To) == 0 {
		return
	}
	if err := notifier.Notify(ctx, msg); err != nil {
		logger.Warn("failed to dispatch notification",
			zap.String(refKey, refID),
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

func buildPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
