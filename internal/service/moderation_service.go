package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/internal/repository"
	"github.com/noah-isme/sma-portal-api/pkg/database"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/notify"
	"github.com/noah-isme/sma-portal-api/pkg/slug"
)

const (
	entitySubmission     = "submission"
	articleSlugKey       = "articles_slug_key"
	articleListCacheKeys = "articles:list:*"
)

type moderationStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	Approve(ctx context.Context, id string, params repository.ApprovalParams) (*models.Article, error)
	Reject(ctx context.Context, id string, review models.SubmissionReview) error
}

type articleCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

type transitionRecorder interface {
	RecordTransition(entity, transition string)
}

// ModerationService drives submissions through pending -> approved | rejected.
type ModerationService struct {
	repo     moderationStore
	notifier notify.Notifier
	cache    articleCacheInvalidator
	metrics  transitionRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// ModerationServiceOption configures the service.
type ModerationServiceOption func(*ModerationService)

// WithModerationClock overrides the time source used for slugs and review stamps.
func WithModerationClock(now func() time.Time) ModerationServiceOption {
	return func(s *ModerationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewModerationService constructs the service.
func NewModerationService(repo moderationStore, notifier notify.Notifier, cache articleCacheInvalidator, metrics transitionRecorder, logger *zap.Logger, opts ...ModerationServiceOption) *ModerationService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ModerationService{
		repo:     repo,
		notifier: notifier,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Approve publishes a pending submission as an article. Exactly one of several
// concurrent approvals succeeds; the rest get INVALID_TRANSITION.
func (s *ModerationService) Approve(ctx context.Context, id string, req dto.ReviewSubmissionRequest, reviewerID string) (*models.Article, error) {
	submission, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	params := repository.ApprovalParams{
		Slug: slug.Make(submission.Title, slug.Disambiguator(now)),
		Review: models.SubmissionReview{
			Status:     models.SubmissionStatusApproved,
			Notes:      normalizeNotes(req.Notes),
			ReviewerID: reviewerID,
			ReviewedAt: now,
		},
	}
	article, err := s.repo.Approve(ctx, id, params)
	if err != nil {
		return nil, s.mapTransitionError(err, "failed to approve submission")
	}

	s.logger.Info("submission approved",
		zap.String("submission_id", id),
		zap.String("article_id", article.ID),
		zap.String("slug", article.Slug),
		zap.String("reviewer_id", reviewerID))
	s.recordTransition(string(models.SubmissionStatusApproved))
	if s.cache != nil {
		s.cache.Invalidate(ctx, articleListCacheKeys)
	}

	dispatchNotification(ctx, s.notifier, s.logger, notify.Message{
		To:      []string{submission.SubmitterEmail},
		Subject: "Your submission has been published",
		Body:    approvalBody(submission, article, params.Review.Notes),
	}, "submission_id", id)
	return article, nil
}

// Reject closes a pending submission without publishing it.
func (s *ModerationService) Reject(ctx context.Context, id string, req dto.ReviewSubmissionRequest, reviewerID string) error {
	submission, err := s.loadPending(ctx, id)
	if err != nil {
		return err
	}

	review := models.SubmissionReview{
		Status:     models.SubmissionStatusRejected,
		Notes:      normalizeNotes(req.Notes),
		ReviewerID: reviewerID,
		ReviewedAt: s.now(),
	}
	if err := s.repo.Reject(ctx, id, review); err != nil {
		return s.mapTransitionError(err, "failed to reject submission")
	}

	s.logger.Info("submission rejected", zap.String("submission_id", id), zap.String("reviewer_id", reviewerID))
	s.recordTransition(string(models.SubmissionStatusRejected))

	dispatchNotification(ctx, s.notifier, s.logger, notify.Message{
		To:      []string{submission.SubmitterEmail},
		Subject: "Your submission was not accepted",
		Body:    rejectionBody(submission, review.Notes),
	}, "submission_id", id)
	return nil
}

// loadPending fails fast before opening a transaction; the repository re-checks under lock.
func (s *ModerationService) loadPending(ctx context.Context, id string) (*models.Submission, error) {
	if err := checkID(id, "submission not found"); err != nil {
		return nil, err
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "submission not found", "failed to load submission")
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("submission is already %s", submission.Status))
	}
	return submission, nil
}

func (s *ModerationService) mapTransitionError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows), database.IsInvalidInput(err):
		return appErrors.WrapAs(appErrors.ErrNotFound, err, "submission not found")
	case errors.Is(err, repository.ErrNotPending):
		return appErrors.WrapAs(appErrors.ErrInvalidTransition, err, "submission is no longer pending")
	case database.IsUniqueViolation(err, articleSlugKey):
		return appErrors.WrapAs(appErrors.ErrDuplicateSlug, err, "")
	default:
		return storeError(err, message)
	}
}

func (s *ModerationService) recordTransition(transition string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(entitySubmission, transition)
	}
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func approvalBody(submission *models.Submission, article *models.Article, notes *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYour submission %q has been approved and published.\n", submission.SubmitterName, submission.Title)
	fmt.Fprintf(&b, "Article address: /articles/%s\n", article.Slug)
	if notes != nil {
		fmt.Fprintf(&b, "\nReviewer notes: %s\n", *notes)
	}
	return b.String()
}

func rejectionBody(submission *models.Submission, notes *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThank you for your submission %q. After review it was not accepted for publication.\n", submission.SubmitterName, submission.Title)
	if notes != nil {
		fmt.Fprintf(&b, "\nReviewer notes: %s\n", *notes)
	}
	return b.String()
}
