package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/internal/repository"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/slug"
)

type moderationFixture struct {
	db          *memoryDB
	submissions *SubmissionService
	moderation  *ModerationService
	articles    *ArticleService
	notifier    *notifierStub
	cache       *cacheStub
	transitions *transitionStub
	now         time.Time
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	f := &moderationFixture{
		db:          newMemoryDB(),
		notifier:    &notifierStub{},
		cache:       newCacheStub(),
		transitions: &transitionStub{},
		now:         time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	f.submissions = NewSubmissionService(memorySubmissions{db: f.db}, f.notifier, nil, nil, SubmissionConfig{})
	f.moderation = NewModerationService(memorySubmissions{db: f.db}, f.notifier, f.cache, f.transitions, nil, WithModerationClock(fixedClock(f.now)))
	f.articles = NewArticleService(memoryArticles{db: f.db}, f.cache, nil, nil, nil, time.Minute)
	return f
}

func (f *moderationFixture) submit(t *testing.T, title string) *models.Submission {
	t.Helper()
	body := "Body of " + title
	sub, err := f.submissions.Submit(context.Background(), dto.SubmitContentRequest{
		Title:          title,
		Body:           &body,
		SubmitterName:  "Alice",
		SubmitterEmail: "a@x.io",
		Category:       "travel",
	}, nil)
	require.NoError(t, err)
	return sub
}

func TestApprovePublishesArticle(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "My Trip")

	article, err := f.moderation.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{Notes: strPtr("Great piece")}, "editor-1")
	require.NoError(t, err)
	assert.Equal(t, "my-trip-"+slug.Disambiguator(f.now), article.Slug)
	assert.True(t, strings.HasPrefix(article.Slug, "my-trip-"))
	require.NotNil(t, article.SubmissionID)
	assert.Equal(t, sub.ID, *article.SubmissionID)
	assert.Equal(t, "Alice", article.AuthorName)

	stored, err := f.submissions.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, stored.Status)
	require.NotNil(t, stored.AdminNotes)
	assert.Equal(t, "Great piece", *stored.AdminNotes)
	require.NotNil(t, stored.ReviewedAt)
	assert.Equal(t, f.now, *stored.ReviewedAt)
	assert.Equal(t, "editor-1", *stored.ReviewedBy)

	published, err := f.articles.GetBySlug(context.Background(), article.Slug)
	require.NoError(t, err)
	assert.Equal(t, "My Trip", published.Title)
	assert.Zero(t, published.ViewCount)
	assert.Zero(t, published.Claps)

	sent := f.notifier.sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.Equal(t, []string{"a@x.io"}, last.To)
	assert.Contains(t, last.Body, article.Slug)
	assert.Contains(t, last.Body, "Great piece")

	assert.Equal(t, []string{"submission:approved"}, f.transitions.events)
	assert.Equal(t, []string{articleListCacheKeys}, f.cache.invalidated)
}

func TestApproveTwiceIsInvalidTransition(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "Science Fair")

	_, err := f.moderation.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-1")
	require.NoError(t, err)

	_, err = f.moderation.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, 1, f.db.articlesFor(sub.ID))

	err = f.moderation.Reject(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-2")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestConcurrentApprovalsPublishOnce(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "Sports Day")

	const reviewers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.moderation.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErrors.ErrInvalidTransition):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, reviewers-1, conflicts)
	assert.Equal(t, 1, f.db.articlesFor(sub.ID))
}

func TestRejectKeepsSubmissionUnpublished(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "Off Topic")

	err := f.moderation.Reject(context.Background(), sub.ID, dto.ReviewSubmissionRequest{Notes: strPtr("  ")}, "editor-1")
	require.NoError(t, err)

	stored, err := f.submissions.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, stored.Status)
	assert.Nil(t, stored.AdminNotes)
	assert.Zero(t, f.db.articlesFor(sub.ID))
	assert.Empty(t, f.cache.invalidated)

	_, err = f.moderation.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestModerationUnknownSubmission(t *testing.T) {
	f := newModerationFixture(t)

	_, err := f.moderation.Approve(context.Background(), uuid.NewString(), dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	err = f.moderation.Reject(context.Background(), uuid.NewString(), dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type unparsableIDSubmissions struct {
	memorySubmissions
}

func (unparsableIDSubmissions) GetByID(context.Context, string) (*models.Submission, error) {
	return nil, &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"}
}

func TestModerationMalformedID(t *testing.T) {
	f := newModerationFixture(t)

	_, err := f.moderation.Approve(context.Background(), "submission-42", dto.ReviewSubmissionRequest{}, "editor-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 404, appErrors.FromError(err).Status)

	err = f.moderation.Reject(context.Background(), "submission-42", dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc := NewModerationService(unparsableIDSubmissions{memorySubmissions{db: f.db}}, f.notifier, f.cache, nil, nil)
	_, err = svc.Approve(context.Background(), uuid.NewString(), dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, f.notifier.sent())
}

type slugClashStore struct {
	memorySubmissions
}

func (s slugClashStore) Approve(context.Context, string, repository.ApprovalParams) (*models.Article, error) {
	return nil, &pq.Error{Code: "23505", Constraint: articleSlugKey}
}

func TestApproveDuplicateSlug(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "My Trip")
	svc := NewModerationService(slugClashStore{memorySubmissions{db: f.db}}, f.notifier, f.cache, nil, nil)

	_, err := svc.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateSlug))

	stored, err := f.submissions.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, stored.Status)
}

type lateConflictStore struct {
	memorySubmissions
}

func (s lateConflictStore) Approve(context.Context, string, repository.ApprovalParams) (*models.Article, error) {
	return nil, repository.ErrNotPending
}

func TestApproveLosesRaceAfterPrecheck(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, "My Trip")
	svc := NewModerationService(lateConflictStore{memorySubmissions{db: f.db}}, f.notifier, nil, nil, nil)

	_, err := svc.Approve(context.Background(), sub.ID, dto.ReviewSubmissionRequest{}, "editor-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.True(t, errors.Is(err, repository.ErrNotPending))
}
