package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/internal/repository"
	"github.com/noah-isme/sma-portal-api/pkg/notify"
)

// memoryDB emulates the row locking the SQL repositories rely on: every
// transactional method runs under one mutex.
type memoryDB struct {
	mu          sync.Mutex
	submissions map[string]models.Submission
	articles    map[string]models.Article
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		submissions: make(map[string]models.Submission),
		articles:    make(map[string]models.Article),
	}
}

type memorySubmissions struct{ db *memoryDB }

func (m memorySubmissions) Create(_ context.Context, submission *models.Submission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	submission.ID = uuid.NewString()
	submission.Status = models.SubmissionStatusPending
	submission.CreatedAt = time.Now().UTC()
	m.db.submissions[submission.ID] = *submission
	return nil
}

func (m memorySubmissions) GetByID(_ context.Context, id string) (*models.Submission, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	sub, ok := m.db.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (m memorySubmissions) GetAttachment(_ context.Context, id string) (*models.Attachment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	sub, ok := m.db.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	att := sub.Attachment
	return &att, nil
}

func (m memorySubmissions) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Submission
	for _, sub := range m.db.submissions {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		out = append(out, sub)
	}
	return out, len(out), nil
}

func (m memorySubmissions) Approve(_ context.Context, id string, params repository.ApprovalParams) (*models.Article, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	sub, ok := m.db.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sub.Status != models.SubmissionStatusPending {
		return nil, repository.ErrNotPending
	}
	for _, existing := range m.db.articles {
		if existing.Slug == params.Slug {
			return nil, errors.New("duplicate slug")
		}
	}
	subID := sub.ID
	article := models.Article{
		ID:           uuid.NewString(),
		SubmissionID: &subID,
		Title:        sub.Title,
		Slug:         params.Slug,
		Body:         sub.Body,
		AuthorName:   sub.SubmitterName,
		AuthorEmail:  sub.SubmitterEmail,
		Category:     sub.Category,
		Attachment:   sub.Attachment,
		PublishedAt:  params.Review.ReviewedAt,
	}
	m.db.articles[article.ID] = article
	applyReview(&sub, params.Review)
	m.db.submissions[id] = sub
	return &article, nil
}

func (m memorySubmissions) Reject(_ context.Context, id string, review models.SubmissionReview) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	sub, ok := m.db.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if sub.Status != models.SubmissionStatusPending {
		return repository.ErrNotPending
	}
	applyReview(&sub, review)
	m.db.submissions[id] = sub
	return nil
}

func applyReview(sub *models.Submission, review models.SubmissionReview) {
	reviewedAt := review.ReviewedAt
	reviewer := review.ReviewerID
	sub.Status = review.Status
	sub.AdminNotes = review.Notes
	sub.ReviewedAt = &reviewedAt
	sub.ReviewedBy = &reviewer
}

func (db *memoryDB) articlesFor(submissionID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	count := 0
	for _, a := range db.articles {
		if a.SubmissionID != nil && *a.SubmissionID == submissionID {
			count++
		}
	}
	return count
}

type memoryArticles struct{ db *memoryDB }

func (m memoryArticles) Create(_ context.Context, article *models.Article) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.articles {
		if existing.Slug == article.Slug {
			return errors.New("duplicate slug")
		}
	}
	article.ID = uuid.NewString()
	m.db.articles[article.ID] = *article
	return nil
}

func (m memoryArticles) GetBySlug(_ context.Context, slug string) (*models.Article, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, a := range m.db.articles {
		if a.Slug == slug {
			article := a
			return &article, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memoryArticles) List(_ context.Context, filter models.ArticleFilter) ([]models.Article, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Article
	for _, a := range m.db.articles {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, len(out), nil
}

func (m memoryArticles) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.articles[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.db.articles, id)
	return nil
}

func (m memoryArticles) IncrementCounter(_ context.Context, id string, counter models.ArticleCounter) (*models.ArticleCounters, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.articles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	switch counter {
	case models.ArticleCounterViews:
		a.ViewCount++
	case models.ArticleCounterClaps:
		a.Claps++
	}
	m.db.articles[id] = a
	return &models.ArticleCounters{ArticleID: id, ViewCount: a.ViewCount, Claps: a.Claps}, nil
}

type notifierStub struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *notifierStub) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *notifierStub) sent() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.messages...)
}

type cacheStub struct {
	mu          sync.Mutex
	values      map[string]interface{}
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string]interface{})}
}

func (c *cacheStub) Get(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return false
	}
	page, okPage := v.(articleListPage)
	target, okDest := dest.(*articleListPage)
	if !okPage || !okDest {
		return false
	}
	*target = page
	return true
}

func (c *cacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *cacheStub) Invalidate(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	c.values = make(map[string]interface{})
}

type transitionStub struct {
	mu     sync.Mutex
	events []string
}

func (t *transitionStub) RecordTransition(entity, transition string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, entity+":"+transition)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(v string) *string { return &v }
