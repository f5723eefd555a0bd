package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/pkg/database"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/slug"
)

type articleStore interface {
	Create(ctx context.Context, article *models.Article) error
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, int, error)
	Delete(ctx context.Context, id string) error
	IncrementCounter(ctx context.Context, id string, counter models.ArticleCounter) (*models.ArticleCounters, error)
}

type articleCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

type counterRecorder interface {
	RecordCounterIncrement(counter string)
}

type articleListPage struct {
	Items      []models.Article  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// ArticleService serves published articles and their counters.
type ArticleService struct {
	repo      articleStore
	cache     articleCache
	metrics   counterRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewArticleService constructs the service.
func NewArticleService(repo articleStore, cache articleCache, metrics counterRecorder, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ArticleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetBySlug returns a published article. Reading does not count a view.
func (s *ArticleService) GetBySlug(ctx context.Context, articleSlug string) (*models.Article, error) {
	article, err := s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(articleSlug)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "article not found")
		}
		return nil, storeError(err, "failed to load article")
	}
	return article, nil
}

// List returns published articles, served from cache when enabled.
func (s *ArticleService) List(ctx context.Context, query dto.ArticleQuery) ([]models.Article, *models.Pagination, error) {
	filter := models.ArticleFilter{
		Category: strings.TrimSpace(query.Category),
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	key := articleListKey(filter)

	var cached articleListPage
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached.Items, &cached.Pagination, nil
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list articles")
	}
	if items == nil {
		items = []models.Article{}
	}
	pagination := buildPagination(filter.Page, filter.PageSize, total)
	if s.cache != nil {
		s.cache.Set(ctx, key, articleListPage{Items: items, Pagination: *pagination}, s.cacheTTL)
	}
	return items, pagination, nil
}

// Create publishes a staff-authored article.
func (s *ArticleService) Create(ctx context.Context, req dto.CreateArticleRequest, actor models.Principal) (*models.Article, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid article payload")
	}

	now := s.now()
	articleSlug := slug.Make(req.Title, slug.Disambiguator(now))
	if req.Slug != nil {
		articleSlug = slug.Base(*req.Slug)
		if articleSlug == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slug must contain letters or digits")
		}
	}
	body := req.Body
	article := &models.Article{
		Title:       strings.TrimSpace(req.Title),
		Slug:        articleSlug,
		Body:        &body,
		AuthorName:  strings.TrimSpace(req.AuthorName),
		AuthorEmail: strings.TrimSpace(req.AuthorEmail),
		Category:    strings.TrimSpace(req.Category),
		PublishedAt: now,
	}
	if err := s.repo.Create(ctx, article); err != nil {
		if database.IsUniqueViolation(err, articleSlugKey) {
			return nil, appErrors.WrapAs(appErrors.ErrDuplicateSlug, err, "")
		}
		return nil, storeError(err, "failed to create article")
	}

	s.logger.Info("article created", zap.String("article_id", article.ID), zap.String("slug", article.Slug), zap.String("actor_id", actor.UserID))
	s.invalidateList(ctx)
	return article, nil
}

// Delete removes a published article.
func (s *ArticleService) Delete(ctx context.Context, id string, actor models.Principal) error {
	if err := checkID(id, "article not found"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "article not found", "failed to delete article")
	}
	s.logger.Info("article deleted", zap.String("article_id", id), zap.String("actor_id", actor.UserID))
	s.invalidateList(ctx)
	return nil
}

// IncrementCounter atomically adds one to the named counter and returns the new value.
func (s *ArticleService) IncrementCounter(ctx context.Context, id string, counter models.ArticleCounter) (int64, error) {
	if !counter.Valid() {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown counter %q", counter))
	}
	if err := checkID(id, "article not found"); err != nil {
		return 0, err
	}
	counters, err := s.repo.IncrementCounter(ctx, id, counter)
	if err != nil {
		return 0, lookupError(err, "article not found", "failed to update counter")
	}
	if s.metrics != nil {
		s.metrics.RecordCounterIncrement(string(counter))
	}
	return counters.Value(counter), nil
}

func (s *ArticleService) invalidateList(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, articleListCacheKeys)
	}
}

func articleListKey(filter models.ArticleFilter) string {
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return fmt.Sprintf("articles:list:%s:%s:%d:%d",
		strings.ToLower(filter.Category), strings.ToLower(filter.Search), page, size)
}
