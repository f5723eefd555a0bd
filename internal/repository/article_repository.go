package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-portal-api/internal/models"
)

const insertArticleQuery = `INSERT INTO articles
	(id, submission_id, title, slug, body, author_name, author_email, category, file_name, file_size, file_type, file_data, view_count, claps, published_at)
	VALUES (:id, :submission_id, :title, :slug, :body, :author_name, :author_email, :category, :file_name, :file_size, :file_type, :file_data, :view_count, :claps, :published_at)`

const articleColumns = `id, submission_id, title, slug, body, author_name, author_email, category,
	file_name, file_size, file_type, view_count, claps, published_at`

// counterColumns whitelists counter names to their columns.
var counterColumns = map[models.ArticleCounter]string{
	models.ArticleCounterViews: "view_count",
	models.ArticleCounterClaps: "claps",
}

// ArticleRepository persists published articles.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository constructs the repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Create inserts a staff-authored article with zeroed counters.
func (r *ArticleRepository) Create(ctx context.Context, article *models.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = time.Now().UTC()
	}
	article.ViewCount = 0
	article.Claps = 0
	if _, err := r.db.NamedExecContext(ctx, insertArticleQuery, article); err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

// GetBySlug fetches a published article by slug.
func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE slug = $1`
	var article models.Article
	if err := r.db.GetContext(ctx, &article, query, slug); err != nil {
		return nil, err
	}
	return &article, nil
}

// GetByID fetches a published article by identifier.
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	var article models.Article
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		return nil, err
	}
	return &article, nil
}

// List returns published articles, newest first, with the total count.
func (r *ArticleRepository) List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, int, error) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 2)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY published_at DESC LIMIT %d OFFSET %d`,
		articleColumns, where, size, offset)
	var articles []models.Article
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}
	return articles, total, nil
}

// Delete removes an article. Missing rows yield sql.ErrNoRows.
func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check article delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementCounter adds one to the named counter server-side and returns both
// counters as stored after the update.
func (r *ArticleRepository) IncrementCounter(ctx context.Context, id string, counter models.ArticleCounter) (*models.ArticleCounters, error) {
	column, ok := counterColumns[counter]
	if !ok {
		return nil, fmt.Errorf("unknown article counter %q", counter)
	}
	query := fmt.Sprintf(`UPDATE articles SET %[1]s = %[1]s + 1 WHERE id = $1 RETURNING id, view_count, claps`, column)
	var counters models.ArticleCounters
	if err := r.db.GetContext(ctx, &counters, query, id); err != nil {
		return nil, err
	}
	return &counters, nil
}
