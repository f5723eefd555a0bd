package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/pkg/response"
)

type articleService interface {
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	List(ctx context.Context, query dto.ArticleQuery) ([]models.Article, *models.Pagination, error)
	Create(ctx context.Context, req dto.CreateArticleRequest, actor models.Principal) (*models.Article, error)
	Delete(ctx context.Context, id string, actor models.Principal) error
	IncrementCounter(ctx context.Context, id string, counter models.ArticleCounter) (int64, error)
}

// ArticleHandler serves published articles.
type ArticleHandler struct {
	articles articleService
}

// NewArticleHandler constructs ArticleHandler.
func NewArticleHandler(articles articleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

// List godoc
// @Summary List published articles
// @Tags Articles
// @Produce json
// @Param category query string false "Category"
// @Param q query string false "Title search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /articles [get]
func (h *ArticleHandler) List(c *gin.Context) {
	var query dto.ArticleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	items, pagination, err := h.articles.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a published article
// @Tags Articles
// @Produce json
// @Param slug path string true "Article slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /articles/{slug} [get]
func (h *ArticleHandler) Get(c *gin.Context) {
	article, err := h.articles.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// View godoc
// @Summary Count an article view
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Router /articles/{id}/views [post]
func (h *ArticleHandler) View(c *gin.Context) {
	h.increment(c, models.ArticleCounterViews)
}

// Clap godoc
// @Summary Clap for an article
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Router /articles/{id}/claps [post]
func (h *ArticleHandler) Clap(c *gin.Context) {
	h.increment(c, models.ArticleCounterClaps)
}

func (h *ArticleHandler) increment(c *gin.Context, counter models.ArticleCounter) {
	id := c.Param("id")
	value, err := h.articles.IncrementCounter(c.Request.Context(), id, counter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CounterResponse{ArticleID: id, Counter: string(counter), Value: value}, nil)
}

// Create godoc
// @Summary Publish an article directly
// @Tags Articles
// @Accept json
// @Produce json
// @Param payload body dto.CreateArticleRequest true "Article payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /articles [post]
func (h *ArticleHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	article, err := h.articles.Create(c.Request.Context(), req, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, article)
}

// Delete godoc
// @Summary Delete an article
// @Tags Articles
// @Param id path string true "Article ID"
// @Success 204
// @Security BearerAuth
// @Router /articles/{id} [delete]
func (h *ArticleHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.articles.Delete(c.Request.Context(), c.Param("id"), principal); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
