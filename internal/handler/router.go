package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal-api/internal/middleware"
	"github.com/noah-isme/sma-portal-api/internal/service"
)

// Handlers groups every HTTP handler mounted by RegisterRoutes.
type Handlers struct {
	Submissions *SubmissionHandler
	Articles    *ArticleHandler
	Admissions  *AdmissionHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts ops endpoints on r and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, auth *service.AuthService, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	editors := []gin.HandlerFunc{middleware.JWT(auth), middleware.RequireRoles(middleware.EditorRoles...)}
	admins := []gin.HandlerFunc{middleware.JWT(auth), middleware.RequireRoles(middleware.AdminRoles...)}

	submissions := api.Group("/submissions")
	submissions.POST("", h.Submissions.Submit)
	moderation := submissions.Group("", editors...)
	moderation.GET("", h.Submissions.List)
	moderation.GET("/:id", h.Submissions.Get)
	moderation.GET("/:id/attachment", h.Submissions.Attachment)
	moderation.POST("/:id/approve", h.Submissions.Approve)
	moderation.POST("/:id/reject", h.Submissions.Reject)

	articles := api.Group("/articles")
	articles.GET("", h.Articles.List)
	articles.GET("/:slug", h.Articles.Get)
	articles.POST("/:slug/views", withParamAlias("id", h.Articles.View))
	articles.POST("/:slug/claps", withParamAlias("id", h.Articles.Clap))
	staffArticles := articles.Group("", editors...)
	staffArticles.POST("", h.Articles.Create)
	staffArticles.DELETE("/:slug", withParamAlias("id", h.Articles.Delete))

	admissions := api.Group("/admissions")
	admissions.POST("", h.Admissions.Create)
	office := admissions.Group("", admins...)
	office.GET("", h.Admissions.List)
	office.GET("/export", h.Admissions.Export)
	office.GET("/:id", h.Admissions.Get)
	office.PATCH("/:id/status", h.Admissions.UpdateStatus)
}

// withParamAlias exposes the :slug segment under name, since gin requires one
// wildcard name per path position.
func withParamAlias(name string, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Params = append(c.Params, gin.Param{Key: name, Value: c.Param("slug")})
		next(c)
	}
}
