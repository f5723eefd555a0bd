package dto

// CreateArticleRequest is used by staff to publish directly.
type CreateArticleRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Body        string  `json:"body" validate:"required"`
	AuthorName  string  `json:"author_name" validate:"required,max=255"`
	AuthorEmail string  `json:"author_email" validate:"required,email"`
	Category    string  `json:"category" validate:"required,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,max=200"`
}

// ArticleQuery mirrors supported listing filters.
type ArticleQuery struct {
	Category string `form:"category"`
	Search   string `form:"q"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// CounterResponse reports the new value of a counter.
type CounterResponse struct {
	ArticleID string `json:"article_id"`
	Counter   string `json:"counter"`
	Value     int64  `json:"value"`
}
