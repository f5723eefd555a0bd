package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/response"
)

const attachmentField = "file"

type submissionService interface {
	Submit(ctx context.Context, req dto.SubmitContentRequest, upload *dto.SubmissionUpload) (*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	GetAttachment(ctx context.Context, id string) (*dto.SubmissionAttachment, error)
	List(ctx context.Context, query dto.SubmissionQuery) ([]models.Submission, *models.Pagination, error)
	MaxFileSize() int64
}

type moderationService interface {
	Approve(ctx context.Context, id string, req dto.ReviewSubmissionRequest, reviewerID string) (*models.Article, error)
	Reject(ctx context.Context, id string, req dto.ReviewSubmissionRequest, reviewerID string) error
}

// SubmissionHandler exposes public intake and the staff moderation queue.
type SubmissionHandler struct {
	submissions submissionService
	moderation  moderationService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions submissionService, moderation moderationService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, moderation: moderation}
}

// Submit godoc
// @Summary Submit content for review
// @Tags Submissions
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.SubmitContentRequest true "Submission payload"
// @Param file formData file false "Optional attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var (
		req    dto.SubmitContentRequest
		upload *dto.SubmissionUpload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
		var err error
		upload, err = h.readUpload(c)
		if err != nil {
			response.Error(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	submission, err := h.submissions.Submit(c.Request.Context(), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// readUpload reads the optional attachment, never more than one byte past the limit.
func (h *SubmissionHandler) readUpload(c *gin.Context) (*dto.SubmissionUpload, error) {
	header, err := c.FormFile(attachmentField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, bindError(err)
	}
	limit := h.submissions.MaxFileSize()
	if header.Size > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment exceeds %d bytes limit", limit))
	}
	file, err := header.Open()
	if err != nil {
		return nil, bindError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, bindError(err)
	}
	return &dto.SubmissionUpload{
		FileName:    header.Filename,
		Size:        int64(len(data)),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param category query string false "Category"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	var query dto.SubmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	items, pagination, err := h.submissions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.Submission{}
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get submission metadata
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Attachment godoc
// @Summary Download a submission attachment
// @Tags Submissions
// @Produce octet-stream
// @Param id path string true "Submission ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /submissions/{id}/attachment [get]
func (h *SubmissionHandler) Attachment(c *gin.Context) {
	attachment, err := h.submissions.GetAttachment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, attachment.FileName, attachment.ContentType, attachment.Data)
}

// Approve godoc
// @Summary Approve and publish a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ReviewSubmissionRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/approve [post]
func (h *SubmissionHandler) Approve(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	req, ok := bindReview(c)
	if !ok {
		return
	}
	article, err := h.moderation.Approve(c.Request.Context(), c.Param("id"), req, principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// Reject godoc
// @Summary Reject a submission
// @Tags Submissions
// @Accept json
// @Param id path string true "Submission ID"
// @Param payload body dto.ReviewSubmissionRequest false "Reviewer notes"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/reject [post]
func (h *SubmissionHandler) Reject(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	req, ok := bindReview(c)
	if !ok {
		return
	}
	if err := h.moderation.Reject(c.Request.Context(), c.Param("id"), req, principal.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// bindReview accepts an empty body as "no notes".
func bindReview(c *gin.Context) (dto.ReviewSubmissionRequest, bool) {
	var req dto.ReviewSubmissionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, bindError(err))
		return req, false
	}
	return req, true
}
