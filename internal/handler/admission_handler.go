package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/pkg/response"
)

type admissionService interface {
	CreateApplication(ctx context.Context, req dto.CreateAdmissionRequest) (*models.AdmissionApplicationDetail, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest) (*models.AdmissionApplication, error)
	Get(ctx context.Context, id string) (*models.AdmissionApplicationDetail, error)
	List(ctx context.Context, query dto.AdmissionQuery) ([]models.AdmissionListItem, *models.Pagination, error)
	ExportCSV(ctx context.Context, query dto.AdmissionQuery) ([]byte, error)
}

// AdmissionHandler exposes admission intake and staff review.
type AdmissionHandler struct {
	admissions admissionService
	now        func() time.Time
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions admissionService) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, now: time.Now}
}

// Create godoc
// @Summary Apply for admission
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateAdmissionRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req dto.CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	detail, err := h.admissions.CreateApplication(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List admission applications
// @Tags Admissions
// @Produce json
// @Param status query string false "pending, interview, enrolled or rejected"
// @Param grade query string false "Grade applying"
// @Param q query string false "Student name or application number"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var query dto.AdmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	items, pagination, err := h.admissions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.AdmissionListItem{}
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export admission applications as CSV
// @Tags Admissions
// @Produce text/csv
// @Param status query string false "Status filter"
// @Param grade query string false "Grade applying"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admissions/export [get]
func (h *AdmissionHandler) Export(c *gin.Context) {
	var query dto.AdmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	data, err := h.admissions.ExportCSV(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("admissions-%s.csv", h.now().Format("20060102"))
	response.Attachment(c, filename, "text/csv; charset=utf-8", data)
}

// Get godoc
// @Summary Get an admission application
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	detail, err := h.admissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Change the status of an admission application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateApplicationStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions/{id}/status [patch]
func (h *AdmissionHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	application, err := h.admissions.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}
