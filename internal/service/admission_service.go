package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/internal/dto"
	"github.com/noah-isme/sma-portal-api/internal/models"
	"github.com/noah-isme/sma-portal-api/pkg/database"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
	"github.com/noah-isme/sma-portal-api/pkg/export"
	"github.com/noah-isme/sma-portal-api/pkg/notify"
)

const (
	entityAdmission = "admission"
	dateLayout      = "2006-01-02"
)

var admissionNumberConstraints = []string{
	"students_admission_number_key",
	"admission_applications_application_number_key",
}

type admissionStore interface {
	CreateWithGuardian(ctx context.Context, student *models.Student, parent *models.Parent, application *models.AdmissionApplication) error
	UpdateStatus(ctx context.Context, id string, change models.AdmissionStatusChange) (*models.AdmissionApplication, error)
	GetDetail(ctx context.Context, id string) (*models.AdmissionApplicationDetail, error)
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionListItem, int, error)
	ListForExport(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionListItem, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// AdmissionConfig controls generated numbers and office recipients.
type AdmissionConfig struct {
	AdmissionNumberPrefix   string
	ApplicationNumberPrefix string
	OfficeEmails            []string
}

// AdmissionService coordinates admission intake and status changes.
type AdmissionService struct {
	repo      admissionStore
	notifier  notify.Notifier
	pdf       documentRenderer
	csv       tableRenderer
	metrics   transitionRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AdmissionConfig
	now       func() time.Time
}

// AdmissionServiceOption configures the service.
type AdmissionServiceOption func(*AdmissionService)

// WithAdmissionClock overrides the time source used for numbers and timestamps.
func WithAdmissionClock(now func() time.Time) AdmissionServiceOption {
	return func(s *AdmissionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdmissionRenderers overrides the PDF and CSV renderers.
func WithAdmissionRenderers(pdf documentRenderer, csv tableRenderer) AdmissionServiceOption {
	return func(s *AdmissionService) {
		if pdf != nil {
			s.pdf = pdf
		}
		if csv != nil {
			s.csv = csv
		}
	}
}

// NewAdmissionService constructs the service.
func NewAdmissionService(repo admissionStore, notifier notify.Notifier, metrics transitionRecorder, validate *validator.Validate, logger *zap.Logger, cfg AdmissionConfig, opts ...AdmissionServiceOption) *AdmissionService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AdmissionNumberPrefix == "" {
		cfg.AdmissionNumberPrefix = "ADM"
	}
	if cfg.ApplicationNumberPrefix == "" {
		cfg.ApplicationNumberPrefix = "APP"
	}
	svc := &AdmissionService{
		repo:      repo,
		notifier:  notifier,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateApplication stores the student, primary parent and pending application
// atomically, then acknowledges the parent and informs the admissions office.
func (s *AdmissionService) CreateApplication(ctx context.Context, req dto.CreateAdmissionRequest) (*models.AdmissionApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	dob, err := time.Parse(dateLayout, req.Student.DateOfBirth)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date_of_birth must be YYYY-MM-DD")
	}

	now := s.now()
	stamp := strconv.FormatInt(now.UnixMicro(), 10)
	student := &models.Student{
		AdmissionNumber: s.cfg.AdmissionNumberPrefix + stamp,
		FullName:        strings.TrimSpace(req.Student.FullName),
		DateOfBirth:     dob,
		Gender:          req.Student.Gender,
		Address:         trimOptional(req.Student.Address),
		City:            trimOptional(req.Student.City),
		Nationality:     trimOptional(req.Student.Nationality),
		CurrentGrade:    strings.TrimSpace(req.GradeApplying),
	}
	parent := &models.Parent{
		Relationship: strings.TrimSpace(req.Parent.Relationship),
		FullName:     strings.TrimSpace(req.Parent.FullName),
		Email:        strings.TrimSpace(req.Parent.Email),
		Phone:        strings.TrimSpace(req.Parent.Phone),
	}
	application := &models.AdmissionApplication{
		ApplicationNumber: s.cfg.ApplicationNumberPrefix + stamp,
		GradeApplying:     strings.TrimSpace(req.GradeApplying),
		PreviousSchool:    trimOptional(req.PreviousSchool),
		PreviousGrade:     trimOptional(req.PreviousGrade),
	}

	if err := s.repo.CreateWithGuardian(ctx, student, parent, application); err != nil {
		if database.IsUniqueViolation(err, admissionNumberConstraints...) {
			return nil, appErrors.WrapAs(appErrors.ErrDuplicateApplicationNumber, err, "")
		}
		return nil, storeError(err, "failed to create admission application")
	}

	detail := &models.AdmissionApplicationDetail{
		AdmissionApplication: *application,
		Student:              *student,
		Parents:              []models.Parent{*parent},
	}
	s.logger.Info("admission application created",
		zap.String("application_id", application.ID),
		zap.String("application_number", application.ApplicationNumber))
	s.recordTransition(string(models.AdmissionStatusPending))

	s.acknowledge(ctx, detail)
	return detail, nil
}

// UpdateStatus moves an application to status. Enrolling activates the student
// in the same transaction; nil notes keep the stored notes.
func (s *AdmissionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest) (*models.AdmissionApplication, error) {
	status := models.AdmissionStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", req.Status))
	}

	if err := checkID(id, "admission application not found"); err != nil {
		return nil, err
	}

	application, err := s.repo.UpdateStatus(ctx, id, models.AdmissionStatusChange{
		Status:    status,
		Notes:     req.Notes,
		ChangedAt: s.now(),
	})
	if err != nil {
		return nil, lookupError(err, "admission application not found", "failed to update admission status")
	}

	s.logger.Info("admission status updated", zap.String("application_id", id), zap.String("status", string(status)))
	s.recordTransition(string(status))
	s.notifyStatus(ctx, application)
	return application, nil
}

// Get returns an application with its student and guardians.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.AdmissionApplicationDetail, error) {
	if err := checkID(id, "admission application not found"); err != nil {
		return nil, err
	}
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, lookupError(err, "admission application not found", "failed to load admission application")
	}
	return detail, nil
}

// List returns applications for staff review.
func (s *AdmissionService) List(ctx context.Context, query dto.AdmissionQuery) ([]models.AdmissionListItem, *models.Pagination, error) {
	filter, err := admissionFilter(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list admission applications")
	}
	return items, buildPagination(query.Page, query.PageSize, total), nil
}

// ExportCSV renders matching applications as CSV.
func (s *AdmissionService) ExportCSV(ctx context.Context, query dto.AdmissionQuery) ([]byte, error) {
	filter, err := admissionFilter(query)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to load admission applications")
	}

	table := export.Table{
		Headers: []string{"application_number", "admission_number", "student_name", "grade_applying", "previous_school", "status", "student_active", "interview_notes", "created_at"},
		Rows:    make([][]string, 0, len(items)),
	}
	for _, item := range items {
		table.Rows = append(table.Rows, []string{
			item.ApplicationNumber,
			item.AdmissionNumber,
			item.StudentName,
			item.GradeApplying,
			derefString(item.PreviousSchool),
			string(item.Status),
			strconv.FormatBool(item.StudentActive),
			derefString(item.InterviewNotes),
			item.CreatedAt.Format(time.RFC3339),
		})
	}
	out, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return out, nil
}

func (s *AdmissionService) acknowledge(ctx context.Context, detail *models.AdmissionApplicationDetail) {
	parent := detail.PrimaryParent()
	if parent != nil {
		msg := notify.Message{
			To:      []string{parent.Email},
			Subject: "Admission application received: " + detail.ApplicationNumber,
			Body: fmt.Sprintf("Dear %s,\n\nWe have received the admission application for %s (grade %s).\nApplication number: %s\n\nYour acknowledgement letter is attached.\n",
				parent.FullName, detail.Student.FullName, detail.GradeApplying, detail.ApplicationNumber),
		}
		if letter, err := s.pdf.Render(acknowledgementDocument(detail, parent)); err != nil {
			s.logger.Warn("failed to render acknowledgement", zap.String("application_id", detail.ID), zap.Error(err))
		} else {
			msg.Attachments = []notify.Attachment{{
				Filename:    detail.ApplicationNumber + ".pdf",
				ContentType: "application/pdf",
				Data:        letter,
			}}
		}
		dispatchNotification(ctx, s.notifier, s.logger, msg, "application_id", detail.ID)
	}

	dispatchNotification(ctx, s.notifier, s.logger, notify.Message{
		To:      s.cfg.OfficeEmails,
		Subject: "New admission application " + detail.ApplicationNumber,
		Body: fmt.Sprintf("Student: %s\nGrade applying: %s\nApplication number: %s\nAdmission number: %s\n",
			detail.Student.FullName, detail.GradeApplying, detail.ApplicationNumber, detail.Student.AdmissionNumber),
	}, "application_id", detail.ID)
}

func (s *AdmissionService) notifyStatus(ctx context.Context, application *models.AdmissionApplication) {
	detail, err := s.repo.GetDetail(ctx, application.ID)
	if err != nil {
		s.logger.Warn("failed to resolve guardian for status notification", zap.String("application_id", application.ID), zap.Error(err))
		return
	}
	parent := detail.PrimaryParent()
	if parent == nil {
		return
	}
	body := fmt.Sprintf("Dear %s,\n\nThe admission application %s for %s is now: %s.\n",
		parent.FullName, application.ApplicationNumber, detail.Student.FullName, application.Status)
	if application.Status == models.AdmissionStatusEnrolled {
		body += fmt.Sprintf("Admission number: %s\n", detail.Student.AdmissionNumber)
	}
	dispatchNotification(ctx, s.notifier, s.logger, notify.Message{
		To:      []string{parent.Email},
		Subject: "Admission application update: " + application.ApplicationNumber,
		Body:    body,
	}, "application_id", application.ID)
}

func (s *AdmissionService) recordTransition(transition string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(entityAdmission, transition)
	}
}

func acknowledgementDocument(detail *models.AdmissionApplicationDetail, parent *models.Parent) export.Document {
	return export.Document{
		Title:    "Admission Acknowledgement",
		Subtitle: "Application " + detail.ApplicationNumber,
		Sections: []export.Section{
			{
				Heading: "Application",
				Fields: []export.Field{
					{Label: "Application number", Value: detail.ApplicationNumber},
					{Label: "Admission number", Value: detail.Student.AdmissionNumber},
					{Label: "Grade applying", Value: detail.GradeApplying},
					{Label: "Previous school", Value: derefString(detail.PreviousSchool)},
					{Label: "Submitted", Value: detail.CreatedAt.Format("02 Jan 2006 15:04 MST")},
					{Label: "Status", Value: string(detail.Status)},
				},
			},
			{
				Heading: "Student",
				Fields: []export.Field{
					{Label: "Full name", Value: detail.Student.FullName},
					{Label: "Date of birth", Value: detail.Student.DateOfBirth.Format(dateLayout)},
					{Label: "Gender", Value: detail.Student.Gender},
				},
			},
			{
				Heading: "Primary contact",
				Fields: []export.Field{
					{Label: "Name", Value: parent.FullName},
					{Label: "Relationship", Value: parent.Relationship},
					{Label: "Email", Value: parent.Email},
					{Label: "Phone", Value: parent.Phone},
				},
			},
		},
		Footer: "Please quote the application number in all correspondence with the admissions office.",
	}
}

func admissionFilter(query dto.AdmissionQuery) (models.AdmissionFilter, error) {
	status := models.AdmissionStatus(strings.ToLower(strings.TrimSpace(string(query.Status))))
	if status != "" && !status.Valid() {
		return models.AdmissionFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", query.Status))
	}
	return models.AdmissionFilter{
		Status:        status,
		GradeApplying: strings.TrimSpace(query.GradeApplying),
		Search:        strings.TrimSpace(query.Search),
		Page:          query.Page,
		PageSize:      query.PageSize,
	}, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
