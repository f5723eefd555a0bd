package dto

import "github.com/noah-isme/sma-portal-api/internal/models"

// AdmissionStudentInput holds the prospective student's details.
type AdmissionStudentInput struct {
	FullName    string  `json:"full_name" validate:"required,max=255"`
	DateOfBirth string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender      string  `json:"gender" validate:"required,oneof=male female"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Nationality *string `json:"nationality"`
}

// AdmissionParentInput holds the primary guardian contact.
type AdmissionParentInput struct {
	Relationship string `json:"relationship" validate:"required,max=50"`
	FullName     string `json:"full_name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=30"`
}

// CreateAdmissionRequest is the public admission intake payload.
type CreateAdmissionRequest struct {
	Student        AdmissionStudentInput `json:"student"`
	Parent         AdmissionParentInput  `json:"parent"`
	GradeApplying  string                `json:"grade_applying" validate:"required,max=20"`
	PreviousSchool *string               `json:"previous_school"`
	PreviousGrade  *string               `json:"previous_grade"`
}

// UpdateApplicationStatusRequest moves an application to another status.
type UpdateApplicationStatusRequest struct {
	Status models.AdmissionStatus `json:"status" validate:"required"`
	Notes  *string                `json:"notes"`
}

// AdmissionQuery mirrors supported listing filters.
type AdmissionQuery struct {
	Status        models.AdmissionStatus `form:"status"`
	GradeApplying string                 `form:"grade"`
	Search        string                 `form:"q"`
	Page          int                    `form:"page"`
	PageSize      int                    `form:"page_size"`
}
