package models

import "time"

// AdmissionStatus is the state of an admission application.
type AdmissionStatus string

const (
	AdmissionStatusPending   AdmissionStatus = "pending"
	AdmissionStatusInterview AdmissionStatus = "interview"
	AdmissionStatusEnrolled  AdmissionStatus = "enrolled"
	AdmissionStatusRejected  AdmissionStatus = "rejected"
)

// AdmissionStatuses lists every accepted status.
var AdmissionStatuses = []AdmissionStatus{
	AdmissionStatusPending,
	AdmissionStatusInterview,
	AdmissionStatusEnrolled,
	AdmissionStatusRejected,
}

// Valid reports whether s is a known status.
func (s AdmissionStatus) Valid() bool {
	for _, known := range AdmissionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// AdmissionApplication is the moderation subject for a prospective student.
type AdmissionApplication struct {
	ID                string          `db:"id" json:"id"`
	ApplicationNumber string          `db:"application_number" json:"application_number"`
	StudentID         string          `db:"student_id" json:"student_id"`
	GradeApplying     string          `db:"grade_applying" json:"grade_applying"`
	PreviousSchool    *string         `db:"previous_school" json:"previous_school,omitempty"`
	PreviousGrade     *string         `db:"previous_grade" json:"previous_grade,omitempty"`
	Status            AdmissionStatus `db:"status" json:"status"`
	InterviewNotes    *string         `db:"interview_notes" json:"interview_notes,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// AdmissionApplicationDetail bundles an application with its student and guardians.
type AdmissionApplicationDetail struct {
	AdmissionApplication
	Student Student  `json:"student"`
	Parents []Parent `json:"parents"`
}

// PrimaryParent returns the primary contact, falling back to the first guardian.
func (d *AdmissionApplicationDetail) PrimaryParent() *Parent {
	for i := range d.Parents {
		if d.Parents[i].IsPrimary {
			return &d.Parents[i]
		}
	}
	if len(d.Parents) > 0 {
		return &d.Parents[0]
	}
	return nil
}

// AdmissionListItem is a flattened row for listings and exports.
type AdmissionListItem struct {
	AdmissionApplication
	StudentName     string `db:"student_name" json:"student_name"`
	AdmissionNumber string `db:"admission_number" json:"admission_number"`
	StudentActive   bool   `db:"student_active" json:"student_active"`
}

// AdmissionFilter constrains application listings.
type AdmissionFilter struct {
	Status        AdmissionStatus
	GradeApplying string
	Search        string
	Page          int
	PageSize      int
}

// AdmissionStatusChange describes a status write.
type AdmissionStatusChange struct {
	Status    AdmissionStatus
	Notes     *string
	ChangedAt time.Time
}
