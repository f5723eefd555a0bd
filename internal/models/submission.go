package models

import "time"

// SubmissionStatus captures the moderation state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// Attachment is a binary payload kept in the row that owns it.
type Attachment struct {
	FileName *string `db:"file_name" json:"file_name,omitempty"`
	FileSize *int64  `db:"file_size" json:"file_size,omitempty"`
	FileType *string `db:"file_type" json:"file_type,omitempty"`
	FileData []byte  `db:"file_data" json:"-"`
}

// HasFile reports whether an attachment is present.
func (a Attachment) HasFile() bool {
	return a.FileName != nil && len(a.FileData) > 0
}

// Submission is an unmoderated piece of contributed content.
type Submission struct {
	ID             string           `db:"id" json:"id"`
	Title          string           `db:"title" json:"title"`
	Body           *string          `db:"body" json:"body,omitempty"`
	SubmitterName  string           `db:"submitter_name" json:"submitter_name"`
	SubmitterEmail string           `db:"submitter_email" json:"submitter_email"`
	Category       string           `db:"category" json:"category"`
	Attachment
	Status     SubmissionStatus `db:"status" json:"status"`
	AdminNotes *string          `db:"admin_notes" json:"admin_notes,omitempty"`
	ReviewedBy *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	ReviewedAt *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Status   SubmissionStatus
	Category string
	Page     int
	PageSize int
}

// SubmissionReview carries the data written by a moderation transition.
type SubmissionReview struct {
	Status     SubmissionStatus
	Notes      *string
	ReviewerID string
	ReviewedAt time.Time
}
