package dto

import "github.com/noah-isme/sma-portal-api/internal/models"

// SubmitContentRequest is the public payload for a content submission.
type SubmitContentRequest struct {
	Title          string  `json:"title" form:"title" validate:"required,max=255"`
	Body           *string `json:"body" form:"body"`
	SubmitterName  string  `json:"submitter_name" form:"submitter_name" validate:"required,max=255"`
	SubmitterEmail string  `json:"submitter_email" form:"submitter_email" validate:"required,email,max=255"`
	Category       string  `json:"category" form:"category" validate:"required,max=100"`
}

// SubmissionUpload is an attachment received alongside a submission.
type SubmissionUpload struct {
	FileName    string
	Size        int64
	ContentType string
	Data        []byte
}

// ReviewSubmissionRequest carries reviewer notes for approve or reject.
type ReviewSubmissionRequest struct {
	Notes *string `json:"notes"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	Status   models.SubmissionStatus `form:"status"`
	Category string                  `form:"category"`
	Page     int                     `form:"page"`
	PageSize int                     `form:"page_size"`
}

// SubmissionAttachment is a stored file streamed back to staff.
type SubmissionAttachment struct {
	FileName    string
	ContentType string
	Data        []byte
}
