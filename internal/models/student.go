package models

import "time"

// Student represents a learner record, created inactive by the admission pathway.
type Student struct {
	ID              string     `db:"id" json:"id"`
	AdmissionNumber string     `db:"admission_number" json:"admission_number"`
	FullName        string     `db:"full_name" json:"full_name"`
	DateOfBirth     time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender          string     `db:"gender" json:"gender"`
	Address         *string    `db:"address" json:"address,omitempty"`
	City            *string    `db:"city" json:"city,omitempty"`
	Nationality     *string    `db:"nationality" json:"nationality,omitempty"`
	EnrollmentDate  *time.Time `db:"enrollment_date" json:"enrollment_date,omitempty"`
	CurrentGrade    string     `db:"current_grade" json:"current_grade"`
	Active          bool       `db:"active" json:"active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Parent is a guardian contact for a student.
type Parent struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Relationship string    `db:"relationship" json:"relationship"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	IsPrimary    bool      `db:"is_primary" json:"is_primary"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
