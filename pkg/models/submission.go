package models

import (
	"time"
)

// SubmissionKind identifies the form a submission came from
type SubmissionKind string

const (
	KindContact    SubmissionKind = "contact"
	KindNewsletter SubmissionKind = "newsletter"
)

// IsValid reports whether k is a known form
func (k SubmissionKind) IsValid() bool {
	return k == KindContact || k == KindNewsletter
}

// Submission is a stored contact message or newsletter sign-up
type Submission struct {
	ID         string         `json:"id" yaml:"id"`
	Kind       SubmissionKind `json:"kind" yaml:"kind"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Email      string         `json:"email" yaml:"email"`
	Subject    string         `json:"subject,omitempty" yaml:"subject,omitempty"`
	Message    string         `json:"message,omitempty" yaml:"message,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
}

// SubmissionRequest is the raw form payload
type SubmissionRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// SubmissionResponse is returned to the browser after a submission
type SubmissionResponse struct {
	OK      bool              `json:"ok"`
	Message string            `json:"message"`
	ID      string            `json:"id,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"` // field -> message
}
