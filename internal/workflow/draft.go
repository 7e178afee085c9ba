// Package workflow implements the headless guest-submission form engine:
// a step-gated complaint draft, attachment bookkeeping with preview
// resources, and a coordinator running the OTP verification flow against
// the portal API.
package workflow

import (
	"time"
)

// Step indices of the submission wizard.
const (
	StepDetails     = 1
	StepLocation    = 2
	StepAttachments = 3
	StepReview      = 4
	StepSubmit      = 5

	MinStep = StepDetails
	MaxStep = StepSubmit
)

// AttachmentMeta describes a picked file. The binary handle lives in the
// form's side map, never in the draft, so the draft stays serializable.
type AttachmentMeta struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// ComplaintDraft is the in-progress submission. It round-trips through the
// DraftStore as JSON so an interrupted session can resume.
type ComplaintDraft struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phoneNumber"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`

	WardID    string   `json:"wardId"`
	SubZoneID string   `json:"subZoneId,omitempty"`
	Area      string   `json:"area"`
	Landmark  string   `json:"landmark,omitempty"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Attachments []AttachmentMeta `json:"attachments,omitempty"`

	Step      int       `json:"step"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDraft returns an empty draft positioned at the first step.
func NewDraft() *ComplaintDraft {
	return &ComplaintDraft{Step: MinStep}
}

// clampStep forces n into the valid step range.
func clampStep(n int) int {
	if n < MinStep {
		return MinStep
	}
	if n > MaxStep {
		return MaxStep
	}
	return n
}
