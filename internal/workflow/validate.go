package workflow

import (
	"regexp"
	"strings"
)

// Attachment limits mirrored from the server contract.
const (
	MaxAttachments    = 5
	MaxAttachmentSize = 10 << 20
)

// AllowedMimeTypes is the image allow-list for complaint uploads.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError is a per-field validation failure keyed by the form field name.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Reason }

// FieldErrors collects a step's failures so the UI can mark every invalid
// field at once.
type FieldErrors []FieldError

func (es FieldErrors) Error() string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether the given field failed.
func (es FieldErrors) Has(field string) bool {
	for _, e := range es {
		if e.Field == field {
			return true
		}
	}
	return false
}

func phoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func validDetails(d *ComplaintDraft) FieldErrors {
	var es FieldErrors
	if strings.TrimSpace(d.FullName) == "" {
		es = append(es, FieldError{"fullName", "required"})
	}
	if !emailRe.MatchString(strings.TrimSpace(d.Email)) {
		es = append(es, FieldError{"email", "invalid format"})
	}
	if phoneDigits(d.Phone) < 8 {
		es = append(es, FieldError{"phoneNumber", "at least 8 digits"})
	}
	if strings.TrimSpace(d.Type) == "" {
		es = append(es, FieldError{"type", "required"})
	}
	if len(strings.TrimSpace(d.Description)) < 10 {
		es = append(es, FieldError{"description", "must be at least 10 characters"})
	}
	return es
}

func validLocation(d *ComplaintDraft) FieldErrors {
	var es FieldErrors
	if strings.TrimSpace(d.WardID) == "" {
		es = append(es, FieldError{"wardId", "required"})
	}
	if strings.TrimSpace(d.Area) == "" {
		es = append(es, FieldError{"area", "required"})
	}
	return es
}

func validAttachments(d *ComplaintDraft) FieldErrors {
	var es FieldErrors
	if len(d.Attachments) > MaxAttachments {
		es = append(es, FieldError{"attachments", "at most 5 files"})
	}
	for _, a := range d.Attachments {
		if !AllowedMimeTypes[strings.ToLower(a.MimeType)] {
			es = append(es, FieldError{"attachments", "unsupported type " + a.MimeType})
			break
		}
		if a.SizeBytes > MaxAttachmentSize {
			es = append(es, FieldError{"attachments", "file exceeds 10MB"})
			break
		}
	}
	return es
}

// ValidateStep runs the rules for one step. Review and submit revalidate
// everything that came before, so a draft edited out from under the wizard
// cannot slip through.
func ValidateStep(d *ComplaintDraft, step int) FieldErrors {
	switch clampStep(step) {
	case StepDetails:
		return validDetails(d)
	case StepLocation:
		return validLocation(d)
	case StepAttachments:
		return validAttachments(d)
	default: // review, submit
		var es FieldErrors
		es = append(es, validDetails(d)...)
		es = append(es, validLocation(d)...)
		es = append(es, validAttachments(d)...)
		return es
	}
}
