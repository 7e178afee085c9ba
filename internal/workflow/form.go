package workflow

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AttachmentSource opens the picked file's content. Sources are held in a
// side map so the draft itself stays serializable.
type AttachmentSource func() (io.ReadCloser, error)

// Previewer manages display resources for picked attachments. Acquire runs
// when a file is added; Release runs on remove and reset, exactly once per
// acquired preview.
type Previewer interface {
	Acquire(meta AttachmentMeta) (previewURL string, err error)
	Release(previewURL string)
}

type noopPreviewer struct{}

func (noopPreviewer) Acquire(AttachmentMeta) (string, error) { return "", nil }
func (noopPreviewer) Release(string)                         {}

// ErrTooManyFiles is returned by AddAttachment at the count limit.
var ErrTooManyFiles = errors.New("attachment limit reached")

// Form is the step-gated draft editor. Every mutation persists the draft
// through the store; persistence failures are logged and swallowed so a
// broken store never blocks the user from typing.
type Form struct {
	draft   *ComplaintDraft
	sources map[string]AttachmentSource
	store   DraftStore
	key     string
	preview Previewer
	log     *zap.Logger
}

// NewForm creates a form over a fresh draft. The key names the draft slot
// in the store, so several forms can coexist.
func NewForm(store DraftStore, key string, preview Previewer, log *zap.Logger) *Form {
	if preview == nil {
		preview = noopPreviewer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Form{
		draft:   NewDraft(),
		sources: make(map[string]AttachmentSource),
		store:   store,
		key:     key,
		preview: preview,
		log:     log,
	}
}

// Resume loads the stored draft if one exists. Attachment sources do not
// survive a restart, so stored attachment metadata is dropped on resume:
// the user re-picks files.
func (f *Form) Resume() bool {
	d, err := f.store.Load(f.key)
	if err != nil {
		return false
	}
	d.Attachments = nil
	f.draft = d
	return true
}

// Draft returns a copy of the current draft for rendering.
func (f *Form) Draft() ComplaintDraft {
	d := *f.draft
	d.Attachments = append([]AttachmentMeta(nil), f.draft.Attachments...)
	return d
}

// Step returns the current wizard position.
func (f *Form) Step() int { return f.draft.Step }

func (f *Form) persist() {
	f.draft.UpdatedAt = time.Now()
	if err := f.store.Save(f.key, f.draft); err != nil {
		f.log.Warn("draft save failed", zap.Error(err))
	}
}

// SetField assigns a named form field. Unknown fields are ignored so the
// form tolerates renamed UI inputs.
func (f *Form) SetField(field, value string) {
	switch field {
	case "fullName":
		f.draft.FullName = value
	case "email":
		f.draft.Email = value
	case "phoneNumber":
		f.draft.Phone = value
	case "type":
		f.draft.Type = value
	case "priority":
		f.draft.Priority = value
	case "description":
		f.draft.Description = value
	case "wardId":
		f.draft.WardID = value
		// sub-zone belongs to a ward; changing ward invalidates it
		f.draft.SubZoneID = ""
	case "subZoneId":
		f.draft.SubZoneID = value
	case "area":
		f.draft.Area = value
	case "landmark":
		f.draft.Landmark = value
	case "address":
		f.draft.Address = value
	case "latitude":
		f.draft.Latitude = parseCoord(value)
	case "longitude":
		f.draft.Longitude = parseCoord(value)
	}
}

func parseCoord(v string) *float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	fl, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &fl
}

// UpdateField merges one change, revalidates the current step, and persists
// the draft. The returned errors describe the current step only.
func (f *Form) UpdateField(field, value string) FieldErrors {
	f.SetField(field, value)
	f.persist()
	return ValidateStep(f.draft, f.draft.Step)
}

// ValidateCurrent runs the current step's rules without mutating anything.
func (f *Form) ValidateCurrent() FieldErrors {
	return ValidateStep(f.draft, f.draft.Step)
}

// Advance moves forward only when the current step validates. At the last
// step it is a no-op.
func (f *Form) Advance() FieldErrors {
	if es := ValidateStep(f.draft, f.draft.Step); len(es) > 0 {
		return es
	}
	f.draft.Step = clampStep(f.draft.Step + 1)
	f.persist()
	return nil
}

// Retreat moves back unconditionally. At the first step it is a no-op.
func (f *Form) Retreat() {
	f.draft.Step = clampStep(f.draft.Step - 1)
	f.persist()
}

// AddAttachment registers a picked file: limits are enforced at pick time,
// a preview resource is acquired, and the content source goes into the
// side map under a generated id.
func (f *Form) AddAttachment(fileName, mimeType string, sizeBytes int64, src AttachmentSource) (AttachmentMeta, error) {
	if len(f.draft.Attachments) >= MaxAttachments {
		return AttachmentMeta{}, ErrTooManyFiles
	}
	if !AllowedMimeTypes[strings.ToLower(mimeType)] {
		return AttachmentMeta{}, FieldError{"attachments", "unsupported type " + mimeType}
	}
	if sizeBytes > MaxAttachmentSize {
		return AttachmentMeta{}, FieldError{"attachments", "file exceeds 10MB"}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return AttachmentMeta{}, err
	}
	meta := AttachmentMeta{
		ID:        id.String(),
		FileName:  fileName,
		MimeType:  strings.ToLower(mimeType),
		SizeBytes: sizeBytes,
	}
	url, err := f.preview.Acquire(meta)
	if err != nil {
		return AttachmentMeta{}, err
	}
	meta.PreviewURL = url

	f.draft.Attachments = append(f.draft.Attachments, meta)
	f.sources[meta.ID] = src
	f.persist()
	return meta, nil
}

// RemoveAttachment drops the file and releases its preview. Removing an
// unknown id is a no-op.
func (f *Form) RemoveAttachment(id string) {
	for i, a := range f.draft.Attachments {
		if a.ID != id {
			continue
		}
		if a.PreviewURL != "" {
			f.preview.Release(a.PreviewURL)
		}
		f.draft.Attachments = append(f.draft.Attachments[:i], f.draft.Attachments[i+1:]...)
		delete(f.sources, id)
		f.persist()
		return
	}
}

// Attachments returns the current metadata, and Source resolves a binary
// handle by attachment id.
func (f *Form) Attachments() []AttachmentMeta {
	return append([]AttachmentMeta(nil), f.draft.Attachments...)
}

func (f *Form) Source(id string) (AttachmentSource, bool) {
	src, ok := f.sources[id]
	return src, ok
}

// Reset releases every preview, clears the stored draft, and starts over
// at the first step.
func (f *Form) Reset() {
	for _, a := range f.draft.Attachments {
		if a.PreviewURL != "" {
			f.preview.Release(a.PreviewURL)
		}
	}
	f.draft = NewDraft()
	f.sources = make(map[string]AttachmentSource)
	if err := f.store.Clear(f.key); err != nil {
		f.log.Warn("draft clear failed", zap.Error(err))
	}
}
