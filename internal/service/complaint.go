package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/openmunicipal/civicportal/internal/crypto"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
	"github.com/openmunicipal/civicportal/internal/storage"
)

// Attachment limits shared by client and server validation.
const (
	MaxAttachments    = 5
	MaxAttachmentSize = 10 << 20 // 10MB
)

// AllowedAttachmentTypes is the image MIME allow-list for complaint uploads.
var AllowedAttachmentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// AttachmentInput is an uploaded file pending validation and storage.
type AttachmentInput struct {
	FileName string
	MimeType string
	Size     int64
	Data     io.Reader
}

// ComplaintInput carries the full complaint payload from either flow.
type ComplaintInput struct {
	Type        model.ComplaintType
	Priority    model.Priority
	Description string
	WardID      uuid.UUID
	SubZoneID   *uuid.UUID
	Area        string
	Landmark    string
	Address     string
	Latitude    *float64
	Longitude   *float64
	Attachments []AttachmentInput
}

// ValidationError reports a per-field validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// validateComplaintInput mirrors the client-side step rules server-side:
// ward and area are mandatory, landmark/address/coordinates optional.
func validateComplaintInput(in *ComplaintInput) error {
	if in.Type == "" {
		return &ValidationError{Field: "type", Reason: "required"}
	}
	if len(strings.TrimSpace(in.Description)) < 10 {
		return &ValidationError{Field: "description", Reason: "must be at least 10 characters"}
	}
	if in.WardID == uuid.Nil {
		return &ValidationError{Field: "wardId", Reason: "required"}
	}
	if strings.TrimSpace(in.Area) == "" {
		return &ValidationError{Field: "area", Reason: "required"}
	}
	if len(in.Attachments) > MaxAttachments {
		return &ValidationError{Field: "attachments", Reason: fmt.Sprintf("at most %d files", MaxAttachments)}
	}
	for _, a := range in.Attachments {
		if !AllowedAttachmentTypes[strings.ToLower(a.MimeType)] {
			return &ValidationError{Field: "attachments", Reason: fmt.Sprintf("unsupported type %s", a.MimeType)}
		}
		if a.Size > MaxAttachmentSize {
			return &ValidationError{Field: "attachments", Reason: "file exceeds 10MB"}
		}
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	return nil
}

// newTrackingNumber generates the public complaint handle, e.g. CSC482913.
func newTrackingNumber() (string, error) {
	digits, err := pkgcrypto.RandDigits(6)
	if err != nil {
		return "", err
	}
	return "CSC" + digits, nil
}

// saveAttachments streams validated uploads into the blob store and returns
// their metadata rows. The size limit is enforced on the actual stream, not
// just the declared size.
func saveAttachments(ctx context.Context, blobs storage.BlobStore, complaintID uuid.UUID, ins []AttachmentInput) ([]model.Attachment, error) {
	var out []model.Attachment
	for _, in := range ins {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("att/%s/%s", complaintID, id)
		n, err := blobs.Save(ctx, key, io.LimitReader(in.Data, MaxAttachmentSize+1))
		if err != nil {
			removeBlobs(ctx, blobs, out)
			return nil, err
		}
		if n > MaxAttachmentSize {
			_ = blobs.Remove(ctx, key)
			removeBlobs(ctx, blobs, out)
			return nil, &ValidationError{Field: "attachments", Reason: "file exceeds 10MB"}
		}
		out = append(out, model.Attachment{
			ID:          id,
			ComplaintID: complaintID,
			FileName:    in.FileName,
			MimeType:    strings.ToLower(in.MimeType),
			SizeBytes:   n,
			StorageKey:  key,
		})
	}
	return out, nil
}

// removeBlobs is best-effort cleanup of stored attachments when the
// complaint itself never makes it to the database.
func removeBlobs(ctx context.Context, blobs storage.BlobStore, atts []model.Attachment) {
	for _, a := range atts {
		_ = blobs.Remove(ctx, a.StorageKey)
	}
}

// ComplaintService serves citizen complaint operations and public tracking.
type ComplaintService interface {
	// Create registers a complaint directly for an authenticated citizen.
	Create(ctx context.Context, userID uuid.UUID, in ComplaintInput) (*model.Complaint, error)
	// ListByUser returns the citizen's own complaints.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Complaint, error)
	// Track returns a complaint by public tracking number.
	Track(ctx context.Context, trackingNumber string) (*model.Complaint, error)
	// Wards returns the ward/sub-zone reference list.
	Wards(ctx context.Context) ([]model.Ward, error)
}

type ComplaintServiceImpl struct {
	complaints repository.ComplaintRepository
	users      repository.UserRepository
	wards      repository.WardRepository
	blobs      storage.BlobStore
}

// NewComplaintService constructs ComplaintService.
func NewComplaintService(
	complaints repository.ComplaintRepository,
	users repository.UserRepository,
	wards repository.WardRepository,
	blobs storage.BlobStore,
) *ComplaintServiceImpl {
	return &ComplaintServiceImpl{complaints: complaints, users: users, wards: wards, blobs: blobs}
}

// Create validates input, stores attachments, and registers the complaint
// under the authenticated citizen. No verification step on this path.
func (s *ComplaintServiceImpl) Create(ctx context.Context, userID uuid.UUID, in ComplaintInput) (*model.Complaint, error) {
	if err := validateComplaintInput(&in); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	tracking, err := newTrackingNumber()
	if err != nil {
		return nil, err
	}
	atts, err := saveAttachments(ctx, s.blobs, id, in.Attachments)
	if err != nil {
		return nil, err
	}

	c := &model.Complaint{
		ID:             id,
		TrackingNumber: tracking,
		UserID:         u.ID,
		Type:           in.Type,
		Status:         model.StatusRegistered,
		Priority:       in.Priority,
		Description:    in.Description,
		WardID:         in.WardID,
		SubZoneID:      in.SubZoneID,
		Area:           in.Area,
		Landmark:       in.Landmark,
		Address:        in.Address,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		ContactName:    u.FullName,
		ContactEmail:   u.Email,
		ContactPhone:   u.Phone,
		Attachments:    atts,
	}
	if err := s.complaints.Create(ctx, c); err != nil {
		removeBlobs(ctx, s.blobs, atts)
		return nil, err
	}
	return c, nil
}

// ListByUser returns the citizen's own complaints.
func (s *ComplaintServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Complaint, error) {
	return s.complaints.ListByUser(ctx, userID)
}

// Track returns a complaint by public tracking number.
func (s *ComplaintServiceImpl) Track(ctx context.Context, trackingNumber string) (*model.Complaint, error) {
	return s.complaints.GetByTracking(ctx, strings.ToUpper(strings.TrimSpace(trackingNumber)))
}

// Wards returns the ward/sub-zone reference list.
func (s *ComplaintServiceImpl) Wards(ctx context.Context) ([]model.Ward, error) {
	return s.wards.ListWithSubZones(ctx)
}
