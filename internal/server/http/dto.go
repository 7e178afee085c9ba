package httpapi

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/model"
)

// sessionDTO is returned by the guest begin and resend endpoints. Email is
// masked; the code never leaves the server.
type sessionDTO struct {
	SessionID string    `json:"sessionId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type userDTO struct {
	ID        uuid.UUID  `json:"id"`
	FullName  string     `json:"fullName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phoneNumber"`
	Role      model.Role `json:"role"`
	WardID    *uuid.UUID `json:"wardId,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		WardID:    u.WardID,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

type attachmentDTO struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
}

type complaintDTO struct {
	ID             uuid.UUID             `json:"id"`
	TrackingNumber string                `json:"trackingNumber"`
	Type           model.ComplaintType   `json:"type"`
	Status         model.ComplaintStatus `json:"status"`
	Priority       model.Priority        `json:"priority"`
	Description    string                `json:"description"`
	WardID         uuid.UUID             `json:"wardId"`
	SubZoneID      *uuid.UUID            `json:"subZoneId,omitempty"`
	Area           string                `json:"area"`
	Landmark       string                `json:"landmark,omitempty"`
	Address        string                `json:"address,omitempty"`
	Latitude       *float64              `json:"latitude,omitempty"`
	Longitude      *float64              `json:"longitude,omitempty"`
	ContactName    string                `json:"contactName"`
	ContactEmail   string                `json:"contactEmail"`
	ContactPhone   string                `json:"contactPhone"`
	Attachments    []attachmentDTO       `json:"attachments"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	ResolvedAt     *time.Time            `json:"resolvedAt,omitempty"`
}

func toComplaintDTO(c *model.Complaint) complaintDTO {
	atts := make([]attachmentDTO, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		atts = append(atts, attachmentDTO{
			ID:        a.ID,
			FileName:  a.FileName,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
		})
	}
	return complaintDTO{
		ID:             c.ID,
		TrackingNumber: c.TrackingNumber,
		Type:           c.Type,
		Status:         c.Status,
		Priority:       c.Priority,
		Description:    c.Description,
		WardID:         c.WardID,
		SubZoneID:      c.SubZoneID,
		Area:           c.Area,
		Landmark:       c.Landmark,
		Address:        c.Address,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		ContactName:    c.ContactName,
		ContactEmail:   c.ContactEmail,
		ContactPhone:   c.ContactPhone,
		Attachments:    atts,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		ResolvedAt:     c.ResolvedAt,
	}
}

func toComplaintDTOs(cs []model.Complaint) []complaintDTO {
	out := make([]complaintDTO, 0, len(cs))
	for i := range cs {
		out = append(out, toComplaintDTO(&cs[i]))
	}
	return out
}

// trackingDTO is the public tracking view: no contact details, no internal
// IDs beyond what the status page renders.
type trackingDTO struct {
	TrackingNumber string                `json:"trackingNumber"`
	Type           model.ComplaintType   `json:"type"`
	Status         model.ComplaintStatus `json:"status"`
	Description    string                `json:"description"`
	Area           string                `json:"area"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	ResolvedAt     *time.Time            `json:"resolvedAt,omitempty"`
}

func toTrackingDTO(c *model.Complaint) trackingDTO {
	return trackingDTO{
		TrackingNumber: c.TrackingNumber,
		Type:           c.Type,
		Status:         c.Status,
		Description:    c.Description,
		Area:           c.Area,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		ResolvedAt:     c.ResolvedAt,
	}
}

type subZoneDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type wardDTO struct {
	ID       uuid.UUID    `json:"id"`
	Number   int          `json:"number"`
	Name     string       `json:"name"`
	SubZones []subZoneDTO `json:"subZones"`
}

func toWardDTOs(wards []model.Ward) []wardDTO {
	out := make([]wardDTO, 0, len(wards))
	for _, w := range wards {
		zones := make([]subZoneDTO, 0, len(w.SubZones))
		for _, z := range w.SubZones {
			zones = append(zones, subZoneDTO{ID: z.ID, Name: z.Name})
		}
		out = append(out, wardDTO{ID: w.ID, Number: w.Number, Name: w.Name, SubZones: zones})
	}
	return out
}

type statsOverviewDTO struct {
	Total            int64                           `json:"total"`
	ByStatus         map[model.ComplaintStatus]int64 `json:"byStatus"`
	ByType           map[model.ComplaintType]int64   `json:"byType"`
	AvgResolutionHrs float64                         `json:"avgResolutionHours"`
}

type wardStatsDTO struct {
	WardID     uuid.UUID `json:"wardId"`
	WardNumber int       `json:"wardNumber"`
	WardName   string    `json:"wardName"`
	Total      int64     `json:"total"`
	Open       int64     `json:"open"`
	Resolved   int64     `json:"resolved"`
}

// page wraps list responses with the unfiltered match total.
type page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}
