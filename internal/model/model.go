// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the access level of a portal account.
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleAdmin   Role = "ADMIN"
)

// ComplaintType identifies the municipal department a complaint targets.
type ComplaintType string

const (
	TypeWaterSupply    ComplaintType = "WATER_SUPPLY"
	TypeElectricity    ComplaintType = "ELECTRICITY"
	TypeRoadRepair     ComplaintType = "ROAD_REPAIR"
	TypeGarbage        ComplaintType = "GARBAGE_COLLECTION"
	TypeStreetLighting ComplaintType = "STREET_LIGHTING"
	TypeSewerage       ComplaintType = "SEWERAGE"
	TypePublicHealth   ComplaintType = "PUBLIC_HEALTH"
	TypeOthers         ComplaintType = "OTHERS"
)

// ComplaintStatus tracks a complaint through its lifecycle.
type ComplaintStatus string

const (
	StatusRegistered ComplaintStatus = "REGISTERED"
	StatusInProgress ComplaintStatus = "IN_PROGRESS"
	StatusResolved   ComplaintStatus = "RESOLVED"
	StatusClosed     ComplaintStatus = "CLOSED"
	StatusReopened   ComplaintStatus = "REOPENED"
)

// Priority is the triage level assigned to a complaint.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics and client countdowns)
}

// User represents a portal account. Guest-submitted complaints provision a
// citizen account at OTP verification time.
type User struct {
	ID        uuid.UUID // PK
	FullName  string
	Email     string // unique, lowercase
	Phone     string
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	Role      Role
	WardID    *uuid.UUID // home ward, optional
	Active    bool
	CreatedAt time.Time
}

// Ward is an administrative subdivision complaints are routed by.
type Ward struct {
	ID       uuid.UUID
	Number   int
	Name     string
	SubZones []SubZone
}

// SubZone is a named area inside a ward.
type SubZone struct {
	ID     uuid.UUID
	WardID uuid.UUID
	Name   string
}

// Complaint is an activated citizen complaint. Guest submissions only become
// a Complaint after OTP verification succeeds; before that only a
// VerificationSession exists.
type Complaint struct {
	ID             uuid.UUID
	TrackingNumber string // public handle, e.g. CSC482913
	UserID         uuid.UUID
	Type           ComplaintType
	Status         ComplaintStatus
	Priority       Priority
	Description    string
	WardID         uuid.UUID
	SubZoneID      *uuid.UUID
	Area           string
	Landmark       string
	Address        string
	Latitude       *float64
	Longitude      *float64
	ContactName    string
	ContactEmail   string
	ContactPhone   string
	Attachments    []Attachment
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}

// Attachment is a stored complaint image. The binary lives in the blob store
// under StorageKey; the row carries only metadata.
type Attachment struct {
	ID          uuid.UUID
	ComplaintID uuid.UUID
	FileName    string
	MimeType    string
	SizeBytes   int64
	StorageKey  string
	CreatedAt   time.Time
}

// VerificationSession is a server-issued, short-lived, single-use session
// gating guest complaint activation on proof of email ownership.
type VerificationSession struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"` // lowercase, unmasked
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"` // 6 digits
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *VerificationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StatsOverview aggregates complaint counts for the admin dashboard.
type StatsOverview struct {
	Total            int64
	ByStatus         map[ComplaintStatus]int64
	ByType           map[ComplaintType]int64
	AvgResolutionHrs float64
}

// WardStats is a per-ward complaint rollup.
type WardStats struct {
	WardID     uuid.UUID
	WardNumber int
	WardName   string
	Total      int64
	Open       int64
	Resolved   int64
}
