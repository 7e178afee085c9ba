package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/model"
)

// ComplaintFilter narrows admin complaint listings.
type ComplaintFilter struct {
	Status model.ComplaintStatus // empty = all
	Type   model.ComplaintType   // empty = all
	WardID *uuid.UUID
	Limit  int
	Offset int
}

// ComplaintRepository provides access to activated complaints.
type ComplaintRepository interface {
	// Create inserts a complaint and its attachment rows in one transaction.
	Create(ctx context.Context, c *model.Complaint) error
	// GetByID loads a complaint with attachments.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Complaint, error)
	// GetByTracking loads a complaint by its public tracking number.
	GetByTracking(ctx context.Context, trackingNumber string) (*model.Complaint, error)
	// ListByUser returns a user's complaints, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Complaint, error)
	// List returns complaints matching the filter plus the total match count.
	List(ctx context.Context, f ComplaintFilter) ([]model.Complaint, int64, error)
	// UpdateStatus transitions a complaint and stamps resolved_at when
	// entering RESOLVED.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ComplaintStatus) error
}

// StatsRepository serves admin analytics rollups.
type StatsRepository interface {
	// Overview returns global complaint counts and average resolution time.
	Overview(ctx context.Context) (*model.StatsOverview, error)
	// ByWard returns per-ward complaint rollups ordered by ward number.
	ByWard(ctx context.Context) ([]model.WardStats, error)
}

// WardRepository serves the ward/sub-zone reference data.
type WardRepository interface {
	// ListWithSubZones returns all wards with embedded sub-zones, by number.
	ListWithSubZones(ctx context.Context) ([]model.Ward, error)
	// GetByID loads a single ward (without sub-zones).
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ward, error)
}
