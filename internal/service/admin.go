package service

import (
	"context"
	"io"
	"strings"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/openmunicipal/civicportal/internal/crypto"
	"github.com/openmunicipal/civicportal/internal/export"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
)

// CreateUserInput is the admin user-creation payload.
type CreateUserInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
	Role     model.Role
	WardID   *uuid.UUID
}

// UpdateUserInput carries mutable profile fields.
type UpdateUserInput struct {
	FullName string
	Phone    string
	Role     model.Role
	WardID   *uuid.UUID
	Active   bool
}

// AdminService serves the admin user-management and analytics surface.
type AdminService interface {
	ListUsers(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error

	ListComplaints(ctx context.Context, f repository.ComplaintFilter) ([]model.Complaint, int64, error)
	UpdateComplaintStatus(ctx context.Context, id uuid.UUID, status model.ComplaintStatus) error

	StatsOverview(ctx context.Context) (*model.StatsOverview, error)
	StatsByWard(ctx context.Context) ([]model.WardStats, error)
	ExportStats(ctx context.Context, w io.Writer) error
}

type AdminServiceImpl struct {
	users      repository.UserRepository
	complaints repository.ComplaintRepository
	stats      repository.StatsRepository
}

// NewAdminService constructs AdminService.
func NewAdminService(users repository.UserRepository, complaints repository.ComplaintRepository, stats repository.StatsRepository) *AdminServiceImpl {
	return &AdminServiceImpl{users: users, complaints: complaints, stats: stats}
}

// ListUsers returns a filtered user page.
func (s *AdminServiceImpl) ListUsers(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	return s.users.List(ctx, f)
}

// GetUser loads a single account.
func (s *AdminServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser provisions an account with an admin-chosen password.
func (s *AdminServiceImpl) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	if err := validateContact(in.FullName, strings.ToLower(in.Email), in.Phone); err != nil {
		return nil, err
	}
	if len(in.Password) < 8 {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	switch in.Role {
	case model.RoleCitizen, model.RoleAdmin:
	default:
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:       uid,
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:    strings.TrimSpace(in.Phone),
		PwdHash:  pkgcrypto.HashPassword([]byte(in.Password), salt),
		SaltAuth: salt,
		Role:     in.Role,
		WardID:   in.WardID,
		Active:   true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser persists mutable profile fields.
func (s *AdminServiceImpl) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != "" {
		u.FullName = in.FullName
	}
	if in.Phone != "" {
		u.Phone = in.Phone
	}
	if in.Role != "" {
		switch in.Role {
		case model.RoleCitizen, model.RoleAdmin:
			u.Role = in.Role
		default:
			return nil, &ValidationError{Field: "role", Reason: "unknown role"}
		}
	}
	u.WardID = in.WardID
	u.Active = in.Active
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeactivateUser disables the account without removing history.
func (s *AdminServiceImpl) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Deactivate(ctx, id)
}

// ListComplaints returns a filtered complaint page.
func (s *AdminServiceImpl) ListComplaints(ctx context.Context, f repository.ComplaintFilter) ([]model.Complaint, int64, error) {
	return s.complaints.List(ctx, f)
}

// UpdateComplaintStatus validates and applies a status transition.
func (s *AdminServiceImpl) UpdateComplaintStatus(ctx context.Context, id uuid.UUID, status model.ComplaintStatus) error {
	switch status {
	case model.StatusRegistered, model.StatusInProgress, model.StatusResolved, model.StatusClosed, model.StatusReopened:
	default:
		return &ValidationError{Field: "status", Reason: "unknown status"}
	}
	return s.complaints.UpdateStatus(ctx, id, status)
}

// StatsOverview returns the dashboard rollup.
func (s *AdminServiceImpl) StatsOverview(ctx context.Context) (*model.StatsOverview, error) {
	return s.stats.Overview(ctx)
}

// StatsByWard returns per-ward rollups.
func (s *AdminServiceImpl) StatsByWard(ctx context.Context) ([]model.WardStats, error) {
	return s.stats.ByWard(ctx)
}

// ExportStats writes the analytics workbook to w.
func (s *AdminServiceImpl) ExportStats(ctx context.Context, w io.Writer) error {
	ov, err := s.stats.Overview(ctx)
	if err != nil {
		return err
	}
	wards, err := s.stats.ByWard(ctx)
	if err != nil {
		return err
	}
	return export.WriteStatsWorkbook(w, ov, wards)
}
