package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
	"github.com/openmunicipal/civicportal/internal/service"
)

const defaultPageSize = 20

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// handleAdminListUsers serves the user-management table.
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	f := repository.UserFilter{
		Role:   model.Role(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	users, total, err := s.admin.ListUsers(r.Context(), f)
	if err != nil {
		failErr(w, err)
		return
	}
	dtos := make([]userDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, toUserDTO(&users[i]))
	}
	ok(w, "", page[userDTO]{Items: dtos, Total: total})
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := s.admin.GetUser(r.Context(), id)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", toUserDTO(u))
}

type createUserRequest struct {
	FullName string     `json:"fullName"`
	Email    string     `json:"email"`
	Phone    string     `json:"phoneNumber"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	WardID   *uuid.UUID `json:"wardId"`
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	u, err := s.admin.CreateUser(r.Context(), service.CreateUserInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
		WardID:   req.WardID,
	})
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "user created", toUserDTO(u))
}

type updateUserRequest struct {
	FullName string     `json:"fullName"`
	Phone    string     `json:"phoneNumber"`
	Role     model.Role `json:"role"`
	WardID   *uuid.UUID `json:"wardId"`
	Active   bool       `json:"active"`
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	u, err := s.admin.UpdateUser(r.Context(), id, service.UpdateUserInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     req.Role,
		WardID:   req.WardID,
		Active:   req.Active,
	})
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "user updated", toUserDTO(u))
}

func (s *Server) handleAdminDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := s.admin.DeactivateUser(r.Context(), id); err != nil {
		failErr(w, err)
		return
	}
	ok(w, "user deactivated", nil)
}

// handleAdminListComplaints serves the triage table with filters.
func (s *Server) handleAdminListComplaints(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	f := repository.ComplaintFilter{
		Status: model.ComplaintStatus(r.URL.Query().Get("status")),
		Type:   model.ComplaintType(r.URL.Query().Get("type")),
		Limit:  limit,
		Offset: offset,
	}
	if v := r.URL.Query().Get("wardId"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			fail(w, http.StatusBadRequest, "invalid ward id")
			return
		}
		f.WardID = &id
	}
	cs, total, err := s.admin.ListComplaints(r.Context(), f)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", page[complaintDTO]{Items: toComplaintDTOs(cs), Total: total})
}

type updateStatusRequest struct {
	Status model.ComplaintStatus `json:"status"`
}

func (s *Server) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(r.PathValue("id"))
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid complaint id")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.admin.UpdateComplaintStatus(r.Context(), id, req.Status); err != nil {
		failErr(w, err)
		return
	}
	ok(w, "status updated", nil)
}

func (s *Server) handleAdminStatsOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.admin.StatsOverview(r.Context())
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", statsOverviewDTO{
		Total:            ov.Total,
		ByStatus:         ov.ByStatus,
		ByType:           ov.ByType,
		AvgResolutionHrs: ov.AvgResolutionHrs,
	})
}

func (s *Server) handleAdminStatsWards(w http.ResponseWriter, r *http.Request) {
	wards, err := s.admin.StatsByWard(r.Context())
	if err != nil {
		failErr(w, err)
		return
	}
	dtos := make([]wardStatsDTO, 0, len(wards))
	for _, ws := range wards {
		dtos = append(dtos, wardStatsDTO{
			WardID:     ws.WardID,
			WardNumber: ws.WardNumber,
			WardName:   ws.WardName,
			Total:      ws.Total,
			Open:       ws.Open,
			Resolved:   ws.Resolved,
		})
	}
	ok(w, "", dtos)
}

// handleAdminStatsExport streams the analytics workbook as a download.
func (s *Server) handleAdminStatsExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="complaint-stats-%s.xlsx"`, time.Now().Format("2006-01-02")))
	if err := s.admin.ExportStats(r.Context(), w); err != nil {
		// headers are already out; all we can do is log
		s.log.Error("stats export failed", zap.Error(err))
	}
}
