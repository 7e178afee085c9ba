package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/openmunicipal/civicportal/internal/captcha"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/service"
)

// CaptchaGenerator issues challenges for the guest submission form.
type CaptchaGenerator interface {
	Generate(ctx context.Context) (*captcha.Challenge, error)
}

// Server wires portal services onto the REST surface.
type Server struct {
	guest      service.GuestService
	auth       service.AuthService
	complaints service.ComplaintService
	admin      service.AdminService
	captcha    CaptchaGenerator
	signKey    []byte
	log        *zap.Logger
}

// New constructs the API server.
func New(
	guest service.GuestService,
	auth service.AuthService,
	complaints service.ComplaintService,
	admin service.AdminService,
	cap CaptchaGenerator,
	signKey []byte,
	log *zap.Logger,
) *Server {
	return &Server{
		guest:      guest,
		auth:       auth,
		complaints: complaints,
		admin:      admin,
		captcha:    cap,
		signKey:    signKey,
		log:        log,
	}
}

// Handler builds the routed handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// public
	mux.HandleFunc("GET /api/captcha/generate", s.handleCaptcha)
	mux.HandleFunc("POST /api/guest/complaint", s.handleGuestBegin)
	mux.HandleFunc("POST /api/guest/verify-otp", s.handleGuestVerify)
	mux.HandleFunc("POST /api/guest/resend-otp", s.handleGuestResend)
	mux.HandleFunc("GET /api/guest/track/{trackingNumber}", s.handleTrack)
	mux.HandleFunc("GET /api/guest/wards", s.handleWards)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// authenticated citizen
	mux.HandleFunc("GET /api/complaints", RequireAuth(s.signKey, s.handleMyComplaints))
	mux.HandleFunc("POST /api/complaints", RequireAuth(s.signKey, s.handleCreateComplaint))

	// admin
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return RequireRole(s.signKey, model.RoleAdmin, h)
	}
	mux.HandleFunc("GET /api/admin/users", admin(s.handleAdminListUsers))
	mux.HandleFunc("POST /api/admin/users", admin(s.handleAdminCreateUser))
	mux.HandleFunc("GET /api/admin/users/{id}", admin(s.handleAdminGetUser))
	mux.HandleFunc("PUT /api/admin/users/{id}", admin(s.handleAdminUpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}", admin(s.handleAdminDeactivateUser))
	mux.HandleFunc("GET /api/admin/complaints", admin(s.handleAdminListComplaints))
	mux.HandleFunc("PUT /api/admin/complaints/{id}/status", admin(s.handleAdminUpdateStatus))
	mux.HandleFunc("GET /api/admin/stats/overview", admin(s.handleAdminStatsOverview))
	mux.HandleFunc("GET /api/admin/stats/wards", admin(s.handleAdminStatsWards))
	mux.HandleFunc("GET /api/admin/stats/export", admin(s.handleAdminStatsExport))

	return Recover(s.log, Logging(s.log, mux))
}
