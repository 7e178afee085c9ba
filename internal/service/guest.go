package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/openmunicipal/civicportal/internal/crypto"
	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/limiter"
	"github.com/openmunicipal/civicportal/internal/mail"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
	"github.com/openmunicipal/civicportal/internal/session"
	"github.com/openmunicipal/civicportal/internal/storage"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[+]?[\d\s\-()]{8,20}$`)
)

// CaptchaVerifier checks an anti-automation challenge answer.
type CaptchaVerifier interface {
	Verify(ctx context.Context, id, answer string) error
}

// BeginGuestInput is the reduced first-phase payload: contact fields and the
// captcha answer only. The full complaint travels with verification.
type BeginGuestInput struct {
	FullName      string
	Email         string
	Phone         string
	CaptchaID     string
	CaptchaAnswer string
	IP            string
}

// BeginGuestResult describes the issued verification session. Email is
// masked for display.
type BeginGuestResult struct {
	SessionID string
	Email     string
	ExpiresAt time.Time
}

// VerifyGuestInput carries the code plus the full complaint payload.
type VerifyGuestInput struct {
	SessionID string
	Email     string
	Code      string
	IP        string
	Complaint ComplaintInput
}

// VerifyGuestResult is the activated outcome: account, token, complaint.
type VerifyGuestResult struct {
	User      model.User
	Tokens    model.Tokens
	Complaint model.Complaint
	IsNewUser bool
}

// GuestService runs the two-phase OTP-gated guest submission flow. No
// complaint row exists until Verify succeeds.
type GuestService interface {
	// Begin validates contact fields and the captcha, issues a single-use
	// verification session, and emails the code.
	Begin(ctx context.Context, in BeginGuestInput) (*BeginGuestResult, error)
	// Verify checks the code, provisions a citizen account if needed,
	// activates the complaint, and issues an access token.
	Verify(ctx context.Context, in VerifyGuestInput) (*VerifyGuestResult, error)
	// Resend issues a fresh code and expiry on the session bound to the
	// email. Complaint data is never touched.
	Resend(ctx context.Context, email, ip string) (*BeginGuestResult, error)
}

type GuestServiceImpl struct {
	users       repository.UserRepository
	complaints  repository.ComplaintRepository
	sessions    session.Store
	captcha     CaptchaVerifier
	sender      mail.Sender
	blobs       storage.BlobStore
	lim         limiter.Limiter
	signKey     []byte
	accessTTL   time.Duration
	otpTTL      time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewGuestService constructs GuestService with required dependencies.
func NewGuestService(
	users repository.UserRepository,
	complaints repository.ComplaintRepository,
	sessions session.Store,
	captcha CaptchaVerifier,
	sender mail.Sender,
	blobs storage.BlobStore,
	lim limiter.Limiter,
	signKey []byte,
	accessTTL, otpTTL time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) *GuestServiceImpl {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &GuestServiceImpl{
		users: users, complaints: complaints, sessions: sessions,
		captcha: captcha, sender: sender, blobs: blobs, lim: lim,
		signKey: signKey, accessTTL: accessTTL, otpTTL: otpTTL,
		maxAttempts: maxAttempts, logger: logger,
	}
}

func validateContact(fullName, email, phone string) error {
	if strings.TrimSpace(fullName) == "" {
		return &ValidationError{Field: "fullName", Reason: "required"}
	}
	if !emailRe.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "invalid format"}
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if !phoneRe.MatchString(phone) || digits < 8 {
		return &ValidationError{Field: "phoneNumber", Reason: "at least 8 digits"}
	}
	return nil
}

// Begin issues a verification session after captcha and rate-limit checks.
func (s *GuestServiceImpl) Begin(ctx context.Context, in BeginGuestInput) (*BeginGuestResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateContact(in.FullName, email, in.Phone); err != nil {
		return nil, err
	}
	if err := s.captcha.Verify(ctx, in.CaptchaID, in.CaptchaAnswer); err != nil {
		return nil, err
	}

	ipHash := limiter.HashIP(in.IP)
	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	code, err := pkgcrypto.RandDigits(6)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &model.VerificationSession{
		ID:        id.String(),
		Email:     email,
		FullName:  strings.TrimSpace(in.FullName),
		Phone:     strings.TrimSpace(in.Phone),
		Code:      code,
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Save(ctx, sess, s.otpTTL); err != nil {
		return nil, err
	}
	if err := s.sender.SendOTP(ctx, email, code, sess.ExpiresAt); err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, err
	}

	// Each send counts toward the (email, ip) send cap.
	if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
		s.logger.Warn("otp send cap reached", zap.String("email", MaskEmail(email)))
	}

	s.logger.Info("verification session issued",
		zap.String("session_id", sess.ID),
		zap.String("email", MaskEmail(email)),
	)
	return &BeginGuestResult{SessionID: sess.ID, Email: MaskEmail(email), ExpiresAt: sess.ExpiresAt}, nil
}

// Verify consumes the session on success; on code mismatch the attempt
// counter is bumped and the session survives until the cap.
func (s *GuestServiceImpl) Verify(ctx context.Context, in VerifyGuestInput) (*VerifyGuestResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	sess, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if sess.Expired(now) || sess.Email != email {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, errs.ErrSessionExpired
	}

	if !pkgcrypto.EqualCodes(sess.Code, in.Code) {
		sess.Attempts++
		if sess.Attempts >= s.maxAttempts {
			_ = s.sessions.Delete(ctx, sess.ID)
			return nil, errs.ErrTooManyAttempts
		}
		_ = s.sessions.Save(ctx, sess, time.Until(sess.ExpiresAt))
		return nil, errs.ErrCodeMismatch
	}

	if err := validateComplaintInput(&in.Complaint); err != nil {
		return nil, err
	}

	u, isNew, err := s.findOrProvisionUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	complaintID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	tracking, err := newTrackingNumber()
	if err != nil {
		return nil, err
	}
	atts, err := saveAttachments(ctx, s.blobs, complaintID, in.Complaint.Attachments)
	if err != nil {
		return nil, err
	}
	c := &model.Complaint{
		ID:             complaintID,
		TrackingNumber: tracking,
		UserID:         u.ID,
		Type:           in.Complaint.Type,
		Status:         model.StatusRegistered,
		Priority:       in.Complaint.Priority,
		Description:    in.Complaint.Description,
		WardID:         in.Complaint.WardID,
		SubZoneID:      in.Complaint.SubZoneID,
		Area:           in.Complaint.Area,
		Landmark:       in.Complaint.Landmark,
		Address:        in.Complaint.Address,
		Latitude:       in.Complaint.Latitude,
		Longitude:      in.Complaint.Longitude,
		ContactName:    sess.FullName,
		ContactEmail:   sess.Email,
		ContactPhone:   sess.Phone,
		Attachments:    atts,
	}
	if err := s.complaints.Create(ctx, c); err != nil {
		removeBlobs(ctx, s.blobs, atts)
		return nil, err
	}

	// Single-use: the session is gone once verification succeeds.
	_ = s.sessions.Delete(ctx, sess.ID)
	_ = s.lim.Success(ctx, email, limiter.HashIP(in.IP))

	access, exp, err := IssueAccessToken(s.signKey, u.ID, u.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("guest complaint activated",
		zap.String("tracking_number", c.TrackingNumber),
		zap.Bool("new_user", isNew),
	)
	return &VerifyGuestResult{
		User:      *u,
		Tokens:    model.Tokens{AccessToken: access, ExpiresAt: exp},
		Complaint: *c,
		IsNewUser: isNew,
	}, nil
}

// findOrProvisionUser reuses an existing account for the verified email or
// creates a citizen account with a random password. The owner can reset it
// later through the ordinary forgot-password flow.
func (s *GuestServiceImpl) findOrProvisionUser(ctx context.Context, sess *model.VerificationSession) (*model.User, bool, error) {
	if u, err := s.users.GetByEmail(ctx, sess.Email); err == nil {
		return u, false, nil
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return nil, false, err
	}
	pw, err := pkgcrypto.RandBytes(24)
	if err != nil {
		return nil, false, err
	}
	u := &model.User{
		ID:       uid,
		FullName: sess.FullName,
		Email:    sess.Email,
		Phone:    sess.Phone,
		PwdHash:  pkgcrypto.HashPassword(pw, salt),
		SaltAuth: salt,
		Role:     model.RoleCitizen,
		Active:   true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// Resend issues a fresh code and expiry on the existing session. The
// session keeps its ID; attempts reset with the new code.
func (s *GuestServiceImpl) Resend(ctx context.Context, email, ip string) (*BeginGuestResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	sess, err := s.sessions.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := pkgcrypto.RandDigits(6)
	if err != nil {
		return nil, err
	}
	sess.Code = code
	sess.Attempts = 0
	sess.ExpiresAt = time.Now().Add(s.otpTTL)
	if err := s.sessions.Save(ctx, sess, s.otpTTL); err != nil {
		return nil, err
	}
	if err := s.sender.SendOTP(ctx, email, code, sess.ExpiresAt); err != nil {
		return nil, err
	}
	if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
		s.logger.Warn("otp send cap reached", zap.String("email", MaskEmail(email)))
	}

	return &BeginGuestResult{SessionID: sess.ID, Email: MaskEmail(email), ExpiresAt: sess.ExpiresAt}, nil
}
