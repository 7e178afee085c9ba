package workflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrFlowActive rejects a second Begin while a verification flow is
	// already waiting on a code.
	ErrFlowActive = errors.New("verification flow already active")
	// ErrNoSession rejects Verify or Resend without a live session.
	ErrNoSession = errors.New("no active verification session")
)

// Session is the server-issued verification handle. Email comes back
// masked; the code never reaches the client.
type Session struct {
	ID          string
	MaskedEmail string
	ExpiresAt   time.Time
}

// BeginRequest is the reduced first-phase payload.
type BeginRequest struct {
	FullName      string
	Email         string
	Phone         string
	CaptchaID     string
	CaptchaAnswer string
}

// SourceResolver opens an attachment's content by its draft id.
type SourceResolver func(id string) (io.ReadCloser, error)

// VerifyRequest carries the code plus the full complaint payload.
type VerifyRequest struct {
	SessionID string
	Email     string
	Code      string
	Draft     ComplaintDraft
	Open      SourceResolver
}

// Outcome is a successful submission: the public tracking handle plus the
// issued token.
type Outcome struct {
	TrackingNumber string
	ComplaintID    string
	AccessToken    string
	IsNewUser      bool
}

// API is the portal surface the coordinator drives. internal/client
// implements it over HTTP.
type API interface {
	BeginGuest(ctx context.Context, in BeginRequest) (*Session, error)
	VerifyGuest(ctx context.Context, in VerifyRequest) (*Outcome, error)
	ResendOTP(ctx context.Context, email string) (*Session, error)
	SubmitComplaint(ctx context.Context, token string, draft ComplaintDraft, open SourceResolver) (*Outcome, error)
}

// Coordinator runs the submission flows over a Form: the guest two-phase
// OTP path and the authenticated direct path. At most one OTP flow is
// active at a time.
type Coordinator struct {
	api    API
	form   *Form
	tokens TokenStore
	log    *zap.Logger

	mu      sync.Mutex
	session *Session
	active  bool
	seq     uint64 // bumps on every session install; guards stale resends
}

// NewCoordinator wires the coordinator. tokens may be nil when the caller
// does not want the issued token persisted.
func NewCoordinator(api API, form *Form, tokens TokenStore, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{api: api, form: form, tokens: tokens, log: log}
}

// Restore installs a previously issued session, e.g. one persisted by a
// CLI between invocations. The flow becomes active.
func (c *Coordinator) Restore(s *Session) {
	c.mu.Lock()
	c.session = s
	c.active = true
	c.seq++
	c.mu.Unlock()
}

// Session returns the live verification session, if any.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Remaining reports how long the code countdown has left. Display only:
// the server enforces expiry on its own clock.
func (c *Coordinator) Remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	d := c.session.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// NormalizeCode strips everything but digits, so pasted codes with spaces
// or dashes still verify.
func NormalizeCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Coordinator) install(s *Session) {
	c.mu.Lock()
	c.session = s
	c.seq++
	c.mu.Unlock()
}

// Begin validates the whole draft and starts the OTP flow. A second Begin
// while a flow waits on a code fails with ErrFlowActive.
func (c *Coordinator) Begin(ctx context.Context, captchaID, captchaAnswer string) (*Session, error) {
	d := c.form.Draft()
	if es := ValidateStep(&d, StepSubmit); len(es) > 0 {
		return nil, es
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil, ErrFlowActive
	}
	c.active = true
	c.mu.Unlock()

	sess, err := c.api.BeginGuest(ctx, BeginRequest{
		FullName:      d.FullName,
		Email:         d.Email,
		Phone:         d.Phone,
		CaptchaID:     captchaID,
		CaptchaAnswer: captchaAnswer,
	})
	if err != nil {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return nil, err
	}
	c.install(sess)
	return sess, nil
}

// Verify submits the code with the full complaint payload. On success the
// token is persisted, the draft is reset, and the flow ends.
func (c *Coordinator) Verify(ctx context.Context, code string) (*Outcome, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}

	d := c.form.Draft()
	out, err := c.api.VerifyGuest(ctx, VerifyRequest{
		SessionID: sess.ID,
		Email:     d.Email,
		Code:      NormalizeCode(code),
		Draft:     d,
		Open: func(id string) (io.ReadCloser, error) {
			src, okSrc := c.form.Source(id)
			if !okSrc {
				return nil, errors.New("unknown attachment " + id)
			}
			return src()
		},
	})
	if err != nil {
		return nil, err
	}

	if c.tokens != nil {
		if terr := c.tokens.SaveToken(out.AccessToken); terr != nil {
			c.log.Warn("token save failed", zap.Error(terr))
		}
	}
	c.form.Reset()
	c.mu.Lock()
	c.session = nil
	c.active = false
	c.seq++
	c.mu.Unlock()
	return out, nil
}

// Resend asks for a fresh code on the live session. If a newer session was
// installed while the request was in flight, the stale response is
// discarded and the newer session wins.
func (c *Coordinator) Resend(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	email := c.form.Draft().Email
	before := c.seq
	c.mu.Unlock()

	sess, err := c.api.ResendOTP(ctx, email)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != before {
		// session changed underneath us; keep the newer one
		if c.session == nil {
			return nil, ErrNoSession
		}
		s := *c.session
		return &s, nil
	}
	c.session = sess
	c.seq++
	s := *sess
	return &s, nil
}

// Abort ends the flow without submitting. The draft survives so the user
// can start over from review.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	c.session = nil
	c.active = false
	c.seq++
	c.mu.Unlock()
}

// SubmitCitizen runs the authenticated direct path: no OTP, the stored
// token authorizes the create. The draft is reset on success.
func (c *Coordinator) SubmitCitizen(ctx context.Context) (*Outcome, error) {
	d := c.form.Draft()
	if es := ValidateStep(&d, StepSubmit); len(es) > 0 {
		return nil, es
	}
	var token string
	if c.tokens != nil {
		token, _ = c.tokens.LoadToken()
	}
	if token == "" {
		return nil, errors.New("not logged in")
	}
	out, err := c.api.SubmitComplaint(ctx, token, d, func(id string) (io.ReadCloser, error) {
		src, okSrc := c.form.Source(id)
		if !okSrc {
			return nil, errors.New("unknown attachment " + id)
		}
		return src()
	})
	if err != nil {
		return nil, err
	}
	c.form.Reset()
	return out, nil
}
