package client

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openmunicipal/civicportal/internal/captcha"
	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
	httpapi "github.com/openmunicipal/civicportal/internal/server/http"
	"github.com/openmunicipal/civicportal/internal/service"
	"github.com/openmunicipal/civicportal/internal/workflow"
)

var testSignKey = []byte("0123456789abcdef0123456789abcdef")

// scriptedGuest behaves per the OTP contract with a fixed code, so the
// whole client-side flow can run against real handlers.
type scriptedGuest struct {
	code       string
	session    string
	email      string
	attempts   int
	verifiedIn *service.VerifyGuestInput
}

func (g *scriptedGuest) Begin(_ context.Context, in service.BeginGuestInput) (*service.BeginGuestResult, error) {
	g.email = in.Email
	return &service.BeginGuestResult{
		SessionID: g.session,
		Email:     service.MaskEmail(in.Email),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, nil
}

func (g *scriptedGuest) Verify(_ context.Context, in service.VerifyGuestInput) (*service.VerifyGuestResult, error) {
	if in.SessionID != g.session {
		return nil, errs.ErrSessionExpired
	}
	if in.Code != g.code {
		g.attempts++
		return nil, errs.ErrCodeMismatch
	}
	g.verifiedIn = &in
	uid := uuid.Must(uuid.NewV4())
	tok, exp, err := service.IssueAccessToken(testSignKey, uid, model.RoleCitizen, time.Hour)
	if err != nil {
		return nil, err
	}
	return &service.VerifyGuestResult{
		User:   model.User{ID: uid, Email: in.Email, Role: model.RoleCitizen},
		Tokens: model.Tokens{AccessToken: tok, ExpiresAt: exp},
		Complaint: model.Complaint{
			ID:             uuid.Must(uuid.NewV4()),
			TrackingNumber: "CSC482913",
			Status:         model.StatusRegistered,
		},
		IsNewUser: true,
	}, nil
}

func (g *scriptedGuest) Resend(_ context.Context, email, _ string) (*service.BeginGuestResult, error) {
	if email != g.email {
		return nil, errs.ErrSessionExpired
	}
	return &service.BeginGuestResult{
		SessionID: g.session,
		Email:     service.MaskEmail(email),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, nil
}

type stubComplaints struct {
	tracked *model.Complaint
	mine    []model.Complaint
}

func (s *stubComplaints) Create(_ context.Context, _ uuid.UUID, _ service.ComplaintInput) (*model.Complaint, error) {
	return &model.Complaint{ID: uuid.Must(uuid.NewV4()), TrackingNumber: "CSC111111"}, nil
}

func (s *stubComplaints) ListByUser(context.Context, uuid.UUID) ([]model.Complaint, error) {
	return s.mine, nil
}

func (s *stubComplaints) Track(_ context.Context, tn string) (*model.Complaint, error) {
	if s.tracked == nil || s.tracked.TrackingNumber != tn {
		return nil, errs.ErrNotFound
	}
	return s.tracked, nil
}

func (s *stubComplaints) Wards(context.Context) ([]model.Ward, error) {
	wid := uuid.Must(uuid.NewV4())
	return []model.Ward{{ID: wid, Number: 1, Name: "North Ward",
		SubZones: []model.SubZone{{ID: uuid.Must(uuid.NewV4()), WardID: wid, Name: "Old Town"}}}}, nil
}

type stubAuth struct{}

func (stubAuth) LoginWithIP(_ context.Context, email, password, _ string) (model.Tokens, model.User, error) {
	if password != "secret123" {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	uid := uuid.Must(uuid.NewV4())
	tok, exp, err := service.IssueAccessToken(testSignKey, uid, model.RoleCitizen, time.Hour)
	return model.Tokens{AccessToken: tok, ExpiresAt: exp}, model.User{ID: uid, Email: email}, err
}

type stubAdmin struct{}

func (stubAdmin) ListUsers(context.Context, repository.UserFilter) ([]model.User, int64, error) {
	return nil, 0, nil
}
func (stubAdmin) GetUser(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errs.ErrNotFound
}
func (stubAdmin) CreateUser(context.Context, service.CreateUserInput) (*model.User, error) {
	return nil, errs.ErrForbidden
}
func (stubAdmin) UpdateUser(context.Context, uuid.UUID, service.UpdateUserInput) (*model.User, error) {
	return nil, errs.ErrForbidden
}
func (stubAdmin) DeactivateUser(context.Context, uuid.UUID) error { return nil }
func (stubAdmin) ListComplaints(context.Context, repository.ComplaintFilter) ([]model.Complaint, int64, error) {
	return nil, 0, nil
}
func (stubAdmin) UpdateComplaintStatus(context.Context, uuid.UUID, model.ComplaintStatus) error {
	return nil
}
func (stubAdmin) StatsOverview(context.Context) (*model.StatsOverview, error) {
	return &model.StatsOverview{}, nil
}
func (stubAdmin) StatsByWard(context.Context) ([]model.WardStats, error) { return nil, nil }
func (stubAdmin) ExportStats(context.Context, io.Writer) error           { return nil }

func newPortal(t *testing.T, guest service.GuestService, complaints service.ComplaintService) *httptest.Server {
	t.Helper()
	cap := captcha.New(captcha.NewMemoryStore(), 5*time.Minute)
	s := httpapi.New(guest, stubAuth{}, complaints, stubAdmin{}, cap, testSignKey, zap.NewNop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// TestGuestFlowEndToEnd drives the full guest journey: build the draft
// step by step, begin the OTP flow, verify with the code, and land logged
// in with a tracking number.
func TestGuestFlowEndToEnd(t *testing.T) {
	guest := &scriptedGuest{code: "123456", session: "sess-1"}
	complaints := &stubComplaints{}
	srv := newPortal(t, guest, complaints)

	api := New(srv.URL)
	form := workflow.NewForm(workflow.NewMemoryDraftStore(), "draft", nil, nil)
	tokens := &workflow.MemoryTokenStore{}
	coord := workflow.NewCoordinator(api, form, tokens, nil)
	ctx := context.Background()

	// step 1: details
	form.UpdateField("fullName", "Jane Roe")
	form.UpdateField("email", "jane@example.com")
	form.UpdateField("phoneNumber", "9876543210")
	form.UpdateField("type", "WATER_SUPPLY")
	form.UpdateField("description", "no water supply since monday")
	require.Empty(t, form.Advance())

	// step 2: location from the ward reference list
	wards, err := api.Wards(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, wards)
	form.UpdateField("wardId", wards[0].ID)
	form.UpdateField("area", "Market Road")
	require.Empty(t, form.Advance())

	// step 3: one photo
	_, err = form.AddAttachment("leak.jpg", "image/jpeg", 8, func() (io.ReadCloser, error) {
		return io.NopCloser(io.LimitReader(alwaysA{}, 8)), nil
	})
	require.NoError(t, err)
	require.Empty(t, form.Advance()) // review
	require.Empty(t, form.Advance()) // submit

	// phase 1: begin; no complaint exists yet
	sess, err := coord.Begin(ctx, "cap-1", "42")
	require.NoError(t, err)
	require.Equal(t, "sess-1", sess.ID)
	require.Equal(t, "j***@example.com", sess.MaskedEmail)
	require.Positive(t, coord.Remaining(time.Now()))

	// wrong code keeps the flow alive
	_, err = coord.Verify(ctx, "000000")
	require.Error(t, err)
	require.NotNil(t, coord.Session())

	// phase 2: the real code activates the complaint
	out, err := coord.Verify(ctx, "123-456")
	require.NoError(t, err)
	require.Equal(t, "CSC482913", out.TrackingNumber)
	require.True(t, out.IsNewUser)

	// token persisted for the dashboard redirect
	tok, err := tokens.LoadToken()
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Nil(t, coord.Session())

	// server saw full payload only at verification time
	require.NotNil(t, guest.verifiedIn)
	require.Equal(t, "WATER_SUPPLY", string(guest.verifiedIn.Complaint.Type))
	require.Len(t, guest.verifiedIn.Complaint.Attachments, 1)
}

type alwaysA struct{}

func (alwaysA) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}

func TestResendThenVerify(t *testing.T) {
	guest := &scriptedGuest{code: "123456", session: "sess-1"}
	srv := newPortal(t, guest, &stubComplaints{})

	api := New(srv.URL)
	form := workflow.NewForm(workflow.NewMemoryDraftStore(), "draft", nil, nil)
	form.UpdateField("fullName", "Jane Roe")
	form.UpdateField("email", "jane@example.com")
	form.UpdateField("phoneNumber", "9876543210")
	form.UpdateField("type", "SEWERAGE")
	form.UpdateField("description", "blocked drain on main street")
	form.UpdateField("wardId", uuid.Must(uuid.NewV4()).String())
	form.UpdateField("area", "Main Street")
	coord := workflow.NewCoordinator(api, form, &workflow.MemoryTokenStore{}, nil)
	ctx := context.Background()

	_, err := coord.Begin(ctx, "cap-1", "42")
	require.NoError(t, err)

	sess, err := coord.Resend(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-1", sess.ID)

	out, err := coord.Verify(ctx, "123456")
	require.NoError(t, err)
	require.Equal(t, "CSC482913", out.TrackingNumber)
}

func TestTrackAndCaptcha(t *testing.T) {
	complaints := &stubComplaints{tracked: &model.Complaint{
		TrackingNumber: "CSC123456",
		Type:           model.TypeRoadRepair,
		Status:         model.StatusInProgress,
		Description:    "pothole near the school",
		Area:           "Station Road",
	}}
	srv := newPortal(t, &scriptedGuest{code: "1", session: "s"}, complaints)
	api := New(srv.URL)
	ctx := context.Background()

	id, svg, err := api.Captcha(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Contains(t, svg, "<svg")

	info, err := api.Track(ctx, "CSC123456")
	require.NoError(t, err)
	require.Equal(t, "IN_PROGRESS", info.Status)

	_, err = api.Track(ctx, "CSC000000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 404, apiErr.Status)
}

func TestLoginAndMyComplaints(t *testing.T) {
	complaints := &stubComplaints{mine: []model.Complaint{{
		ID:             uuid.Must(uuid.NewV4()),
		TrackingNumber: "CSC222222",
		Status:         model.StatusResolved,
	}}}
	srv := newPortal(t, &scriptedGuest{code: "1", session: "s"}, complaints)
	api := New(srv.URL)
	ctx := context.Background()

	_, err := api.Login(ctx, "jane@example.com", "wrong")
	require.Error(t, err)

	res, err := api.Login(ctx, "jane@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)

	mine, err := api.MyComplaints(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "CSC222222", mine[0].TrackingNumber)
}
