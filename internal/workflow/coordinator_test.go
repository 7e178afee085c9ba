package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmunicipal/civicportal/internal/errs"
)

type fakeAPI struct {
	mu         sync.Mutex
	beginIn    *BeginRequest
	beginRes   *Session
	beginErr   error
	verifyIn   *VerifyRequest
	verifyRes  *Outcome
	verifyErr  error
	resendRes  *Session
	resendErr  error
	resendGate chan struct{} // when set, ResendOTP blocks until closed
	submitRes  *Outcome
	submitTok  string
}

func (f *fakeAPI) BeginGuest(_ context.Context, in BeginRequest) (*Session, error) {
	f.mu.Lock()
	f.beginIn = &in
	f.mu.Unlock()
	return f.beginRes, f.beginErr
}

func (f *fakeAPI) VerifyGuest(_ context.Context, in VerifyRequest) (*Outcome, error) {
	f.mu.Lock()
	f.verifyIn = &in
	f.mu.Unlock()
	return f.verifyRes, f.verifyErr
}

func (f *fakeAPI) ResendOTP(context.Context, string) (*Session, error) {
	if f.resendGate != nil {
		<-f.resendGate
	}
	return f.resendRes, f.resendErr
}

func (f *fakeAPI) SubmitComplaint(_ context.Context, token string, _ ComplaintDraft, _ SourceResolver) (*Outcome, error) {
	f.mu.Lock()
	f.submitTok = token
	f.mu.Unlock()
	return f.submitRes, nil
}

var _ API = (*fakeAPI)(nil)

func coordFixture(t *testing.T) (*Coordinator, *Form, *fakeAPI, *MemoryTokenStore) {
	t.Helper()
	api := &fakeAPI{}
	form := NewForm(NewMemoryDraftStore(), "draft", nil, nil)
	fillValidDraft(form)
	tokens := &MemoryTokenStore{}
	return NewCoordinator(api, form, tokens, nil), form, api, tokens
}

func liveSession(id string) *Session {
	return &Session{ID: id, MaskedEmail: "j***@example.com", ExpiresAt: time.Now().Add(10 * time.Minute)}
}

func TestBeginRequiresValidDraft(t *testing.T) {
	api := &fakeAPI{}
	form := NewForm(NewMemoryDraftStore(), "draft", nil, nil)
	c := NewCoordinator(api, form, nil, nil)

	_, err := c.Begin(context.Background(), "cap-1", "42")
	var es FieldErrors
	require.ErrorAs(t, err, &es)
	require.Nil(t, api.beginIn)
}

func TestBeginSingleFlight(t *testing.T) {
	c, _, api, _ := coordFixture(t)
	api.beginRes = liveSession("s1")

	_, err := c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	_, err = c.Begin(context.Background(), "cap-2", "43")
	require.ErrorIs(t, err, ErrFlowActive)
}

func TestBeginFailureEndsFlow(t *testing.T) {
	c, _, api, _ := coordFixture(t)
	api.beginErr = errs.ErrCaptchaMismatch

	_, err := c.Begin(context.Background(), "cap-1", "wrong")
	require.ErrorIs(t, err, errs.ErrCaptchaMismatch)

	// flow is not stuck active
	api.beginErr = nil
	api.beginRes = liveSession("s1")
	_, err = c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)
}

func TestVerifyWithoutSession(t *testing.T) {
	c, _, _, _ := coordFixture(t)

	_, err := c.Verify(context.Background(), "123456")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestVerifySuccess(t *testing.T) {
	c, form, api, tokens := coordFixture(t)
	_, err := form.AddAttachment("leak.jpg", "image/jpeg", 100, textSource("jpeg"))
	require.NoError(t, err)
	api.beginRes = liveSession("s1")
	api.verifyRes = &Outcome{TrackingNumber: "CSC482913", AccessToken: "tok", IsNewUser: true}

	_, err = c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	out, err := c.Verify(context.Background(), " 123-456 ")
	require.NoError(t, err)
	require.Equal(t, "CSC482913", out.TrackingNumber)

	// code normalized, session id carried
	require.Equal(t, "123456", api.verifyIn.Code)
	require.Equal(t, "s1", api.verifyIn.SessionID)

	// token persisted, draft reset, flow over
	tok, err := tokens.LoadToken()
	require.NoError(t, err)
	require.Equal(t, "tok", tok)
	require.Empty(t, form.Draft().FullName)
	require.Nil(t, c.Session())
}

func TestVerifyFailureKeepsSession(t *testing.T) {
	c, form, api, _ := coordFixture(t)
	api.beginRes = liveSession("s1")
	api.verifyErr = errs.ErrCodeMismatch

	_, err := c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	_, err = c.Verify(context.Background(), "000000")
	require.ErrorIs(t, err, errs.ErrCodeMismatch)
	require.NotNil(t, c.Session())
	require.Equal(t, "Jane Roe", form.Draft().FullName)
}

func TestResendWithoutSession(t *testing.T) {
	c, _, _, _ := coordFixture(t)

	_, err := c.Resend(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestResendReplacesSession(t *testing.T) {
	c, _, api, _ := coordFixture(t)
	api.beginRes = liveSession("s1")
	_, err := c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	fresh := liveSession("s1")
	fresh.ExpiresAt = time.Now().Add(20 * time.Minute)
	api.resendRes = fresh

	got, err := c.Resend(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
	require.WithinDuration(t, fresh.ExpiresAt, c.Session().ExpiresAt, time.Second)
}

func TestStaleResendDoesNotOverwriteNewerSession(t *testing.T) {
	c, _, api, _ := coordFixture(t)
	api.beginRes = liveSession("s1")
	_, err := c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	gate := make(chan struct{})
	api.resendGate = gate
	stale := liveSession("stale")
	api.resendRes = stale

	done := make(chan *Session, 1)
	go func() {
		s, rerr := c.Resend(context.Background())
		require.NoError(t, rerr)
		done <- s
	}()

	// a newer session lands while the resend is in flight
	time.Sleep(10 * time.Millisecond)
	c.Abort()
	api.beginRes = liveSession("s2")
	_, err = c.Begin(context.Background(), "cap-2", "42")
	require.NoError(t, err)

	close(gate)
	<-done

	require.Equal(t, "s2", c.Session().ID)
}

func TestRemainingCountdown(t *testing.T) {
	c, _, api, _ := coordFixture(t)
	require.Zero(t, c.Remaining(time.Now()))

	exp := time.Now().Add(10 * time.Minute)
	api.beginRes = &Session{ID: "s1", ExpiresAt: exp}
	_, err := c.Begin(context.Background(), "cap-1", "42")
	require.NoError(t, err)

	require.InDelta(t, (10 * time.Minute).Seconds(), c.Remaining(time.Now()).Seconds(), 2)
	require.Zero(t, c.Remaining(exp.Add(time.Second)))
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "123456", NormalizeCode("123456"))
	require.Equal(t, "123456", NormalizeCode(" 123 456 "))
	require.Equal(t, "123456", NormalizeCode("12-34-56"))
	require.Equal(t, "", NormalizeCode("abc"))
}

func TestSubmitCitizen(t *testing.T) {
	c, form, api, tokens := coordFixture(t)
	require.NoError(t, tokens.SaveToken("tok"))
	api.submitRes = &Outcome{TrackingNumber: "CSC111111"}

	out, err := c.SubmitCitizen(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CSC111111", out.TrackingNumber)
	require.Equal(t, "tok", api.submitTok)
	require.Empty(t, form.Draft().FullName)
}

func TestSubmitCitizenRequiresToken(t *testing.T) {
	c, _, _, _ := coordFixture(t)

	_, err := c.SubmitCitizen(context.Background())
	require.Error(t, err)
}
