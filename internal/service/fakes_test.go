package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/limiter"
	"github.com/openmunicipal/civicportal/internal/mail"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
	"github.com/openmunicipal/civicportal/internal/storage"
)

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byEmail == nil {
		f.byEmail = map[string]*model.User{}
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) List(_ context.Context, _ repository.UserFilter) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range f.byEmail {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	for _, cur := range f.byEmail {
		if cur.ID == u.ID {
			*cur = *u
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	for _, cur := range f.byEmail {
		if cur.ID == id {
			cur.Active = false
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeComplaints struct {
	created   []*model.Complaint
	createErr error
}

var _ repository.ComplaintRepository = (*fakeComplaints)(nil)

func (f *fakeComplaints) Create(_ context.Context, c *model.Complaint) error {
	if f.createErr != nil {
		return f.createErr
	}
	cpy := *c
	f.created = append(f.created, &cpy)
	return nil
}

func (f *fakeComplaints) GetByID(_ context.Context, id uuid.UUID) (*model.Complaint, error) {
	for _, c := range f.created {
		if c.ID == id {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeComplaints) GetByTracking(_ context.Context, tn string) (*model.Complaint, error) {
	for _, c := range f.created {
		if c.TrackingNumber == tn {
			cpy := *c
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeComplaints) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Complaint, error) {
	var out []model.Complaint
	for _, c := range f.created {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeComplaints) List(_ context.Context, _ repository.ComplaintFilter) ([]model.Complaint, int64, error) {
	var out []model.Complaint
	for _, c := range f.created {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeComplaints) UpdateStatus(_ context.Context, id uuid.UUID, status model.ComplaintStatus) error {
	for _, c := range f.created {
		if c.ID == id {
			c.Status = status
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeWards struct{ wards []model.Ward }

var _ repository.WardRepository = (*fakeWards)(nil)

func (f *fakeWards) ListWithSubZones(_ context.Context) ([]model.Ward, error) { return f.wards, nil }
func (f *fakeWards) GetByID(_ context.Context, id uuid.UUID) (*model.Ward, error) {
	for i := range f.wards {
		if f.wards[i].ID == id {
			return &f.wards[i], nil
		}
	}
	return nil, errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

type fakeCaptcha struct{ err error }

var _ CaptchaVerifier = (*fakeCaptcha)(nil)

func (f *fakeCaptcha) Verify(context.Context, string, string) error { return f.err }

type fakeSender struct {
	sent    []string // codes in send order
	to      []string
	sendErr error
}

var _ mail.Sender = (*fakeSender)(nil)

func (f *fakeSender) SendOTP(_ context.Context, to, code string, _ time.Time) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, code)
	f.to = append(f.to, to)
	return nil
}

type fakeBlobs struct{ saved map[string][]byte }

var _ storage.BlobStore = (*fakeBlobs)(nil)

func (f *fakeBlobs) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.saved[key] = b
	return int64(len(b)), nil
}

func (f *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.saved[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	delete(f.saved, key)
	return nil
}
