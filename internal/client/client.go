// Package client is the HTTP SDK for the portal REST API. It implements
// the workflow coordinator's API surface plus the public lookup endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/openmunicipal/civicportal/internal/workflow"
)

// envelope mirrors the server's {success,message,data} response shape.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a portal-level failure: the HTTP status plus the server's
// message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal: %s (status %d)", e.Message, e.Status)
}

// Client talks to the portal API.
type Client struct {
	http *resty.Client
}

// New constructs a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &Client{http: c}
}

// decode unwraps the envelope into out, converting failures to *APIError.
func decode(resp *resty.Response, out any) error {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("portal: unexpected response (status %d)", resp.StatusCode())
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode(), Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("portal: decode data: %w", err)
		}
	}
	return nil
}

type sessionData struct {
	SessionID string    `json:"sessionId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toSession(d sessionData) *workflow.Session {
	return &workflow.Session{ID: d.SessionID, MaskedEmail: d.Email, ExpiresAt: d.ExpiresAt}
}

// Captcha fetches a fresh challenge for the guest form.
func (c *Client) Captcha(ctx context.Context) (id, svg string, err error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/captcha/generate")
	if err != nil {
		return "", "", err
	}
	var data struct {
		CaptchaID string `json:"captchaId"`
		SVG       string `json:"svg"`
	}
	if err := decode(resp, &data); err != nil {
		return "", "", err
	}
	return data.CaptchaID, data.SVG, nil
}

// BeginGuest starts the OTP flow with the reduced contact payload.
func (c *Client) BeginGuest(ctx context.Context, in workflow.BeginRequest) (*workflow.Session, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"fullName":      in.FullName,
			"email":         in.Email,
			"phoneNumber":   in.Phone,
			"captchaId":     in.CaptchaID,
			"captchaAnswer": in.CaptchaAnswer,
		}).
		Post("/api/guest/complaint")
	if err != nil {
		return nil, err
	}
	var data sessionData
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return toSession(data), nil
}

// complaintFields flattens the draft into multipart form fields.
func complaintFields(d workflow.ComplaintDraft) map[string]string {
	fields := map[string]string{
		"type":        d.Type,
		"priority":    d.Priority,
		"description": d.Description,
		"wardId":      d.WardID,
		"subZoneId":   d.SubZoneID,
		"area":        d.Area,
		"landmark":    d.Landmark,
		"address":     d.Address,
	}
	if d.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*d.Latitude, 'f', -1, 64)
	}
	if d.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*d.Longitude, 'f', -1, 64)
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

func attachFiles(req *resty.Request, d workflow.ComplaintDraft, open workflow.SourceResolver) error {
	for _, a := range d.Attachments {
		rc, err := open(a.ID)
		if err != nil {
			return err
		}
		// resty reads the reader when the request executes and the
		// multipart writer closes it for us via io copy semantics; the
		// handle stays open until then.
		req.SetMultipartField("attachments", a.FileName, a.MimeType, rc)
	}
	return nil
}

type outcomeData struct {
	AccessToken string `json:"token"`
	IsNewUser   bool   `json:"isNewUser"`
	Complaint   struct {
		ID             string `json:"id"`
		TrackingNumber string `json:"trackingNumber"`
	} `json:"complaint"`
}

// VerifyGuest submits the code together with the full complaint payload.
func (c *Client) VerifyGuest(ctx context.Context, in workflow.VerifyRequest) (*workflow.Outcome, error) {
	req := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(complaintFields(in.Draft)).
		SetMultipartFormData(map[string]string{
			"sessionId": in.SessionID,
			"email":     in.Email,
			"code":      in.Code,
		})
	if err := attachFiles(req, in.Draft, in.Open); err != nil {
		return nil, err
	}
	resp, err := req.Post("/api/guest/verify-otp")
	if err != nil {
		return nil, err
	}
	var data outcomeData
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &workflow.Outcome{
		TrackingNumber: data.Complaint.TrackingNumber,
		ComplaintID:    data.Complaint.ID,
		AccessToken:    data.AccessToken,
		IsNewUser:      data.IsNewUser,
	}, nil
}

// ResendOTP asks for a fresh code on the session bound to the email.
func (c *Client) ResendOTP(ctx context.Context, email string) (*workflow.Session, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email}).
		Post("/api/guest/resend-otp")
	if err != nil {
		return nil, err
	}
	var data sessionData
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return toSession(data), nil
}

type complaintData struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"trackingNumber"`
	Type           string `json:"type"`
	Status         string `json:"status"`
}

// SubmitComplaint runs the authenticated direct path.
func (c *Client) SubmitComplaint(ctx context.Context, token string, d workflow.ComplaintDraft, open workflow.SourceResolver) (*workflow.Outcome, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetMultipartFormData(complaintFields(d))
	if err := attachFiles(req, d, open); err != nil {
		return nil, err
	}
	resp, err := req.Post("/api/complaints")
	if err != nil {
		return nil, err
	}
	var data complaintData
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &workflow.Outcome{TrackingNumber: data.TrackingNumber, ComplaintID: data.ID}, nil
}

var _ workflow.API = (*Client)(nil)

// TrackingInfo is the public status view of a complaint.
type TrackingInfo struct {
	TrackingNumber string     `json:"trackingNumber"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	Area           string     `json:"area"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// Track looks up a complaint by its public tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/guest/track/" + trackingNumber)
	if err != nil {
		return nil, err
	}
	var info TrackingInfo
	if err := decode(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SubZone and Ward mirror the reference-data endpoint.
type SubZone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Ward struct {
	ID       string    `json:"id"`
	Number   int       `json:"number"`
	Name     string    `json:"name"`
	SubZones []SubZone `json:"subZones"`
}

// Wards fetches the ward/sub-zone reference list.
func (c *Client) Wards(ctx context.Context) ([]Ward, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/guest/wards")
	if err != nil {
		return nil, err
	}
	var wards []Ward
	if err := decode(resp, &wards); err != nil {
		return nil, err
	}
	return wards, nil
}

// LoginResult is the login response: token plus the account snapshot.
type LoginResult struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        struct {
		ID       string `json:"id"`
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/api/auth/login")
	if err != nil {
		return nil, err
	}
	var out LoginResult
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyComplaint is one row of the citizen's own list.
type MyComplaint struct {
	ID             string    `json:"id"`
	TrackingNumber string    `json:"trackingNumber"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MyComplaints lists the authenticated citizen's complaints.
func (c *Client) MyComplaints(ctx context.Context, token string) ([]MyComplaint, error) {
	resp, err := c.http.R().SetContext(ctx).SetAuthToken(token).Get("/api/complaints")
	if err != nil {
		return nil, err
	}
	var out []MyComplaint
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
