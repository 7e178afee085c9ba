package httpapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/service"
)

// maxUploadBytes bounds a whole multipart submission: five files at the
// per-file cap plus form fields.
const maxUploadBytes = service.MaxAttachments*service.MaxAttachmentSize + 1<<20

type guestBeginRequest struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phoneNumber"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

// handleGuestBegin starts the OTP flow: contact fields and captcha only.
// No complaint data is accepted or stored at this stage.
func (s *Server) handleGuestBegin(w http.ResponseWriter, r *http.Request) {
	var req guestBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	res, err := s.guest.Begin(r.Context(), service.BeginGuestInput{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
		IP:            clientIP(r),
	})
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "verification code sent", sessionDTO{
		SessionID: res.SessionID,
		Email:     res.Email,
		ExpiresAt: res.ExpiresAt,
	})
}

// complaintInputFromForm reads the shared complaint fields out of a parsed
// multipart form. Attachments stream straight from the multipart parts.
func complaintInputFromForm(form *multipart.Form) (service.ComplaintInput, []*multipart.FileHeader, error) {
	get := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	in := service.ComplaintInput{
		Type:        model.ComplaintType(get("type")),
		Priority:    model.Priority(get("priority")),
		Description: get("description"),
		Area:        get("area"),
		Landmark:    get("landmark"),
		Address:     get("address"),
	}
	if v := get("wardId"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			return in, nil, &service.ValidationError{Field: "wardId", Reason: "invalid id"}
		}
		in.WardID = id
	}
	if v := get("subZoneId"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			return in, nil, &service.ValidationError{Field: "subZoneId", Reason: "invalid id"}
		}
		in.SubZoneID = &id
	}
	if v := get("latitude"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, nil, &service.ValidationError{Field: "latitude", Reason: "invalid number"}
		}
		in.Latitude = &f
	}
	if v := get("longitude"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, nil, &service.ValidationError{Field: "longitude", Reason: "invalid number"}
		}
		in.Longitude = &f
	}

	files := form.File["attachments"]
	if len(files) > service.MaxAttachments {
		return in, nil, &service.ValidationError{Field: "attachments", Reason: "at most 5 files"}
	}
	return in, files, nil
}

// openAttachments turns multipart file headers into attachment inputs. The
// returned closer releases the opened parts.
func openAttachments(files []*multipart.FileHeader) ([]service.AttachmentInput, func(), error) {
	var (
		ins     []service.AttachmentInput
		openers []multipart.File
	)
	closeAll := func() {
		for _, f := range openers {
			_ = f.Close()
		}
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		openers = append(openers, f)
		ins = append(ins, service.AttachmentInput{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Data:     f,
		})
	}
	return ins, closeAll, nil
}

// handleGuestVerify carries the code together with the full complaint
// payload as multipart form data. Success activates the complaint and logs
// the guest in.
func (s *Server) handleGuestVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		fail(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in, files, err := complaintInputFromForm(r.MultipartForm)
	if err != nil {
		failErr(w, err)
		return
	}
	atts, closeAtts, err := openAttachments(files)
	if err != nil {
		fail(w, http.StatusBadRequest, "unreadable attachment")
		return
	}
	defer closeAtts()
	in.Attachments = atts

	res, err := s.guest.Verify(r.Context(), service.VerifyGuestInput{
		SessionID: r.FormValue("sessionId"),
		Email:     r.FormValue("email"),
		Code:      r.FormValue("code"),
		IP:        clientIP(r),
		Complaint: in,
	})
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "complaint registered", map[string]any{
		"complaint": toComplaintDTO(&res.Complaint),
		"user":      toUserDTO(&res.User),
		"token":     res.Tokens.AccessToken,
		"expiresAt": res.Tokens.ExpiresAt,
		"isNewUser": res.IsNewUser,
	})
}

type resendRequest struct {
	Email string `json:"email"`
}

// handleGuestResend re-issues the code on the session bound to the email.
func (s *Server) handleGuestResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	res, err := s.guest.Resend(r.Context(), req.Email, clientIP(r))
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "verification code re-sent", sessionDTO{
		SessionID: res.SessionID,
		Email:     res.Email,
		ExpiresAt: res.ExpiresAt,
	})
}

// handleTrack serves the public status page lookup.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	tn := r.PathValue("trackingNumber")
	c, err := s.complaints.Track(r.Context(), tn)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", toTrackingDTO(c))
}

// handleWards serves the ward/sub-zone reference list for the location step.
func (s *Server) handleWards(w http.ResponseWriter, r *http.Request) {
	wards, err := s.complaints.Wards(r.Context())
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", toWardDTOs(wards))
}
