package httpapi

import (
	"net/http"

	"github.com/openmunicipal/civicportal/internal/errs"
)

// handleMyComplaints lists the authenticated citizen's complaints.
func (s *Server) handleMyComplaints(w http.ResponseWriter, r *http.Request) {
	userID, _, okID := IdentityFromCtx(r.Context())
	if !okID {
		failErr(w, errs.ErrUnauthorized)
		return
	}
	cs, err := s.complaints.ListByUser(r.Context(), userID)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", toComplaintDTOs(cs))
}

// handleCreateComplaint registers a complaint for an authenticated citizen.
// Same multipart shape as guest verification minus the session fields.
func (s *Server) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	userID, _, okID := IdentityFromCtx(r.Context())
	if !okID {
		failErr(w, errs.ErrUnauthorized)
		return
	}

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

	c, err := s.complaints.Create(r.Context(), userID, in)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "complaint registered", toComplaintDTO(c))
}
