package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/averma/kyc-verify/internal/extract"
	"github.com/averma/kyc-verify/internal/onboarding"
)

// maxVideoUploadSize bounds liveness video uploads (64 MB).
const maxVideoUploadSize = 64 << 20

// LivenessHandler handles the liveness stage and existing-customer
// verification.
type LivenessHandler struct {
	service *onboarding.Service
}

// NewLivenessHandler creates a new liveness handler.
func NewLivenessHandler(svc *onboarding.Service) *LivenessHandler {
	return &LivenessHandler{service: svc}
}

// Submit handles POST /customers/{id}/liveness with a multipart video
// capture in the "file" field.
func (h *LivenessHandler) Submit(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxVideoUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "video capture file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxVideoUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read video capture")
		return
	}
	if err := extract.ValidateVideoCapture(data); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.service.SubmitLivenessCapture(r.Context(), customerID, data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// VerifyExisting handles POST /verify: identify a returning customer by a
// probe image of their face.
func (h *LivenessHandler) VerifyExisting(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDocumentUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "probe image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxDocumentUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read probe image")
		return
	}
	if _, err := extract.ValidateDocumentImage(data); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	match, err := h.service.VerifyExisting(r.Context(), data)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, match)
}
