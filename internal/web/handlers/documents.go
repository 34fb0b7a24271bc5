package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/averma/kyc-verify/internal/extract"
	"github.com/averma/kyc-verify/internal/onboarding"
	"github.com/averma/kyc-verify/internal/verify"
)

// maxDocumentUploadSize bounds document image uploads (16 MB).
const maxDocumentUploadSize = 16 << 20

// DocumentsHandler handles the two document capture stages.
type DocumentsHandler struct {
	service    *onboarding.Service
	uploadsDir string
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc *onboarding.Service, uploadsDir string) *DocumentsHandler {
	return &DocumentsHandler{service: svc, uploadsDir: uploadsDir}
}

// readUpload reads and validates the uploaded document image from the
// multipart form field "file".
func (h *DocumentsHandler) readUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxDocumentUploadSize); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("document image file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxDocumentUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read document image")
	}
	if _, err := extract.ValidateDocumentImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// storeUpload writes the image under the uploads directory and returns
// the stored path. Storage failure does not abort the stage; the
// embedding is the evidence that matters.
func (h *DocumentsHandler) storeUpload(subdir, customerID string, data []byte) string {
	dir := filepath.Join(h.uploadsDir, subdir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	name := fmt.Sprintf("%s_%d.jpg", customerID, time.Now().UnixNano())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return ""
	}
	return path
}

// SubmitPrimary handles POST /customers/{id}/documents/primary. A
// duplicate or identity mismatch is an expected business outcome, not an
// error: it is reported with 409 and the matched record summary.
func (h *DocumentsHandler) SubmitPrimary(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	data, err := h.readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	imagePath := h.storeUpload("primary", customerID, data)
	result, err := h.service.SubmitPrimaryDocument(r.Context(), customerID, data, imagePath)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome != verify.OutcomeNew {
		status = http.StatusConflict
	}
	respondJSON(w, status, result)
}

// SubmitSecondary handles POST /customers/{id}/documents/secondary.
func (h *DocumentsHandler) SubmitSecondary(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	data, err := h.readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	imagePath := h.storeUpload("secondary", customerID, data)
	result, err := h.service.SubmitSecondaryDocument(r.Context(), customerID, data, imagePath)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
