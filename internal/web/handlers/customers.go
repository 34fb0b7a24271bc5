package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/averma/kyc-verify/internal/onboarding"
)

// CustomersHandler handles customer record endpoints.
type CustomersHandler struct {
	service *onboarding.Service
}

// NewCustomersHandler creates a new customers handler.
func NewCustomersHandler(svc *onboarding.Service) *CustomersHandler {
	return &CustomersHandler{service: svc}
}

// createRequest is the identity submission payload.
type createRequest struct {
	Name           string `json:"name"`
	DOB            string `json:"dob"` // YYYY-MM-DD
	NationalID     string `json:"national_id"`
	OtherDocuments string `json:"other_documents"`
}

// Create handles POST /customers: identity submission, the Created state.
func (h *CustomersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DOB)
	if err != nil {
		respondError(w, http.StatusBadRequest, "dob must be formatted as YYYY-MM-DD")
		return
	}

	c, err := h.service.SubmitIdentity(r.Context(), onboarding.IdentityInput{
		Name:           req.Name,
		DOB:            dob,
		NationalID:     req.NationalID,
		OtherDocuments: req.OtherDocuments,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// List handles GET /customers with an optional ?name= filter.
func (h *CustomersHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

// Get handles GET /customers/{id}.
func (h *CustomersHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Blacklist handles POST /customers/{id}/blacklist: removes the record.
func (h *CustomersHandler) Blacklist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.BlacklistCustomer(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "customer has been blacklisted and removed",
	})
}
