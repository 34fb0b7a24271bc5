// Package customer defines the customer record that accumulates identity
// and biometric evidence over the onboarding lifecycle, plus the
// verification states that sequence the capture stages.
package customer

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrValidation is the base error for malformed identity fields. It is
// user-correctable and never carries internal detail.
var ErrValidation = errors.New("validation failed")

// Embedding field names used by store queries and population scans.
const (
	FieldPrimaryDoc   = "primary_doc_embedding"
	FieldSecondaryDoc = "secondary_doc_embedding"
	FieldLive         = "live_embedding"
)

// LivenessCues is the per-factor breakdown reported by the liveness check.
type LivenessCues struct {
	Blink           bool `json:"blink_detected"`
	MouthMovement   bool `json:"mouth_movement"`
	SkinReflectance bool `json:"skin_reflectance"`
}

// LivenessResult is the recorded outcome of a liveness capture stage.
// It is persisted regardless of overall success, for audit.
type LivenessResult struct {
	IsLive         bool         `json:"is_live"`
	PrimaryMatch   bool         `json:"primary_match"`
	SecondaryMatch bool         `json:"secondary_match"`
	Cues           LivenessCues `json:"cues"`
	CompletedAt    time.Time    `json:"completed_at"`
}

// Accepted reports the overall verification decision: the capture must be
// live AND match both stored document embeddings.
func (r *LivenessResult) Accepted() bool {
	return r != nil && r.IsLive && r.PrimaryMatch && r.SecondaryMatch
}

// Customer is the persisted onboarding record. Evidence fields stay nil
// until their capture stage runs; each stage overwrites only its own fields.
type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DOB            time.Time `json:"dob"`
	NationalID     string    `json:"national_id"`
	OtherDocuments string    `json:"other_documents,omitempty"`

	PrimaryDocEmbedding   []float32 `json:"-"`
	SecondaryDocEmbedding []float32 `json:"-"`
	LiveEmbedding         []float32 `json:"-"`

	PrimaryDocImagePath   string `json:"primary_doc_image_path,omitempty"`
	SecondaryDocImagePath string `json:"secondary_doc_image_path,omitempty"`

	LivenessResult *LivenessResult `json:"liveness_result,omitempty"`

	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a customer record in the Created state from validated
// identity fields.
func New(name string, dob time.Time, nationalID, otherDocuments string) (*Customer, error) {
	c := &Customer{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(name),
		DOB:            dob,
		NationalID:     strings.TrimSpace(nationalID),
		OtherDocuments: strings.TrimSpace(otherDocuments),
		State:          StateCreated,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := c.ValidateIdentity(); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateIdentity checks the identity fields submitted at creation time.
func (c *Customer) ValidateIdentity() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if c.DOB.IsZero() {
		return fmt.Errorf("%w: date of birth is required", ErrValidation)
	}
	if !c.DOB.Before(time.Now()) {
		return fmt.Errorf("%w: date of birth must be in the past", ErrValidation)
	}
	if err := validateNationalID(c.NationalID); err != nil {
		return err
	}
	return nil
}

// validateNationalID checks for exactly 12 digits (Aadhaar format).
func validateNationalID(id string) error {
	if len(id) != 12 {
		return fmt.Errorf("%w: national ID must be exactly 12 digits", ErrValidation)
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("%w: national ID must contain only digits", ErrValidation)
		}
	}
	return nil
}

// LivenessTestCompleted reports whether a liveness outcome has been
// recorded. True if and only if LivenessResult is set.
func (c *Customer) LivenessTestCompleted() bool {
	return c.LivenessResult != nil
}

// EmbeddingFor returns the named embedding field, or nil when the field
// name is unknown or the field is not populated.
func (c *Customer) EmbeddingFor(field string) []float32 {
	switch field {
	case FieldPrimaryDoc:
		return c.PrimaryDocEmbedding
	case FieldSecondaryDoc:
		return c.SecondaryDocEmbedding
	case FieldLive:
		return c.LiveEmbedding
	default:
		return nil
	}
}

// Clone returns a deep copy of the record. Stores hand out clones so a
// caller mutating a record cannot bypass Save.
func (c *Customer) Clone() *Customer {
	clone := *c
	clone.PrimaryDocEmbedding = append([]float32(nil), c.PrimaryDocEmbedding...)
	clone.SecondaryDocEmbedding = append([]float32(nil), c.SecondaryDocEmbedding...)
	clone.LiveEmbedding = append([]float32(nil), c.LiveEmbedding...)
	if c.LivenessResult != nil {
		lr := *c.LivenessResult
		clone.LivenessResult = &lr
	}
	return &clone
}

// Summary is the reduced view of a matched record returned to callers when
// a duplicate or identity mismatch is detected.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DOB        time.Time `json:"dob"`
	NationalID string    `json:"national_id"`
	State      State     `json:"state"`
}

// Summarize builds the reduced matched-record view.
func (c *Customer) Summarize() Summary {
	return Summary{
		ID:         c.ID,
		Name:       c.Name,
		DOB:        c.DOB,
		NationalID: c.NationalID,
		State:      c.State,
	}
}
