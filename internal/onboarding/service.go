// Package onboarding orchestrates the customer verification lifecycle:
// identity submission, the two document capture stages with duplicate and
// fraud screening, and the liveness confirmation stage.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/extract"
	"github.com/averma/kyc-verify/internal/store"
	"github.com/averma/kyc-verify/internal/verify"
)

// ErrExtractionFailed wraps any failure of the extraction collaborator:
// no face found, corrupt input, process crash or timeout. Always
// recoverable by resubmitting that stage's capture.
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor is the external collaborator turning captures into embeddings
// and liveness verdicts.
type Extractor interface {
	ExtractImage(ctx context.Context, imageData []byte) ([]float32, error)
	ExtractVideo(ctx context.Context, videoData []byte) (*extract.LivenessCapture, error)
}

// Service implements the onboarding state machine over a customer store
// and the extraction collaborator.
type Service struct {
	store         store.CustomerStore
	extractor     Extractor
	resolver      *verify.Resolver
	liveThreshold float64
	index         *store.PopulationIndex

	// commitMu serializes the find-then-decide-then-write sequence of the
	// primary document stage, so two concurrent onboarding attempts cannot
	// both miss each other's not-yet-persisted embeddings.
	commitMu sync.Mutex
}

// NewService creates the onboarding service. liveThreshold and
// duplicateThreshold fall back to defaults when <= 0. The population
// index is optional; pass nil to always scan the full population.
func NewService(st store.CustomerStore, ex Extractor, liveThreshold, duplicateThreshold float64, index *store.PopulationIndex) *Service {
	if liveThreshold <= 0 {
		liveThreshold = verify.DefaultLiveThreshold
	}
	return &Service{
		store:         st,
		extractor:     ex,
		resolver:      verify.NewResolver(duplicateThreshold),
		liveThreshold: liveThreshold,
		index:         index,
	}
}

// Index returns the population index, nil when disabled.
func (s *Service) Index() *store.PopulationIndex {
	return s.index
}

// IdentityInput are the fields submitted at the start of onboarding.
type IdentityInput struct {
	Name           string
	DOB            time.Time
	NationalID     string
	OtherDocuments string
}

// SubmitIdentity validates identity fields and creates a record in the
// Created state. No evidence is captured yet.
func (s *Service) SubmitIdentity(ctx context.Context, in IdentityInput) (*customer.Customer, error) {
	c, err := customer.New(in.Name, in.DOB, in.NationalID, in.OtherDocuments)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("persist customer %s: %w", c.ID, err)
	}
	log.Printf("onboarding: customer %s created", c.ID)
	return c, nil
}

// DocumentResult is the outcome of a document capture stage.
type DocumentResult struct {
	Outcome    verify.OutcomeKind `json:"outcome"`
	Similarity float64            `json:"similarity"`
	Matched    *customer.Summary  `json:"matched,omitempty"`
	State      customer.State     `json:"state"`
	Customer   *customer.Customer `json:"customer,omitempty"`
}

// SubmitPrimaryDocument runs the primary document stage: extract an
// embedding from the document image, screen it against every other
// customer's primary document embedding, and either advance the record or
// reject the attempt. A rejected attempt never persists its embedding, so
// it cannot contaminate future duplicate searches.
func (s *Service) SubmitPrimaryDocument(ctx context.Context, customerID string, imageData []byte, imagePath string) (*DocumentResult, error) {
	c, err := s.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.CanSubmitPrimaryDocument(); err != nil {
		return nil, err
	}

	embedding, err := s.extractor.ExtractImage(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: primary document stage for customer %s: %w", ErrExtractionFailed, customerID, err)
	}

	// The scan snapshot, decision and write must not interleave with
	// another attempt's commit.
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	others, err := s.store.FindWithEmbedding(ctx, customer.FieldPrimaryDoc, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load population for customer %s: %w", customerID, err)
	}
	population := store.PopulationFor(others, c.ID, customer.FieldPrimaryDoc)

	outcome := s.resolver.Resolve(ctx, verify.Candidate{Embedding: embedding, Name: c.Name}, population)

	if outcome.Kind != verify.OutcomeNew {
		matched, err := s.store.Get(ctx, outcome.Match.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("load matched customer %s: %w", outcome.Match.CustomerID, err)
		}
		summary := matched.Summarize()

		// Terminal for this attempt. The embedding is NOT persisted.
		c.State = customer.StateRejected
		if err := s.store.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("persist rejection for customer %s: %w", customerID, err)
		}

		log.Printf("onboarding: customer %s rejected at primary document stage: %s (similarity %.4f, matched %s)",
			c.ID, outcome.Kind, outcome.Similarity, matched.ID)

		return &DocumentResult{
			Outcome:    outcome.Kind,
			Similarity: outcome.Similarity,
			Matched:    &summary,
			State:      c.State,
		}, nil
	}

	c.PrimaryDocEmbedding = embedding
	c.PrimaryDocImagePath = imagePath
	c.State = customer.StatePrimaryDocCaptured
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("persist primary document for customer %s: %w", customerID, err)
	}

	if s.index != nil {
		s.index.Add(verify.PopulationEntry{
			CustomerID: c.ID,
			Name:       c.Name,
			Field:      customer.FieldPrimaryDoc,
			Embedding:  embedding,
		})
	}

	log.Printf("onboarding: customer %s primary document captured (best similarity %.4f)", c.ID, outcome.Similarity)

	return &DocumentResult{
		Outcome:    verify.OutcomeNew,
		Similarity: outcome.Similarity,
		State:      c.State,
		Customer:   c,
	}, nil
}

// SecondaryResult is the outcome of the secondary document stage. The
// sanity check against the primary document never blocks the transition.
type SecondaryResult struct {
	SanityMatch bool               `json:"sanity_match"`
	Similarity  float64            `json:"similarity"`
	State       customer.State     `json:"state"`
	Customer    *customer.Customer `json:"customer,omitempty"`
}

// SubmitSecondaryDocument runs the secondary document stage. No duplicate
// search happens here; the embedding is compared against the stored
// primary document embedding for a same-session same-person sanity flag
// only. Re-running the stage overwrites its own fields.
func (s *Service) SubmitSecondaryDocument(ctx context.Context, customerID string, imageData []byte, imagePath string) (*SecondaryResult, error) {
	c, err := s.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.CanSubmitSecondaryDocument(); err != nil {
		return nil, err
	}

	embedding, err := s.extractor.ExtractImage(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: secondary document stage for customer %s: %w", ErrExtractionFailed, customerID, err)
	}

	similarity := verify.CosineSimilarity(embedding, c.PrimaryDocEmbedding)

	c.SecondaryDocEmbedding = embedding
	c.SecondaryDocImagePath = imagePath
	c.State = customer.StateSecondaryDocCaptured
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("persist secondary document for customer %s: %w", customerID, err)
	}

	log.Printf("onboarding: customer %s secondary document captured (primary similarity %.4f)", c.ID, similarity)

	return &SecondaryResult{
		SanityMatch: similarity > s.liveThreshold,
		Similarity:  similarity,
		State:       c.State,
		Customer:    c,
	}, nil
}

// LivenessOutcome is the result of the liveness stage.
type LivenessOutcome struct {
	Accepted bool                    `json:"accepted"`
	Result   customer.LivenessResult `json:"result"`
	State    customer.State          `json:"state"`
}

// SubmitLivenessCapture runs the liveness stage on a short video capture.
// Overall acceptance requires the capture to be live AND its embedding to
// match both stored document embeddings. The full outcome is persisted
// for audit regardless of success; on failure the record stays in
// SecondaryDocCaptured so the stage can be retried.
func (s *Service) SubmitLivenessCapture(ctx context.Context, customerID string, videoData []byte) (*LivenessOutcome, error) {
	c, err := s.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.CanSubmitLiveness(); err != nil {
		return nil, err
	}

	capture, err := s.extractor.ExtractVideo(ctx, videoData)
	if err != nil {
		return nil, fmt.Errorf("%w: liveness stage for customer %s: %w", ErrExtractionFailed, customerID, err)
	}

	result := customer.LivenessResult{
		IsLive:      capture.IsLive,
		Cues:        capture.Cues,
		CompletedAt: time.Now().UTC(),
	}

	if capture.IsLive && len(capture.Embedding) > 0 {
		result.PrimaryMatch = verify.IsMatch(capture.Embedding, c.PrimaryDocEmbedding, s.liveThreshold)
		result.SecondaryMatch = verify.IsMatch(capture.Embedding, c.SecondaryDocEmbedding, s.liveThreshold)
		c.LiveEmbedding = capture.Embedding
	}

	c.LivenessResult = &result
	if result.Accepted() {
		c.State = customer.StateLivenessCompleted
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("persist liveness result for customer %s: %w", customerID, err)
	}

	log.Printf("onboarding: customer %s liveness stage: live=%v primary=%v secondary=%v accepted=%v",
		c.ID, result.IsLive, result.PrimaryMatch, result.SecondaryMatch, result.Accepted())

	return &LivenessOutcome{
		Accepted: result.Accepted(),
		Result:   result,
		State:    c.State,
	}, nil
}

// ExistingMatch is the result of verifying a returning customer by face.
type ExistingMatch struct {
	Match      bool              `json:"match"`
	Similarity float64           `json:"similarity,omitempty"`
	Field      string            `json:"matched_field,omitempty"`
	Customer   *customer.Summary `json:"customer,omitempty"`
}

// VerifyExisting searches the whole population, across both document
// embedding fields, for the best match to a probe image. Used to identify
// a returning customer without re-running onboarding.
func (s *Service) VerifyExisting(ctx context.Context, imageData []byte) (*ExistingMatch, error) {
	embedding, err := s.extractor.ExtractImage(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: existing-customer verification: %w", ErrExtractionFailed, err)
	}

	population, err := s.population(ctx, embedding)
	if err != nil {
		return nil, err
	}

	best, similarity := s.resolver.BestMatch(ctx, embedding, population)
	if best == nil || similarity <= s.resolver.Threshold() {
		return &ExistingMatch{Match: false}, nil
	}

	matched, err := s.store.Get(ctx, best.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load matched customer %s: %w", best.CustomerID, err)
	}
	summary := matched.Summarize()

	return &ExistingMatch{
		Match:      true,
		Similarity: similarity,
		Field:      best.Field,
		Customer:   &summary,
	}, nil
}

// existingSearchLimit bounds the HNSW pre-filter for VerifyExisting.
const existingSearchLimit = 32

// population builds the scan set for existing-customer verification,
// using the HNSW index as a pre-filter when it can serve the query.
func (s *Service) population(ctx context.Context, embedding []float32) ([]verify.PopulationEntry, error) {
	if s.index != nil {
		if nearest, ok := s.index.Nearest(embedding, existingSearchLimit); ok {
			return nearest, nil
		}
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load population: %w", err)
	}
	return store.PopulationFor(all, "", customer.FieldPrimaryDoc, customer.FieldSecondaryDoc), nil
}

// GetCustomer returns one customer record.
func (s *Service) GetCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	return s.store.Get(ctx, id)
}

// ListCustomers returns all customers, optionally filtered by a
// diacritic-insensitive name query.
func (s *Service) ListCustomers(ctx context.Context, nameQuery string) ([]*customer.Customer, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if nameQuery == "" {
		return all, nil
	}

	filtered := make([]*customer.Customer, 0, len(all))
	for _, c := range all {
		if customer.NameMatches(c.Name, nameQuery) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// BlacklistCustomer removes a customer record entirely. Matches the
// source system's hard-delete semantics; there is no tombstone.
func (s *Service) BlacklistCustomer(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		s.index.Remove(id)
	}
	log.Printf("onboarding: customer %s blacklisted and removed", id)
	return nil
}

// RebuildIndex reloads every stored document embedding into the
// population index. No-op when the index is disabled.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load population for reindex: %w", err)
	}
	entries := store.PopulationFor(all, "", customer.FieldPrimaryDoc, customer.FieldSecondaryDoc)
	s.index.Rebuild(entries)
	return s.index.Len(), nil
}
