package verify

import (
	"context"
	"math"
	"runtime"
	"sync"
)

// OutcomeKind classifies the result of a duplicate search.
type OutcomeKind string

const (
	// OutcomeNew means no existing customer matched; enrollment may proceed.
	OutcomeNew OutcomeKind = "new"
	// OutcomeDuplicate means the face matched an existing customer enrolled
	// under the same name.
	OutcomeDuplicate OutcomeKind = "duplicate"
	// OutcomeIdentityMismatch means the face matched an existing customer
	// enrolled under a different name (fraud signal).
	OutcomeIdentityMismatch OutcomeKind = "identity_mismatch"
)

// Candidate is the onboarding attempt being classified: the freshly
// extracted embedding plus the claimed display name.
type Candidate struct {
	Embedding []float32
	Name      string
}

// PopulationEntry is one stored embedding belonging to an existing customer.
// A customer with both document embeddings populated contributes two entries.
type PopulationEntry struct {
	CustomerID string
	Name       string
	Field      string // which embedding field this entry came from
	Embedding  []float32
}

// Outcome is the resolver's classification of an onboarding attempt.
type Outcome struct {
	Kind       OutcomeKind
	Similarity float64          // best similarity found, possibly negative; 0 when population is empty
	Match      *PopulationEntry // best-matching entry, nil for OutcomeNew
}

// Resolver classifies candidate embeddings against a population snapshot.
// It holds no state between calls; the snapshot passed into Resolve is the
// only population it ever sees, which keeps classification deterministic
// and independently testable.
type Resolver struct {
	threshold float64
	workers   int
}

// NewResolver creates a resolver with the given duplicate-search threshold.
// A threshold <= 0 falls back to the default.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	return &Resolver{
		threshold: threshold,
		workers:   runtime.NumCPU(),
	}
}

// Threshold returns the duplicate-search threshold in use.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// bestMatch is the fan-in result of one worker's slice of the population.
type bestMatch struct {
	similarity float64
	entry      *PopulationEntry
}

// Resolve compares the candidate against every entry in the population
// snapshot and classifies the attempt. The scan is read-only and fans out
// across workers; each entry is an independent similarity computation.
//
// Ties on the best score keep the first-seen entry in population order,
// matching the strict greater-than comparison the decision rules were
// tuned with.
func (r *Resolver) Resolve(ctx context.Context, candidate Candidate, population []PopulationEntry) Outcome {
	best := r.scan(ctx, candidate.Embedding, population)

	if best.entry == nil || best.similarity <= r.threshold {
		return Outcome{Kind: OutcomeNew, Similarity: best.similarity}
	}

	kind := OutcomeDuplicate
	if best.entry.Name != candidate.Name {
		kind = OutcomeIdentityMismatch
	}

	return Outcome{
		Kind:       kind,
		Similarity: best.similarity,
		Match:      best.entry,
	}
}

// BestMatch returns the single highest-similarity entry and its score
// without applying the duplicate threshold. Used by the existing-customer
// verification flow, which reports any best match above its own bar.
func (r *Resolver) BestMatch(ctx context.Context, embedding []float32, population []PopulationEntry) (*PopulationEntry, float64) {
	best := r.scan(ctx, embedding, population)
	return best.entry, best.similarity
}

// scan runs the fan-out/fan-in population scan and reduces to the single
// best match. First-seen wins exact ties, so the reduction tracks the
// original population index of each worker's best entry.
func (r *Resolver) scan(ctx context.Context, embedding []float32, population []PopulationEntry) bestMatch {
	if len(population) == 0 || len(embedding) == 0 {
		return bestMatch{}
	}

	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(population) {
		workers = len(population)
	}

	type indexedBest struct {
		bestMatch
		index int
	}

	results := make(chan indexedBest, workers)
	chunk := (len(population) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(population); start += chunk {
		end := start + chunk
		if end > len(population) {
			end = len(population)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			// Start below any real score so an all-negative chunk still
			// reports its best entry.
			local := indexedBest{index: -1}
			local.similarity = math.Inf(-1)
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				sim := CosineSimilarity(embedding, population[i].Embedding)
				if sim > local.similarity {
					local.similarity = sim
					local.entry = &population[i]
					local.index = i
				}
			}
			if local.entry != nil {
				results <- local
			}
		}(start, end)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	overall := indexedBest{index: -1}
	for res := range results {
		// Strictly greater wins; on an exact tie across workers the
		// entry earlier in population order is kept.
		if overall.entry == nil ||
			res.similarity > overall.similarity ||
			(res.similarity == overall.similarity && res.index < overall.index) {
			overall = res
		}
	}

	return overall.bestMatch
}
