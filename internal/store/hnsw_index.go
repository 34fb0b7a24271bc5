package store

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/averma/kyc-verify/internal/verify"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// PopulationIndex is an in-memory HNSW index over stored document
// embeddings. It narrows the duplicate search to the nearest candidates
// before the resolver computes exact scores; with a small population the
// resolver's full scan is used instead.
type PopulationIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries map[string]verify.PopulationEntry // keyed by customerID + "/" + field
	dim     int
}

// NewPopulationIndex creates an empty index.
func NewPopulationIndex() *PopulationIndex {
	return &PopulationIndex{
		entries: make(map[string]verify.PopulationEntry),
	}
}

func entryKey(e verify.PopulationEntry) string {
	return e.CustomerID + "/" + e.Field
}

// Rebuild replaces the index contents with the given entries. Entries
// whose dimensionality differs from the first one seen are skipped; the
// resolver's full scan still covers them.
func (p *PopulationIndex) Rebuild(entries []verify.PopulationEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	p.entries = make(map[string]verify.PopulationEntry, len(entries))
	p.dim = 0

	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		if p.dim == 0 {
			p.dim = len(e.Embedding)
		}
		if len(e.Embedding) != p.dim {
			continue
		}
		g.Add(hnsw.MakeNode(entryKey(e), e.Embedding))
		p.entries[entryKey(e)] = e
	}

	p.graph = g
}

// Add inserts or replaces one entry.
func (p *PopulationIndex) Add(e verify.PopulationEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(e.Embedding) == 0 {
		return
	}
	if p.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = hnswMaxNeighbors
		g.Ml = 1.0 / float64(hnswMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		p.graph = g
	}
	if p.dim == 0 {
		p.dim = len(e.Embedding)
	}
	if len(e.Embedding) != p.dim {
		return
	}

	p.graph.Add(hnsw.MakeNode(entryKey(e), e.Embedding))
	p.entries[entryKey(e)] = e
}

// Remove drops all entries for a customer id. The HNSW graph has no true
// deletion; removed entries are filtered out of search results.
func (p *PopulationIndex) Remove(customerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, e := range p.entries {
		if e.CustomerID == customerID {
			delete(p.entries, key)
		}
	}
}

// Nearest returns up to k nearest entries to the query embedding, in
// graph order. Returns ok=false when the index is empty or the query
// dimensionality does not match, in which case callers fall back to a
// full population scan.
func (p *PopulationIndex) Nearest(query []float32, k int) ([]verify.PopulationEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.graph == nil || len(p.entries) == 0 || len(query) != p.dim {
		return nil, false
	}

	neighbors := p.graph.Search(query, k)
	results := make([]verify.PopulationEntry, 0, len(neighbors))
	for _, n := range neighbors {
		if e, ok := p.entries[n.Key]; ok {
			results = append(results, e)
		}
	}
	return results, true
}

// Len returns the number of indexed entries.
func (p *PopulationIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
