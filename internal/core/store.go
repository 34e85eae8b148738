package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"procureflow/pkg/domain"
)

// EntityStore is the canonical in-memory graph of requirements plus the
// monotonic id counters. It is plain data; the Service owns one instance per
// request and hands a deep clone to each transaction.
type EntityStore struct {
	NextRequirementID int64                  `json:"next_requirement_id"`
	NextSupplierID    int64                  `json:"next_supplier_id"`
	NextSampleID      int64                  `json:"next_sample_id"`
	Requirements      map[int64]*Requirement `json:"requirements"`
}

// NewEntityStore returns an empty store with counters starting at 1.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		NextRequirementID: 1,
		NextSupplierID:    1,
		NextSampleID:      1,
		Requirements:      make(map[int64]*Requirement),
	}
}

// DecodeEntityStore parses a snapshot produced by Encode. Counters are raised
// above any id present so restored snapshots never reissue ids.
func DecodeEntityStore(payload []byte) (*EntityStore, error) {
	store := &EntityStore{}
	if err := json.Unmarshal(payload, store); err != nil {
		return nil, fmt.Errorf("decode entity store: %w", err)
	}
	store.normalize()
	return store, nil
}

// Encode serialises the store as a JSON snapshot.
func (s *EntityStore) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func (s *EntityStore) normalize() {
	if s.Requirements == nil {
		s.Requirements = make(map[int64]*Requirement)
	}
	var maxReq, maxSup, maxSample int64
	for id, req := range s.Requirements {
		if req == nil {
			delete(s.Requirements, id)
			continue
		}
		req.ID = id
		maxReq = max(maxReq, id)
		normalizeRequirement(req)
		for i := range req.Suppliers {
			maxSup = max(maxSup, req.Suppliers[i].ID)
			if sample := req.Suppliers[i].Sample; sample != nil {
				maxSample = max(maxSample, sample.ID)
			}
		}
	}
	s.NextRequirementID = max(s.NextRequirementID, maxReq+1, 1)
	s.NextSupplierID = max(s.NextSupplierID, maxSup+1, 1)
	s.NextSampleID = max(s.NextSampleID, maxSample+1, 1)
}

// normalizeRequirement replaces nil slices so snapshots always render lists.
func normalizeRequirement(req *Requirement) {
	if req.RequiredCertifications == nil {
		req.RequiredCertifications = []string{}
	}
	if req.Suppliers == nil {
		req.Suppliers = []Supplier{}
	}
	if req.Shortlist == nil {
		req.Shortlist = []ShortlistEntry{}
	}
	for i := range req.Suppliers {
		sup := &req.Suppliers[i]
		if sup.Certifications == nil {
			sup.Certifications = []string{}
		}
		if sup.NegotiationIterations == nil {
			sup.NegotiationIterations = []NegotiationIteration{}
		}
	}
}

// Clone returns a deep copy safe for independent mutation.
func (s *EntityStore) Clone() *EntityStore {
	cloned := &EntityStore{
		NextRequirementID: s.NextRequirementID,
		NextSupplierID:    s.NextSupplierID,
		NextSampleID:      s.NextSampleID,
		Requirements:      make(map[int64]*Requirement, len(s.Requirements)),
	}
	for id, req := range s.Requirements {
		cp := cloneRequirement(*req)
		cloned.Requirements[id] = &cp
	}
	return cloned
}

func cloneRequirement(r Requirement) Requirement {
	cp := r
	cp.RequiredCertifications = slices.Clone(r.RequiredCertifications)
	cp.Shortlist = slices.Clone(r.Shortlist)
	cp.Suppliers = make([]Supplier, len(r.Suppliers))
	for i, sup := range r.Suppliers {
		cp.Suppliers[i] = cloneSupplier(sup)
	}
	return cp
}

func cloneSupplier(s Supplier) Supplier {
	cp := s
	cp.Certifications = slices.Clone(s.Certifications)
	cp.NegotiationIterations = slices.Clone(s.NegotiationIterations)
	if s.AvailabilityScope != nil {
		cp.AvailabilityScope = ptr(*s.AvailabilityScope)
	}
	if s.Sample != nil {
		sample := cloneSample(*s.Sample)
		cp.Sample = &sample
	}
	if s.CostAnalysis != nil {
		ca := *s.CostAnalysis
		cp.CostAnalysis = &ca
	}
	return cp
}

func cloneSample(s Sample) Sample {
	cp := s
	if s.QualityApproved != nil {
		cp.QualityApproved = ptr(*s.QualityApproved)
	}
	if s.QualityNotes != nil {
		cp.QualityNotes = ptr(*s.QualityNotes)
	}
	if s.QualityReviewedBy != nil {
		cp.QualityReviewedBy = ptr(*s.QualityReviewedBy)
	}
	if s.QualityReviewedAt != nil {
		cp.QualityReviewedAt = ptr(*s.QualityReviewedAt)
	}
	return cp
}

func ptr[T any](v T) *T { return &v }

// Requirement returns a mutable reference to the requirement with id.
func (s *EntityStore) Requirement(id int64) (*Requirement, error) {
	req, ok := s.Requirements[id]
	if !ok {
		return nil, domain.NotFoundError{Entity: EntityRequirement, ID: id}
	}
	return req, nil
}

// SupplierOwner finds the requirement owning supplier id by linear scan.
func (s *EntityStore) SupplierOwner(id int64) (*Requirement, *Supplier, error) {
	for _, reqID := range s.RequirementIDs() {
		req := s.Requirements[reqID]
		if sup, ok := req.FindSupplier(id); ok {
			return req, sup, nil
		}
	}
	return nil, nil, domain.NotFoundError{Entity: EntitySupplier, ID: id}
}

// SampleOwner finds the requirement and supplier owning sample id.
func (s *EntityStore) SampleOwner(id int64) (*Requirement, *Supplier, error) {
	for _, reqID := range s.RequirementIDs() {
		req := s.Requirements[reqID]
		if sup, ok := req.FindSampleOwner(id); ok {
			return req, sup, nil
		}
	}
	return nil, nil, domain.NotFoundError{Entity: EntitySample, ID: id}
}

// RequirementIDs returns all requirement ids in ascending order.
func (s *EntityStore) RequirementIDs() []int64 {
	return slices.Sorted(maps.Keys(s.Requirements))
}

// AllocateRequirementID returns the next requirement id and advances the counter.
func (s *EntityStore) AllocateRequirementID() int64 {
	id := s.NextRequirementID
	s.NextRequirementID++
	return id
}

// AllocateSupplierID returns the next supplier id and advances the counter.
func (s *EntityStore) AllocateSupplierID() int64 {
	id := s.NextSupplierID
	s.NextSupplierID++
	return id
}

// AllocateSampleID returns the next sample id and advances the counter.
func (s *EntityStore) AllocateSampleID() int64 {
	id := s.NextSampleID
	s.NextSampleID++
	return id
}

// TransactionView exposes a read-only snapshot of the transactional state to rules.
type TransactionView struct {
	store *EntityStore
}

func newTransactionView(store *EntityStore) TransactionView {
	return TransactionView{store: store}
}

// ListRequirements returns deep copies of all requirements ordered by id.
func (v TransactionView) ListRequirements() []Requirement {
	ids := v.store.RequirementIDs()
	out := make([]Requirement, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneRequirement(*v.store.Requirements[id]))
	}
	return out
}

// FindRequirement returns a copy of the requirement with id.
func (v TransactionView) FindRequirement(id int64) (Requirement, bool) {
	req, ok := v.store.Requirements[id]
	if !ok {
		return Requirement{}, false
	}
	return cloneRequirement(*req), true
}

// FindSupplier returns a copy of the supplier with id.
func (v TransactionView) FindSupplier(id int64) (Supplier, bool) {
	_, sup, err := v.store.SupplierOwner(id)
	if err != nil {
		return Supplier{}, false
	}
	return cloneSupplier(*sup), true
}

// touchTime returns now, or the instant just after prev when the clock has
// not advanced past it.
func touchTime(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
