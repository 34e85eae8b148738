package core

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"procureflow/pkg/domain"
)

// Transaction is the working copy a single request mutates. It records every
// status change for rule evaluation.
type Transaction struct {
	store   *EntityStore
	now     time.Time
	prices  PriceSource
	changes []Change
}

func newTransaction(store *EntityStore, now time.Time, prices PriceSource) *Transaction {
	if prices == nil {
		prices = randomPrices{}
	}
	return &Transaction{store: store, now: now, prices: prices}
}

// Store exposes the working entity store.
func (tx *Transaction) Store() *EntityStore { return tx.store }

// Changes returns the status changes recorded so far.
func (tx *Transaction) Changes() []Change { return slices.Clone(tx.changes) }

func (tx *Transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *Transaction) setRequirementStatus(req *Requirement, status RequirementStatus) {
	if req.Status == status {
		return
	}
	tx.recordChange(Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: req.ID, From: string(req.Status), To: string(status)})
	req.Status = status
}

func (tx *Transaction) setSupplierStatus(sup *Supplier, status SupplierStatus) {
	if sup.Status == status {
		return
	}
	tx.recordChange(Change{Entity: EntitySupplier, Action: ActionUpdate, EntityID: sup.ID, From: string(sup.Status), To: string(status)})
	sup.Status = status
}

// touch advances updated_at strictly past its previous value.
func (tx *Transaction) touch(req *Requirement) {
	req.UpdatedAt = touchTime(req.UpdatedAt, tx.now)
}

// RequirementInput carries the fields accepted when creating a requirement.
type RequirementInput struct {
	Title                  string
	Description            string
	Category               string
	Quantity               float64
	Unit                   string
	RequiredCertifications []string
}

// RequirementCreated is returned by CreateRequirement.
type RequirementCreated struct {
	ID      int64             `json:"id"`
	Status  RequirementStatus `json:"status"`
	Message string            `json:"message"`
}

// RequirementSummary is one row of the requirement listing.
type RequirementSummary struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Status    RequirementStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// SupplierBrief identifies a supplier in scouting and selection responses.
type SupplierBrief struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Status SupplierStatus `json:"status"`
}

// OutreachResult summarises outreach progress for a selected supplier.
type OutreachResult struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Responded     bool           `json:"responded"`
	SampleOrdered bool           `json:"sample_ordered"`
	SampleDetails *Sample        `json:"sample_details"`
	Status        SupplierStatus `json:"status"`
	ContactMethod string         `json:"contact_method"`
}

// ScoutingResult is returned by StartScouting.
type ScoutingResult struct {
	RequirementID   int64             `json:"requirement_id"`
	SuppliersFound  int               `json:"suppliers_found"`
	Suppliers       []SupplierBrief   `json:"suppliers"`
	AutoSelected    []int64           `json:"auto_selected"`
	OutreachResults []OutreachResult  `json:"outreach_results"`
	Status          RequirementStatus `json:"status"`
	Message         string            `json:"message"`
	AutoContacted   int               `json:"auto_contacted"`
}

// SampleInput carries an explicit sample submission. Zero quantity or price
// falls back to generated values.
type SampleInput struct {
	SupplierID  int64
	Quantity    float64
	Address     string
	PriceQuoted float64
}

// SampleRecorded is returned by GenerateSample.
type SampleRecorded struct {
	SampleID int64          `json:"sample_id"`
	Message  string         `json:"message"`
	Status   SupplierStatus `json:"status"`
}

// QualityReviewInput carries a reviewer's decision on a sample.
type QualityReviewInput struct {
	QualityApproved bool
	QualityNotes    string
	ReviewedBy      string
}

// QualityReviewed is returned by ReviewQuality.
type QualityReviewed struct {
	SampleID          int64             `json:"sample_id"`
	QualityApproved   bool              `json:"quality_approved"`
	SupplierStatus    SupplierStatus    `json:"supplier_status"`
	RequirementStatus RequirementStatus `json:"requirement_status"`
	AutoAnalyzed      bool              `json:"auto_analyzed"`
	Message           string            `json:"message"`
}

// ShortlistResult is returned by CreateShortlist.
type ShortlistResult struct {
	RequirementID int64             `json:"requirement_id"`
	Shortlist     []ShortlistEntry  `json:"shortlist"`
	Status        RequirementStatus `json:"status"`
	Message       string            `json:"message"`
}

// OnboardingResult is returned by OnboardSupplier.
type OnboardingResult struct {
	SupplierID int64             `json:"supplier_id"`
	Status     RequirementStatus `json:"status"`
	Message    string            `json:"message"`
}

// SelectionResult is returned by SelectSuppliers.
type SelectionResult struct {
	RequirementID int64             `json:"requirement_id"`
	SelectedCount int               `json:"selected_count"`
	Suppliers     []SupplierBrief   `json:"suppliers"`
	Status        RequirementStatus `json:"status"`
}

// NegotiationHistory is returned by NegotiationIterations.
type NegotiationHistory struct {
	SupplierID int64                  `json:"supplier_id"`
	Iterations []NegotiationIteration `json:"iterations"`
}

// ListRequirements returns summaries ordered newest (highest id) first.
func (tx *Transaction) ListRequirements() []RequirementSummary {
	ids := tx.store.RequirementIDs()
	out := make([]RequirementSummary, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		req := tx.store.Requirements[id]
		out = append(out, RequirementSummary{ID: req.ID, Title: req.Title, Status: req.Status, CreatedAt: req.CreatedAt})
	}
	return out
}

// GetRequirement returns a deep copy of the requirement graph.
func (tx *Transaction) GetRequirement(id int64) (Requirement, error) {
	req, err := tx.store.Requirement(id)
	if err != nil {
		return Requirement{}, err
	}
	return cloneRequirement(*req), nil
}

// CreateRequirement registers a new requirement in the scouting stage.
func (tx *Transaction) CreateRequirement(in RequirementInput) (RequirementCreated, error) {
	if strings.TrimSpace(in.Title) == "" {
		return RequirementCreated{}, domain.ValidationError{Field: "title", Message: "title is required"}
	}
	if !finite(in.Quantity) {
		return RequirementCreated{}, domain.ValidationError{Field: "quantity", Message: "quantity must be a finite number"}
	}
	if in.Quantity < 0 {
		return RequirementCreated{}, domain.ValidationError{Field: "quantity", Message: "quantity must not be negative"}
	}
	certs := slices.Clone(in.RequiredCertifications)
	if certs == nil {
		certs = []string{}
	}
	id := tx.store.AllocateRequirementID()
	req := &Requirement{
		ID:                     id,
		Title:                  in.Title,
		Description:            in.Description,
		Category:               in.Category,
		Quantity:               in.Quantity,
		Unit:                   in.Unit,
		RequiredCertifications: certs,
		Status:                 domain.RequirementScouting,
		CreatedAt:              tx.now,
		UpdatedAt:              tx.now,
		Suppliers:              []Supplier{},
		Shortlist:              []ShortlistEntry{},
	}
	tx.store.Requirements[id] = req
	tx.recordChange(Change{Entity: EntityRequirement, Action: ActionCreate, EntityID: id, To: string(req.Status)})
	return RequirementCreated{
		ID:      id,
		Status:  req.Status,
		Message: "Requirement created locally. AI workflow will use simulated data.",
	}, nil
}

// StartScouting synthesises the supplier roster and fast-forwards initial
// outreach. Re-invocation returns the existing roster unchanged.
func (tx *Transaction) StartScouting(requirementID int64) (ScoutingResult, error) {
	req, err := tx.store.Requirement(requirementID)
	if err != nil {
		return ScoutingResult{}, err
	}
	if len(req.Suppliers) > 0 {
		return scoutingSummary(req, "Suppliers already scouted."), nil
	}

	templates := scoutTemplates()
	req.Suppliers = make([]Supplier, 0, len(templates))
	for i, tmpl := range templates {
		sup := Supplier{
			ID:                    tx.store.AllocateSupplierID(),
			RequirementID:         req.ID,
			Name:                  tmpl.name,
			AvailabilityScope:     ptr(true),
			SelectedForOutreach:   i < autoSelectedCount,
			ExperienceYears:       tmpl.experienceYears,
			QualityRating:         tmpl.qualityRating,
			DeliveryReliability:   tmpl.deliveryReliability,
			PriceCompetitiveness:  tmpl.priceCompetitiveness,
			OverallScore:          tmpl.overallScore,
			Certifications:        slices.Clone(tmpl.certifications),
			ContactMethod:         "Email",
			NegotiationIterations: []NegotiationIteration{},
		}
		tx.recordChange(Change{Entity: EntitySupplier, Action: ActionCreate, EntityID: sup.ID, To: string(domain.SupplierDiscovered)})
		sup.Status = domain.SupplierDiscovered
		switch i {
		case 0:
			sample := generateSample(tx.store.AllocateSampleID(), req, scoutSampleMultiplier, tx.prices)
			if !sampleFinite(sample) {
				return ScoutingResult{}, domain.ValidationError{Field: "quantity", Message: "requirement quantity is too large to quote a sample"}
			}
			sup.Sample = &sample
			sup.Notes = "Sample received automatically. Awaiting quality review."
			tx.setSupplierStatus(&sup, domain.SupplierSampleReceived)
		case 1:
			sup.Notes = "Sampling requested automatically. Awaiting delivery confirmation."
			tx.setSupplierStatus(&sup, domain.SupplierSampleRequested)
		default:
			sup.Notes = "Supplier discovered. Pending outreach."
		}
		req.Suppliers = append(req.Suppliers, sup)
	}
	tx.setRequirementStatus(req, domain.RequirementSampling)
	tx.touch(req)

	selected := countSelected(req)
	return scoutingSummary(req, fmt.Sprintf("Scouting complete. Automatically selected %d supplier(s) for outreach.", selected)), nil
}

var respondedStatuses = map[SupplierStatus]struct{}{
	domain.SupplierResponded:       {},
	domain.SupplierSampleRequested: {},
	domain.SupplierSampleReceived:  {},
	domain.SupplierQualityApproved: {},
	domain.SupplierCostAnalyzed:    {},
	domain.SupplierShortlisted:     {},
	domain.SupplierOnboarding:      {},
}

func countSelected(req *Requirement) int {
	n := 0
	for _, sup := range req.Suppliers {
		if sup.SelectedForOutreach {
			n++
		}
	}
	return n
}

func briefs(suppliers []Supplier) []SupplierBrief {
	out := make([]SupplierBrief, 0, len(suppliers))
	for _, sup := range suppliers {
		out = append(out, SupplierBrief{ID: sup.ID, Name: sup.Name, Status: sup.Status})
	}
	return out
}

func scoutingSummary(req *Requirement, message string) ScoutingResult {
	res := ScoutingResult{
		RequirementID:   req.ID,
		SuppliersFound:  len(req.Suppliers),
		Suppliers:       briefs(req.Suppliers),
		AutoSelected:    []int64{},
		OutreachResults: []OutreachResult{},
		Status:          req.Status,
		Message:         message,
	}
	for _, sup := range req.Suppliers {
		if !sup.SelectedForOutreach {
			continue
		}
		_, responded := respondedStatuses[sup.Status]
		var details *Sample
		if sup.Sample != nil {
			cp := cloneSample(*sup.Sample)
			details = &cp
		}
		res.AutoSelected = append(res.AutoSelected, sup.ID)
		res.OutreachResults = append(res.OutreachResults, OutreachResult{
			ID:            sup.ID,
			Name:          sup.Name,
			Responded:     responded,
			SampleOrdered: sup.Sample != nil,
			SampleDetails: details,
			Status:        sup.Status,
			ContactMethod: sup.ContactMethod,
		})
	}
	res.AutoContacted = len(res.AutoSelected)
	return res
}

// GenerateSample records an explicit sample submission for a supplier. A new
// sample discards any earlier cost analysis and negotiation history.
func (tx *Transaction) GenerateSample(in SampleInput) (SampleRecorded, error) {
	if in.SupplierID == 0 {
		return SampleRecorded{}, domain.ValidationError{Field: "supplier_id", Message: "supplier_id is required"}
	}
	if !finite(in.Quantity, in.PriceQuoted) {
		return SampleRecorded{}, domain.ValidationError{Message: "quantity and price_quoted must be finite numbers"}
	}
	if in.Quantity < 0 || in.PriceQuoted < 0 {
		return SampleRecorded{}, domain.ValidationError{Message: "quantity and price_quoted must not be negative"}
	}
	req, sup, err := tx.store.SupplierOwner(in.SupplierID)
	if err != nil {
		return SampleRecorded{}, err
	}

	sample := generateSample(tx.store.AllocateSampleID(), req, manualSampleMultiplier, tx.prices)
	if in.Quantity > 0 {
		sample.Quantity = in.Quantity
	}
	if in.PriceQuoted > 0 {
		sample.PriceQuoted = in.PriceQuoted
	}
	sample.PricePerUnit = roundTo(sample.PriceQuoted/sample.Quantity, 2)
	if in.Address != "" {
		sample.DeliveryAddress = in.Address
	}
	if !sampleFinite(sample) {
		return SampleRecorded{}, domain.ValidationError{Message: "sample quote is out of range"}
	}
	sup.Sample = &sample
	sup.CostAnalysis = nil
	sup.NegotiationIterations = []NegotiationIteration{}
	sup.Notes = "Sample received and ready for quality review."
	tx.setSupplierStatus(sup, domain.SupplierSampleReceived)
	tx.setRequirementStatus(req, domain.RequirementQualityReview)
	tx.touch(req)

	return SampleRecorded{
		SampleID: sample.ID,
		Message:  "Sample recorded locally. Proceed to quality review.",
		Status:   sup.Status,
	}, nil
}

// ReviewQuality records the quality decision for a sample and derives cost
// analysis and negotiation history on approval.
func (tx *Transaction) ReviewQuality(sampleID int64, in QualityReviewInput) (QualityReviewed, error) {
	req, sup, err := tx.store.SampleOwner(sampleID)
	if err != nil {
		return QualityReviewed{}, err
	}
	reviewer := in.ReviewedBy
	if reviewer == "" {
		reviewer = defaultReviewer
	}
	sample := sup.Sample
	sample.QualityApproved = ptr(in.QualityApproved)
	sample.QualityNotes = ptr(in.QualityNotes)
	sample.QualityReviewedBy = ptr(reviewer)
	sample.QualityReviewedAt = ptr(tx.now)

	message := "Quality review saved. Supplier rejected."
	if in.QualityApproved {
		ca := analyzeCost(sample.PriceQuoted)
		if !finite(ca.TotalCost, ca.Savings, ca.SavingsPercentage, ca.CurrentSupplierCost) {
			return QualityReviewed{}, domain.ValidationError{Field: "price_quoted", Message: "sample price is too large to analyse"}
		}
		sup.CostAnalysis = &ca
		sup.NegotiationIterations = negotiationRounds(ca.TotalCost)
		tx.setSupplierStatus(sup, domain.SupplierCostAnalyzed)
		tx.setRequirementStatus(req, domain.RequirementCostAnalysis)
		message = "Quality review saved. Cost analysis and negotiation simulated automatically."
	} else {
		sup.CostAnalysis = nil
		sup.NegotiationIterations = []NegotiationIteration{}
		tx.setSupplierStatus(sup, domain.SupplierQualityRejected)
		tx.setRequirementStatus(req, domain.RequirementRejected)
	}
	tx.touch(req)

	return QualityReviewed{
		SampleID:          sampleID,
		QualityApproved:   in.QualityApproved,
		SupplierStatus:    sup.Status,
		RequirementStatus: req.Status,
		AutoAnalyzed:      in.QualityApproved,
		Message:           message,
	}, nil
}

// CreateShortlist ranks eligible suppliers once; later calls return the
// existing entries untouched.
func (tx *Transaction) CreateShortlist(requirementID int64) (ShortlistResult, error) {
	req, err := tx.store.Requirement(requirementID)
	if err != nil {
		return ShortlistResult{}, err
	}
	if len(req.Shortlist) == 0 {
		entries := rankShortlist(req.Suppliers, tx.now)
		if len(entries) > 0 {
			req.Shortlist = entries
			for _, entry := range entries {
				tx.recordChange(Change{Entity: EntityShortlistEntry, Action: ActionCreate, EntityID: entry.SupplierID, To: fmt.Sprintf("rank %d", entry.Rank)})
			}
			tx.setRequirementStatus(req, domain.RequirementShortlisted)
			tx.touch(req)
		}
	}
	return ShortlistResult{
		RequirementID: req.ID,
		Shortlist:     slices.Clone(req.Shortlist),
		Status:        req.Status,
		Message:       "Shortlist generated using simulated AI scoring.",
	}, nil
}

// OnboardSupplier hands the supplier over to onboarding.
func (tx *Transaction) OnboardSupplier(supplierID int64) (OnboardingResult, error) {
	req, sup, err := tx.store.SupplierOwner(supplierID)
	if err != nil {
		return OnboardingResult{}, err
	}
	tx.setSupplierStatus(sup, domain.SupplierOnboarding)
	switch {
	case sup.Notes == "":
		sup.Notes = onboardingNote
	case !strings.Contains(sup.Notes, onboardingNote):
		sup.Notes = sup.Notes + " | " + onboardingNote
	}
	tx.setRequirementStatus(req, domain.RequirementOnboarding)
	tx.touch(req)

	return OnboardingResult{
		SupplierID: supplierID,
		Status:     req.Status,
		Message:    "Onboarding simulated. Supplier moved to SRM handoff stage.",
	}, nil
}

// SelectSuppliers flags the listed suppliers for outreach. Discovered
// suppliers are marked contacted; ids not owned by the requirement are skipped.
func (tx *Transaction) SelectSuppliers(requirementID int64, supplierIDs []int64) (SelectionResult, error) {
	if len(supplierIDs) == 0 {
		return SelectionResult{}, domain.ValidationError{Field: "supplier_ids", Message: "supplier_ids must not be empty"}
	}
	req, err := tx.store.Requirement(requirementID)
	if err != nil {
		return SelectionResult{}, err
	}
	selected := make([]Supplier, 0, len(supplierIDs))
	for _, id := range supplierIDs {
		sup, ok := req.FindSupplier(id)
		if !ok || slices.ContainsFunc(selected, func(s Supplier) bool { return s.ID == id }) {
			continue
		}
		sup.SelectedForOutreach = true
		if sup.Status == domain.SupplierDiscovered {
			sup.Notes = "Contacted via " + sup.ContactMethod + ". Awaiting supplier response."
			tx.setSupplierStatus(sup, domain.SupplierContacted)
		}
		selected = append(selected, *sup)
	}
	if len(selected) > 0 {
		if req.Status == domain.RequirementScouting {
			tx.setRequirementStatus(req, domain.RequirementOutreach)
		}
		tx.touch(req)
	}
	return SelectionResult{
		RequirementID: req.ID,
		SelectedCount: len(selected),
		Suppliers:     briefs(selected),
		Status:        req.Status,
	}, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func sampleFinite(s Sample) bool {
	return finite(s.Quantity, s.PriceQuoted, s.PricePerUnit)
}

// GetSupplier returns a copy of the supplier.
func (tx *Transaction) GetSupplier(supplierID int64) (Supplier, error) {
	_, sup, err := tx.store.SupplierOwner(supplierID)
	if err != nil {
		return Supplier{}, err
	}
	return cloneSupplier(*sup), nil
}

// NegotiationIterations returns the supplier's negotiation history.
func (tx *Transaction) NegotiationIterations(supplierID int64) (NegotiationHistory, error) {
	_, sup, err := tx.store.SupplierOwner(supplierID)
	if err != nil {
		return NegotiationHistory{}, err
	}
	iterations := slices.Clone(sup.NegotiationIterations)
	if iterations == nil {
		iterations = []NegotiationIteration{}
	}
	return NegotiationHistory{SupplierID: supplierID, Iterations: iterations}, nil
}
