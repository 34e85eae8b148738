// Package domain defines the procurement workflow entities, status
// vocabularies, and rule evaluation primitives used by procureflow.
package domain

import "time"

// EntityType identifies the type of record tracked by the workflow engine.
type EntityType string

// Supported entity type identifiers used in Change records and errors.
const (
	// EntityRequirement identifies a procurement requirement.
	EntityRequirement EntityType = "requirement"
	// EntitySupplier identifies a candidate supplier.
	EntitySupplier EntityType = "supplier"
	// EntitySample identifies a priced trial sample.
	EntitySample EntityType = "sample"
	// EntityShortlistEntry identifies a ranked shortlist recommendation.
	EntityShortlistEntry EntityType = "shortlist_entry"
)

// RequirementStatus enumerates the workflow stages of a requirement.
type RequirementStatus string

// Requirement stages in progression order. Rejected is reachable from
// quality review; completed is reserved for a later stage.
const (
	RequirementDraft         RequirementStatus = "draft"
	RequirementScouting      RequirementStatus = "scouting"
	RequirementOutreach      RequirementStatus = "outreach"
	RequirementSampling      RequirementStatus = "sampling"
	RequirementQualityReview RequirementStatus = "quality_review"
	RequirementCostAnalysis  RequirementStatus = "cost_analysis"
	RequirementNegotiation   RequirementStatus = "negotiation"
	RequirementShortlisted   RequirementStatus = "shortlisted"
	RequirementOnboarding    RequirementStatus = "onboarding"
	RequirementCompleted     RequirementStatus = "completed"
	RequirementRejected      RequirementStatus = "rejected"
)

// SupplierStatus enumerates the lifecycle of a candidate supplier.
type SupplierStatus string

// Supplier lifecycle states in progression order.
const (
	SupplierDiscovered      SupplierStatus = "discovered"
	SupplierContacted       SupplierStatus = "contacted"
	SupplierResponded       SupplierStatus = "responded"
	SupplierSampleRequested SupplierStatus = "sample_requested"
	SupplierSampleReceived  SupplierStatus = "sample_received"
	SupplierQualityApproved SupplierStatus = "quality_approved"
	SupplierQualityRejected SupplierStatus = "quality_rejected"
	SupplierCostAnalyzed    SupplierStatus = "cost_analyzed"
	SupplierNegotiating     SupplierStatus = "negotiating"
	SupplierShortlisted     SupplierStatus = "shortlisted"
	SupplierOnboarding      SupplierStatus = "onboarding"
	SupplierRejected        SupplierStatus = "rejected"
)

// NegotiationOutcome records how a negotiation round ended.
type NegotiationOutcome string

// Negotiation round outcomes.
const (
	OutcomePending        NegotiationOutcome = "pending"
	OutcomePartialSuccess NegotiationOutcome = "partial_success"
	OutcomeSuccess        NegotiationOutcome = "success"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Requirement is a single procurement need driving one workflow instance.
type Requirement struct {
	ID                     int64             `json:"id"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	Category               string            `json:"category"`
	Quantity               float64           `json:"quantity"`
	Unit                   string            `json:"unit"`
	RequiredCertifications []string          `json:"required_certifications"`
	Status                 RequirementStatus `json:"status"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
	Suppliers              []Supplier        `json:"suppliers"`
	Shortlist              []ShortlistEntry  `json:"shortlist"`
}

// Supplier is a candidate vendor evaluated against a requirement.
type Supplier struct {
	ID                    int64                  `json:"id"`
	RequirementID         int64                  `json:"requirement_id"`
	Name                  string                 `json:"name"`
	Status                SupplierStatus         `json:"status"`
	AvailabilityScope     *bool                  `json:"availability_scope"`
	SelectedForOutreach   bool                   `json:"selected_for_outreach"`
	ExperienceYears       int                    `json:"experience_years"`
	QualityRating         float64                `json:"quality_rating"`
	DeliveryReliability   float64                `json:"delivery_reliability"`
	PriceCompetitiveness  float64                `json:"price_competitiveness"`
	OverallScore          float64                `json:"overall_score"`
	Certifications        []string               `json:"certifications"`
	ContactMethod         string                 `json:"contact_method"`
	Notes                 string                 `json:"notes"`
	Sample                *Sample                `json:"sample"`
	CostAnalysis          *CostAnalysis          `json:"cost_analysis"`
	NegotiationIterations []NegotiationIteration `json:"negotiation_iterations"`
}

// Sample is a priced trial order used to validate quality before commitment.
// Quality fields stay nil until the sample has been reviewed.
type Sample struct {
	ID                int64      `json:"id"`
	Quantity          float64    `json:"quantity"`
	PriceQuoted       float64    `json:"price_quoted"`
	PricePerUnit      float64    `json:"price_per_unit"`
	DeliveryAddress   string     `json:"delivery_address"`
	QualityApproved   *bool      `json:"quality_approved"`
	QualityNotes      *string    `json:"quality_notes"`
	QualityReviewedBy *string    `json:"quality_reviewed_by"`
	QualityReviewedAt *time.Time `json:"quality_reviewed_at"`
}

// Reviewed reports whether a quality decision has been recorded.
func (s Sample) Reviewed() bool { return s.QualityApproved != nil }

// CostAnalysis is the derived savings computation justifying supplier selection.
type CostAnalysis struct {
	TotalCost           float64 `json:"total_cost"`
	Savings             float64 `json:"savings"`
	SavingsPercentage   float64 `json:"savings_percentage"`
	MeetsExpectations   bool    `json:"meets_expectations"`
	CurrentSupplierCost float64 `json:"current_supplier_cost"`
}

// NegotiationIteration is one simulated round of price negotiation.
type NegotiationIteration struct {
	IterationNumber int                `json:"iteration_number"`
	ProposedCost    float64            `json:"proposed_cost"`
	TargetCost      float64            `json:"target_cost"`
	Outcome         NegotiationOutcome `json:"outcome"`
	Notes           string             `json:"notes"`
}

// ShortlistEntry is a ranked, scored recommendation of a supplier. SupplierID
// is a weak reference resolved against the owning requirement's suppliers.
type ShortlistEntry struct {
	SupplierID      int64     `json:"supplier_id"`
	Rank            int       `json:"rank"`
	IntegratedScore float64   `json:"integrated_score"`
	CostScore       float64   `json:"cost_score"`
	QualityScore    float64   `json:"quality_score"`
	Recommendation  string    `json:"recommendation"`
	CreatedAt       time.Time `json:"created_at"`
}

// FindSupplier returns a mutable reference to the supplier with the given id.
func (r *Requirement) FindSupplier(id int64) (*Supplier, bool) {
	for i := range r.Suppliers {
		if r.Suppliers[i].ID == id {
			return &r.Suppliers[i], true
		}
	}
	return nil, false
}

// FindSampleOwner returns the supplier whose sample carries the given id.
func (r *Requirement) FindSampleOwner(sampleID int64) (*Supplier, bool) {
	for i := range r.Suppliers {
		if s := r.Suppliers[i].Sample; s != nil && s.ID == sampleID {
			return &r.Suppliers[i], true
		}
	}
	return nil, false
}

// Change describes a status transition applied to an entity during a
// transaction. From is empty for newly created entities.
type Change struct {
	Entity   EntityType
	Action   Action
	EntityID int64
	From     string
	To       string
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the modifications captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// Filter returns the violations with the given severity.
func (r Result) Filter(severity Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
