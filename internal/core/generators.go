package core

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"procureflow/pkg/domain"
)

// PriceSource supplies the jitter used when quoting sample prices. Float64
// must return a value in [0, 1).
type PriceSource interface {
	Float64() float64
}

type randomPrices struct{}

func (randomPrices) Float64() float64 { return rand.Float64() }

// FixedPrice is a PriceSource that always returns the same fraction.
type FixedPrice float64

// Float64 implements PriceSource.
func (f FixedPrice) Float64() float64 { return float64(f) }

const (
	defaultDeliveryAddress = "Main Warehouse, New York, NY"
	defaultReviewer        = "Quality Reviewer"
	scoutSampleMultiplier  = 0.12
	manualSampleMultiplier = 0.1
	basePricePerUnit       = 120
	priceJitter            = 25
	orderQuantityFactor    = 4
	savingsRate            = 0.08
	onboardingNote         = "Onboarding initiated | Risk: Low | Timeline: 2 weeks"
	shortlistSize          = 3
	scoutedSupplierCount   = 3
	autoSelectedCount      = 2
)

type supplierTemplate struct {
	name                 string
	experienceYears      int
	qualityRating        float64
	deliveryReliability  float64
	priceCompetitiveness float64
	overallScore         float64
	certifications       []string
}

var supplierTemplates = []supplierTemplate{
	{"Global Office Supplies", 12, 4.6, 96, 84, 88, []string{"ISO 9001", "ISO 14001"}},
	{"Precision Manufacturing Group", 9, 4.4, 92, 81, 85, []string{"ISO 9001", "RoHS"}},
	{"Eco Logistics Partners", 8, 4.2, 88, 78, 80, []string{"ISO 14001"}},
	{"Prime Industrial Networks", 14, 4.7, 97, 83, 90, []string{"ISO 9001", "Six Sigma"}},
}

// scoutTemplates returns the templates used for a fresh scouting run.
func scoutTemplates() []supplierTemplate {
	return supplierTemplates[:scoutedSupplierCount]
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// generateSample quotes a trial order sized as a fraction of the requirement.
func generateSample(id int64, req *Requirement, multiplier float64, prices PriceSource) Sample {
	quantity := math.Max(1, math.Round(req.Quantity*multiplier))
	pricePerUnit := basePricePerUnit + math.Round(prices.Float64()*priceJitter)
	return Sample{
		ID:              id,
		Quantity:        quantity,
		PriceQuoted:     roundTo(quantity*pricePerUnit, 2),
		PricePerUnit:    pricePerUnit,
		DeliveryAddress: defaultDeliveryAddress,
	}
}

// analyzeCost extrapolates the sample quote to a full order and applies the
// fixed savings rate.
func analyzeCost(priceQuoted float64) CostAnalysis {
	baseline := priceQuoted * orderQuantityFactor
	savings := baseline * savingsRate
	ca := CostAnalysis{
		TotalCost:           roundTo(baseline-savings, 2),
		Savings:             roundTo(savings, 2),
		MeetsExpectations:   true,
		CurrentSupplierCost: roundTo(baseline, 2),
	}
	if ca.TotalCost != 0 {
		ca.SavingsPercentage = roundTo(ca.Savings/ca.TotalCost*100, 1)
	}
	return ca
}

// negotiationRounds synthesises the two canned negotiation iterations.
func negotiationRounds(totalCost float64) []NegotiationIteration {
	return []NegotiationIteration{
		{
			IterationNumber: 1,
			ProposedCost:    roundTo(totalCost+150, 2),
			TargetCost:      roundTo(totalCost-200, 2),
			Outcome:         domain.OutcomePartialSuccess,
			Notes:           "Supplier acknowledged savings targets and submitted revised offer.",
		},
		{
			IterationNumber: 2,
			ProposedCost:    totalCost,
			TargetCost:      roundTo(totalCost-100, 2),
			Outcome:         domain.OutcomeSuccess,
			Notes:           "Negotiation successful. Final cost meets savings expectations.",
		},
	}
}

var shortlistEligible = map[SupplierStatus]struct{}{
	domain.SupplierCostAnalyzed: {},
	domain.SupplierShortlisted:  {},
	domain.SupplierOnboarding:   {},
}

// rankShortlist scores cost-analysed suppliers. Candidates are ordered by
// total cost descending (stable), which favours the most expensive quote.
// TODO: confirm with procurement whether ranking should use savings instead.
func rankShortlist(suppliers []Supplier, now time.Time) []ShortlistEntry {
	candidates := make([]Supplier, 0, len(suppliers))
	for _, sup := range suppliers {
		if sup.CostAnalysis == nil {
			continue
		}
		if _, ok := shortlistEligible[sup.Status]; ok {
			candidates = append(candidates, sup)
		}
	}
	slices.SortStableFunc(candidates, func(a, b Supplier) int {
		return cmp.Compare(b.CostAnalysis.TotalCost, a.CostAnalysis.TotalCost)
	})
	if len(candidates) > shortlistSize {
		candidates = candidates[:shortlistSize]
	}
	entries := make([]ShortlistEntry, 0, len(candidates))
	for i, sup := range candidates {
		pct := sup.CostAnalysis.SavingsPercentage
		recommendation := "Suitable for consideration as a backup supplier."
		if i == 0 {
			recommendation = "Recommended for onboarding. Strong performance across quality and savings."
		}
		entries = append(entries, ShortlistEntry{
			SupplierID:      sup.ID,
			Rank:            i + 1,
			IntegratedScore: roundTo(sup.OverallScore+pct/2, 1),
			CostScore:       roundTo(pct+70, 1),
			QualityScore:    roundTo(sup.QualityRating*20, 1),
			Recommendation:  recommendation,
			CreatedAt:       now,
		})
	}
	return entries
}
