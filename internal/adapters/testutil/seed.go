// Package testutil hosts helpers that drive the workflow service into known
// states for adapter tests.
package testutil

import (
	"context"
	"fmt"

	"procureflow/internal/core"
)

// Scouted describes a requirement after scouting together with the supplier
// that already holds a sample.
type Scouted struct {
	RequirementID int64
	SupplierID    int64
	SampleID      int64
}

// NewService returns an in-memory service with deterministic sample prices.
func NewService(opts ...core.Option) *core.Service {
	base := []core.Option{core.WithPriceSource(core.FixedPrice(0))}
	return core.NewInMemoryService(core.NewDefaultRulesEngine(), append(base, opts...)...)
}

// SeedScoutedRequirement creates and scouts a requirement with the given title.
func SeedScoutedRequirement(ctx context.Context, svc *core.Service, title string) (Scouted, error) {
	created, _, err := svc.CreateRequirement(ctx, core.RequirementInput{Title: title, Quantity: 100, Unit: "units"})
	if err != nil {
		return Scouted{}, err
	}
	if _, _, err := svc.StartScouting(ctx, created.ID); err != nil {
		return Scouted{}, err
	}
	req, err := svc.GetRequirement(ctx, created.ID)
	if err != nil {
		return Scouted{}, err
	}
	for _, sup := range req.Suppliers {
		if sup.Sample != nil {
			return Scouted{RequirementID: req.ID, SupplierID: sup.ID, SampleID: sup.Sample.ID}, nil
		}
	}
	return Scouted{}, fmt.Errorf("requirement %d has no sampled supplier", req.ID)
}
