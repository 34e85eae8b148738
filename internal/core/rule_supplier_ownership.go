package core

import (
	"context"
	"fmt"

	"procureflow/pkg/domain"
)

const supplierOwnershipRuleName = "supplier_ownership"

// SupplierOwnershipRule blocks commits where a touched supplier or shortlist
// entry does not resolve to the requirement that owns it.
func SupplierOwnershipRule() domain.Rule {
	return supplierOwnershipRule{}
}

type supplierOwnershipRule struct{}

func (supplierOwnershipRule) Name() string { return supplierOwnershipRuleName }

func (supplierOwnershipRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySupplier && change.Entity != domain.EntityShortlistEntry {
			continue
		}
		sup, ok := view.FindSupplier(change.EntityID)
		if !ok {
			res.Violations = append(res.Violations, ownershipViolation(change, fmt.Sprintf("supplier %d is not owned by any requirement", change.EntityID)))
			continue
		}
		req, ok := view.FindRequirement(sup.RequirementID)
		if !ok {
			res.Violations = append(res.Violations, ownershipViolation(change, fmt.Sprintf("supplier %d references missing requirement %d", sup.ID, sup.RequirementID)))
			continue
		}
		if _, owned := req.FindSupplier(sup.ID); !owned {
			res.Violations = append(res.Violations, ownershipViolation(change, fmt.Sprintf("supplier %d is not listed under requirement %d", sup.ID, req.ID)))
		}
	}
	return res, nil
}

func ownershipViolation(change domain.Change, message string) domain.Violation {
	return domain.Violation{
		Rule:     supplierOwnershipRuleName,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   change.Entity,
		EntityID: change.EntityID,
	}
}
