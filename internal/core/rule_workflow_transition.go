package core

import (
	"context"
	"fmt"

	"procureflow/pkg/domain"
)

const workflowTransitionRuleName = "workflow_transition"

// WorkflowTransitionRule blocks unknown statuses and warns when an entity
// moves backwards along its progression order.
func WorkflowTransitionRule() domain.Rule {
	return workflowTransitionRule{}
}

type workflowTransitionRule struct{}

type workflowMachine struct {
	label string
	order map[string]int
	// exempt statuses may be entered or left without a backwards warning.
	exempt map[string]struct{}
}

func (m workflowMachine) known(status string) bool {
	if _, ok := m.order[status]; ok {
		return true
	}
	_, ok := m.exempt[status]
	return ok
}

var workflowMachines = map[domain.EntityType]workflowMachine{
	domain.EntityRequirement: {
		label: "requirement",
		order: toOrder(
			string(domain.RequirementDraft),
			string(domain.RequirementScouting),
			string(domain.RequirementOutreach),
			string(domain.RequirementSampling),
			string(domain.RequirementQualityReview),
			string(domain.RequirementCostAnalysis),
			string(domain.RequirementNegotiation),
			string(domain.RequirementShortlisted),
			string(domain.RequirementOnboarding),
			string(domain.RequirementCompleted),
		),
		exempt: toSet(string(domain.RequirementRejected)),
	},
	domain.EntitySupplier: {
		label: "supplier",
		order: toOrder(
			string(domain.SupplierDiscovered),
			string(domain.SupplierContacted),
			string(domain.SupplierResponded),
			string(domain.SupplierSampleRequested),
			string(domain.SupplierSampleReceived),
			string(domain.SupplierQualityApproved),
			string(domain.SupplierCostAnalyzed),
			string(domain.SupplierNegotiating),
			string(domain.SupplierShortlisted),
			string(domain.SupplierOnboarding),
		),
		exempt: toSet(string(domain.SupplierQualityRejected), string(domain.SupplierRejected)),
	},
}

func (workflowTransitionRule) Name() string { return workflowTransitionRuleName }

func (workflowTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := workflowMachines[change.Entity]
		if !ok {
			continue
		}
		if !machine.known(change.To) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     workflowTransitionRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s %d is set to unknown status %q", machine.label, change.EntityID, change.To),
				Entity:   change.Entity,
				EntityID: change.EntityID,
			})
			continue
		}
		if change.Action != domain.ActionUpdate {
			continue
		}
		from, fromOrdered := machine.order[change.From]
		to, toOrdered := machine.order[change.To]
		if !fromOrdered || !toOrdered || to >= from {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     workflowTransitionRuleName,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s %d moved backwards from %s to %s", machine.label, change.EntityID, change.From, change.To),
			Entity:   change.Entity,
			EntityID: change.EntityID,
		})
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func toOrder(values ...string) map[string]int {
	order := make(map[string]int, len(values))
	for i, v := range values {
		order[v] = i
	}
	return order
}
