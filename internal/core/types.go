package core

import "procureflow/pkg/domain"

type (
	EntityType           = domain.EntityType
	RequirementStatus    = domain.RequirementStatus
	SupplierStatus       = domain.SupplierStatus
	Severity             = domain.Severity
	Requirement          = domain.Requirement
	Supplier             = domain.Supplier
	Sample               = domain.Sample
	CostAnalysis         = domain.CostAnalysis
	NegotiationIteration = domain.NegotiationIteration
	ShortlistEntry       = domain.ShortlistEntry
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	RuleViolationError   = domain.RuleViolationError
	Rule                 = domain.Rule
	RulesEngine          = domain.RulesEngine
	SnapshotSlot         = domain.SnapshotSlot
)

const (
	EntityRequirement    = domain.EntityRequirement
	EntitySupplier       = domain.EntitySupplier
	EntitySample         = domain.EntitySample
	EntityShortlistEntry = domain.EntityShortlistEntry
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
