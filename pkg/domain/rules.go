package domain

import (
	"context"
	"fmt"
	"slices"
)

// RuleView is the read-only state a rule sees: the working copy of the
// store after the operation's changes, before commit.
type RuleView interface {
	ListRequirements() []Requirement
	FindRequirement(id int64) (Requirement, bool)
	FindSupplier(id int64) (Supplier, bool)
}

// Rule inspects the changes of one transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine runs its rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with no rules.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends rules to the evaluation order.
func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns a copy of the registered rules.
func (e *RulesEngine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Evaluate runs every rule and merges their violations. Violations that do
// not name their rule are attributed to the rule that produced them. The
// first rule error aborts evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}
