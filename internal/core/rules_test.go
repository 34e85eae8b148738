package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"procureflow/pkg/domain"
)

func TestDefaultRulesEngineRegistersWorkflowRules(t *testing.T) {
	rules := NewDefaultRulesEngine().Rules()
	var names []string
	for _, r := range rules {
		names = append(names, r.Name())
	}
	if strings.Join(names, ",") != "workflow_transition,supplier_ownership" {
		t.Fatalf("unexpected default rules %v", names)
	}
}

func TestWorkflowTransitionRule(t *testing.T) {
	rule := WorkflowTransitionRule()
	cases := []struct {
		name     string
		change   Change
		severity Severity
	}{
		{"forward requirement", Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: 1, From: "scouting", To: "sampling"}, ""},
		{"backward requirement", Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: 1, From: "shortlisted", To: "quality_review"}, SeverityWarn},
		{"into rejected", Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: 1, From: "onboarding", To: "rejected"}, ""},
		{"out of rejected", Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: 1, From: "rejected", To: "cost_analysis"}, ""},
		{"unknown requirement status", Change{Entity: EntityRequirement, Action: ActionUpdate, EntityID: 1, From: "scouting", To: "archived"}, SeverityBlock},
		{"created supplier", Change{Entity: EntitySupplier, Action: ActionCreate, EntityID: 2, To: "discovered"}, ""},
		{"backward supplier", Change{Entity: EntitySupplier, Action: ActionUpdate, EntityID: 2, From: "cost_analyzed", To: "sample_received"}, SeverityWarn},
		{"supplier re-review", Change{Entity: EntitySupplier, Action: ActionUpdate, EntityID: 2, From: "quality_rejected", To: "cost_analyzed"}, ""},
		{"unknown supplier status", Change{Entity: EntitySupplier, Action: ActionCreate, EntityID: 2, To: "ghosted"}, SeverityBlock},
		{"untracked entity", Change{Entity: EntitySample, Action: ActionUpdate, EntityID: 3, To: "whatever"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), emptyRuleView{}, []Change{tc.change})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if tc.severity == "" {
				if len(res.Violations) != 0 {
					t.Fatalf("expected no violations, got %+v", res.Violations)
				}
				return
			}
			if len(res.Violations) != 1 || res.Violations[0].Severity != tc.severity {
				t.Fatalf("expected one %s violation, got %+v", tc.severity, res.Violations)
			}
			if res.Violations[0].EntityID != tc.change.EntityID || res.Violations[0].Rule != "workflow_transition" {
				t.Fatalf("unexpected violation detail %+v", res.Violations[0])
			}
		})
	}
}

type emptyRuleView struct{}

func (emptyRuleView) ListRequirements() []Requirement           { return nil }
func (emptyRuleView) FindRequirement(int64) (Requirement, bool) { return Requirement{}, false }
func (emptyRuleView) FindSupplier(int64) (Supplier, bool)       { return Supplier{}, false }

func TestSupplierOwnershipRule(t *testing.T) {
	store := sampleStore()
	// Supplier 2 claims requirement 1 but is listed under requirement 2.
	store.Requirements[2] = &Requirement{ID: 2, Suppliers: []Supplier{{ID: 2, RequirementID: 1}}}
	// Supplier 3 points at a requirement that does not exist.
	store.Requirements[3] = &Requirement{ID: 3, Suppliers: []Supplier{{ID: 3, RequirementID: 42}}}
	view := newTransactionView(store)
	rule := SupplierOwnershipRule()

	cases := []struct {
		name    string
		change  Change
		blocked bool
	}{
		{"owned", Change{Entity: EntitySupplier, EntityID: 1}, false},
		{"shortlist entry owned", Change{Entity: EntityShortlistEntry, EntityID: 1}, false},
		{"orphan", Change{Entity: EntitySupplier, EntityID: 99}, true},
		{"mislinked", Change{Entity: EntitySupplier, EntityID: 2}, true},
		{"missing requirement", Change{Entity: EntityShortlistEntry, EntityID: 3}, true},
		{"other entity", Change{Entity: EntityRequirement, EntityID: 99}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), view, []Change{tc.change})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if res.HasBlocking() != tc.blocked {
				t.Fatalf("expected blocked=%v, got %+v", tc.blocked, res.Violations)
			}
		})
	}
}

type blockingRule struct{ entity EntityType }

func (blockingRule) Name() string { return "test_block" }

func (r blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.Entity == r.entity {
			res.Violations = append(res.Violations, Violation{Rule: "test_block", Severity: SeverityBlock, Message: "frozen", Entity: c.Entity, EntityID: c.EntityID})
		}
	}
	return res, nil
}

type failingRule struct{}

func (failingRule) Name() string { return "failing" }

func (failingRule) Evaluate(context.Context, domain.RuleView, []Change) (Result, error) {
	return Result{}, errors.New("rule backend down")
}

func TestBlockingRuleRollsBackTransaction(t *testing.T) {
	engine := NewDefaultRulesEngine()
	engine.Register(blockingRule{entity: EntitySupplier})
	svc := NewInMemoryService(engine, WithClock(stubClock{t: testEpoch}), WithPriceSource(FixedPrice(0)))
	ctx := context.Background()
	id := mustCreateRequirement(t, svc, officeChairs())

	_, res, err := svc.StartScouting(ctx, id)
	var blocked RuleViolationError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() || domain.StatusCode(err) != 409 {
		t.Fatalf("expected blocking result mapped to 409, got %+v", res)
	}
	if !strings.Contains(err.Error(), "frozen") {
		t.Fatalf("expected violation message in error, got %v", err)
	}
	req, err := svc.GetRequirement(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(req.Suppliers) != 0 || req.Status != domain.RequirementScouting {
		t.Fatalf("expected blocked transaction rolled back, got %+v", req)
	}

	// Counters are rolled back too: the next requirement id is 2.
	created, _, err := svc.CreateRequirement(ctx, RequirementInput{Title: "Next"})
	if err != nil || created.ID != 2 {
		t.Fatalf("expected id 2 after rollback, got %+v %v", created, err)
	}
}

func TestRuleEvaluationErrorRollsBack(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(failingRule{})
	svc := NewInMemoryService(engine)
	_, _, err := svc.CreateRequirement(context.Background(), RequirementInput{Title: "X"})
	if err == nil || domain.StatusCode(err) != 500 {
		t.Fatalf("expected internal error, got %v", err)
	}
	if store := svc.Persistence().Load(context.Background()); len(store.Requirements) != 0 || store.NextRequirementID != 1 {
		t.Fatalf("expected nothing committed, got %+v", store)
	}
}

func TestBackwardTransitionWarnsButCommits(t *testing.T) {
	log := &captureLogger{}
	svc := newTestService(t, WithLogger(log))
	ctx := context.Background()
	_, sup := scoutedRequirement(t, svc)
	if _, _, err := svc.ReviewQuality(ctx, sup.Sample.ID, QualityReviewInput{QualityApproved: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, res, err := svc.GenerateSample(ctx, SampleInput{SupplierID: sup.ID})
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if res.HasBlocking() || len(res.Violations) == 0 {
		t.Fatalf("expected warn-only violations, got %+v", res.Violations)
	}
	got, _ := svc.GetSupplier(ctx, sup.ID)
	if got.Status != domain.SupplierSampleReceived {
		t.Fatalf("expected warn-level move committed, got %s", got.Status)
	}
	if !log.has("w:rule violation") {
		t.Fatalf("expected warn log, got %v", log.calls)
	}
}
