package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

var testEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(prefix, msg string) {
	c.mu.Lock()
	c.calls = append(c.calls, prefix+msg)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d:", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i:", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w:", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e:", msg) }

func (c *captureLogger) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{WithClock(stubClock{t: testEpoch}), WithPriceSource(FixedPrice(0))}
	return NewInMemoryService(NewDefaultRulesEngine(), append(base, opts...)...)
}

func mustCreateRequirement(t *testing.T, svc *Service, in RequirementInput) int64 {
	t.Helper()
	created, _, err := svc.CreateRequirement(context.Background(), in)
	if err != nil {
		t.Fatalf("create requirement: %v", err)
	}
	return created.ID
}

func officeChairs() RequirementInput {
	return RequirementInput{Title: "Office Chairs", Quantity: 100, Unit: "units"}
}

// scoutedRequirement creates and scouts a requirement, returning it with its
// sampled supplier.
func scoutedRequirement(t *testing.T, svc *Service) (Requirement, Supplier) {
	t.Helper()
	ctx := context.Background()
	id := mustCreateRequirement(t, svc, officeChairs())
	if _, _, err := svc.StartScouting(ctx, id); err != nil {
		t.Fatalf("start scouting: %v", err)
	}
	req, err := svc.GetRequirement(ctx, id)
	if err != nil {
		t.Fatalf("get requirement: %v", err)
	}
	for _, sup := range req.Suppliers {
		if sup.Sample != nil {
			return req, sup
		}
	}
	t.Fatalf("expected a sampled supplier after scouting")
	return Requirement{}, Supplier{}
}
