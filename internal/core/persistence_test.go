package core

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"procureflow/internal/infra/persistence/memory"
	"procureflow/pkg/domain"
)

type scriptedSlot struct {
	payload  []byte
	loadErr  error
	saveErr  error
	clearErr error
	saves    int
}

func (s *scriptedSlot) Load(context.Context) ([]byte, error) { return s.payload, s.loadErr }

func (s *scriptedSlot) Save(_ context.Context, payload []byte) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.payload = payload
	return nil
}

func (s *scriptedSlot) Clear(context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.payload = nil
	return nil
}

func (s *scriptedSlot) Driver() string { return "scripted" }

func TestPersistenceRoundTripsThroughSlot(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot()
	svc := NewService(slot, nil, WithClock(stubClock{t: testEpoch}), WithPriceSource(FixedPrice(0)))
	id := mustCreateRequirement(t, svc, officeChairs())
	if _, _, err := svc.StartScouting(ctx, id); err != nil {
		t.Fatalf("scout: %v", err)
	}

	// A second service over the same slot sees the committed state.
	restored := NewService(slot, nil)
	req, err := restored.GetRequirement(ctx, id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(req.Suppliers) != 3 || req.Status != "sampling" {
		t.Fatalf("unexpected restored requirement %+v", req)
	}
	created, _, err := restored.CreateRequirement(ctx, RequirementInput{Title: "Follow-up"})
	if err != nil || created.ID != id+1 {
		t.Fatalf("expected counters restored, got %+v %v", created, err)
	}
}

func TestPersistenceCorruptSnapshotResets(t *testing.T) {
	log := &captureLogger{}
	slot := &scriptedSlot{payload: []byte("{\"requirements\": [oops")}
	svc := NewService(slot, nil, WithLogger(log))

	list, err := svc.ListRequirements(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty state after corrupt snapshot, got %v %v", list, err)
	}
	if !log.has("w:discarding corrupt snapshot") {
		t.Fatalf("expected corrupt snapshot warning, got %v", log.calls)
	}
	if _, err := DecodeEntityStore(slot.payload); err != nil {
		t.Fatalf("expected slot overwritten with a valid snapshot: %v", err)
	}
}

func TestPersistenceUnavailableSlotFallsBackToMemory(t *testing.T) {
	log := &captureLogger{}
	slot := &scriptedSlot{loadErr: errors.New("storage disabled")}
	svc := NewService(slot, nil, WithLogger(log))
	ctx := context.Background()

	id := mustCreateRequirement(t, svc, RequirementInput{Title: "Pens"})
	if !svc.Persistence().MemoryOnly() {
		t.Fatalf("expected memory-only mode after load failure")
	}
	if !log.has("w:snapshot slot unavailable; continuing in memory") {
		t.Fatalf("expected fallback warning, got %v", log.calls)
	}
	if slot.saves != 0 {
		t.Fatalf("expected no writes to an unavailable slot, got %d", slot.saves)
	}
	req, err := svc.GetRequirement(ctx, id)
	if err != nil || req.Title != "Pens" {
		t.Fatalf("expected state retained in memory, got %+v %v", req, err)
	}
}

func TestPersistenceSaveFailureIsLoggedNotReturned(t *testing.T) {
	log := &captureLogger{}
	slot := &scriptedSlot{saveErr: errors.New("quota exceeded")}
	svc := NewService(slot, nil, WithLogger(log))

	if _, _, err := svc.CreateRequirement(context.Background(), RequirementInput{Title: "Ink"}); err != nil {
		t.Fatalf("expected save failure swallowed, got %v", err)
	}
	if !log.has("e:persist snapshot") {
		t.Fatalf("expected storage error log, got %v", log.calls)
	}
}

func TestPersistenceSavesAfterFailedRequest(t *testing.T) {
	slot := &scriptedSlot{}
	svc := NewService(slot, nil)
	if _, _, err := svc.StartScouting(context.Background(), 12); err == nil {
		t.Fatalf("expected not found")
	}
	if slot.saves != 1 {
		t.Fatalf("expected snapshot saved after failed request, got %d saves", slot.saves)
	}
}

func TestServiceResetClearsSlot(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot()
	svc := NewService(slot, nil)
	mustCreateRequirement(t, svc, RequirementInput{Title: "Tape"})

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	payload, _ := slot.Load(ctx)
	if payload != nil {
		t.Fatalf("expected slot cleared, got %s", payload)
	}
	list, _ := svc.ListRequirements(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty state after reset, got %+v", list)
	}

	failing := NewService(&scriptedSlot{clearErr: errors.New("locked")}, nil)
	if err := failing.Reset(ctx); err == nil {
		t.Fatalf("expected reset error")
	}
}

func TestPersistenceNilSlot(t *testing.T) {
	p := NewPersistence(nil, nil)
	if !p.MemoryOnly() || p.Driver() != "memory" {
		t.Fatalf("expected memory-only adapter, got driver %s", p.Driver())
	}
	store := NewEntityStore()
	store.AllocateRequirementID()
	if err := p.Save(context.Background(), store); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := p.Load(context.Background()); got.NextRequirementID != 2 {
		t.Fatalf("expected in-memory snapshot, got %+v", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPersistenceSaveReturnsEncodeFailure(t *testing.T) {
	ctx := context.Background()
	slot := &scriptedSlot{}
	p := NewPersistence(slot, nil)
	good := NewEntityStore()
	good.AllocateRequirementID()
	if err := p.Save(ctx, good); err != nil {
		t.Fatalf("save: %v", err)
	}

	bad := good.Clone()
	bad.Requirements[9] = &Requirement{ID: 9, Title: "Broken", Quantity: math.Inf(1)}
	err := p.Save(ctx, bad)
	var unsupported *json.UnsupportedValueError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected encode error, got %v", err)
	}
	var storageErr domain.StorageError
	if errors.As(err, &storageErr) {
		t.Fatalf("encode failure must not be reported as a storage error")
	}
	if slot.saves != 1 {
		t.Fatalf("expected slot untouched by failed encode, got %d saves", slot.saves)
	}
	if got := p.Load(ctx); len(got.Requirements) != 0 || got.NextRequirementID != 2 {
		t.Fatalf("expected last good snapshot, got %+v", got)
	}
}

func TestRunFailsWhenSnapshotCannotEncode(t *testing.T) {
	ctx := context.Background()
	slot := &scriptedSlot{}
	svc := NewService(slot, nil)

	_, err := svc.run(ctx, "corrupt", func(tx *Transaction) (int64, error) {
		id := tx.Store().AllocateRequirementID()
		tx.Store().Requirements[id] = &Requirement{ID: id, Title: "Broken", Quantity: math.NaN(), Status: domain.RequirementScouting}
		return id, nil
	})
	if err == nil || domain.StatusCode(err) != 500 {
		t.Fatalf("expected internal error for an unencodable snapshot, got %v", err)
	}

	created, _, err := svc.CreateRequirement(ctx, RequirementInput{Title: "Kept"})
	if err != nil || created.ID != 1 {
		t.Fatalf("expected id 1 to be issued once, got %+v %v", created, err)
	}
	restored, err := DecodeEntityStore(slot.payload)
	if err != nil {
		t.Fatalf("decode slot: %v", err)
	}
	if len(restored.Requirements) != 1 || restored.Requirements[1].Title != "Kept" {
		t.Fatalf("expected only the committed requirement, got %+v", restored.Requirements)
	}
}
