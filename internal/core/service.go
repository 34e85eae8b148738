package core

import (
	"context"
	"sync"
	"time"

	"procureflow/internal/infra/persistence/memory"
)

// Operation names reported to loggers, metrics, tracers and audit recorders.
const (
	OpListRequirements      = "list_requirements"
	OpCreateRequirement     = "create_requirement"
	OpGetRequirement        = "get_requirement"
	OpStartScouting         = "start_scouting"
	OpSelectSuppliers       = "select_suppliers"
	OpGenerateSample        = "generate_sample"
	OpReviewQuality         = "review_quality"
	OpCreateShortlist       = "create_shortlist"
	OpOnboardSupplier       = "onboard_supplier"
	OpGetSupplier           = "get_supplier"
	OpNegotiationIterations = "negotiation_iterations"
)

// Service runs workflow operations against a snapshot-backed entity store.
// Requests are serialised so every operation observes the previous commit.
type Service struct {
	mu          sync.Mutex
	persistence *Persistence
	engine      *RulesEngine
	logger      Logger
	clock       Clock
	prices      PriceSource
	metrics     MetricsRecorder
	tracer      Tracer
	audit       AuditRecorder
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the request clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPriceSource overrides the jitter source used for sample quotes.
func WithPriceSource(prices PriceSource) Option {
	return func(s *Service) {
		if prices != nil {
			s.prices = prices
		}
	}
}

// WithMetricsRecorder sets the operation metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the recorder notified of mutating operations.
func WithAuditRecorder(audit AuditRecorder) Option {
	return func(s *Service) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// NewService constructs a service persisting to slot. A nil engine installs
// the default rule set; a nil slot keeps state in memory only.
func NewService(slot SnapshotSlot, engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	svc := &Service{
		engine:  engine,
		logger:  noopLogger{},
		clock:   ClockFunc(time.Now),
		prices:  randomPrices{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.persistence = NewPersistence(slot, svc.logger)
	return svc
}

// NewInMemoryService creates a service backed by a process-local slot.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewSlot(), engine, opts...)
}

// Persistence exposes the snapshot adapter.
func (s *Service) Persistence() *Persistence { return s.persistence }

// Close releases the snapshot slot.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistence.Close()
}

// Reset empties the snapshot slot.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistence.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("snapshot cleared", "driver", s.persistence.Driver())
	return nil
}

// run executes fn against a clone of the current snapshot, evaluates rules
// over the recorded changes, and commits the clone only when fn succeeds, no
// rule blocks and the clone encodes. Otherwise the loaded snapshot is saved
// back unchanged. fn returns the
// id of the entity it acted on for audit purposes.
func (s *Service) run(ctx context.Context, op string, fn func(tx *Transaction) (int64, error)) (Result, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := s.persistence.Load(ctx)
	working := loaded.Clone()
	tx := newTransaction(working, s.clock.Now().UTC(), s.prices)

	var res Result
	entityID, err := fn(tx)
	if err == nil {
		res, err = s.engine.Evaluate(ctx, newTransactionView(working), tx.changes)
		if err == nil && res.HasBlocking() {
			err = RuleViolationError{Result: res}
		}
	}
	if err == nil {
		err = s.persistence.Save(ctx, working)
	}
	if err != nil {
		if saveErr := s.persistence.Save(ctx, loaded); saveErr != nil {
			s.logger.Error("restore snapshot", "operation", op, "error", saveErr, "request_id", RequestIDFromContext(ctx))
		}
	}

	requestID := RequestIDFromContext(ctx)
	for _, v := range res.Violations {
		switch v.Severity {
		case SeverityWarn:
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message, "request_id", requestID)
		case SeverityLog:
			s.logger.Info("rule note", "operation", op, "rule", v.Rule, "message", v.Message, "request_id", requestID)
		}
	}

	duration := time.Since(started)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err, "request_id", requestID)
	} else {
		s.logger.Debug("operation completed", "operation", op, "changes", len(tx.changes), "duration", duration, "request_id", requestID)
	}
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)
	s.recordAudit(ctx, op, entityID, err, duration, tx.now)
	return res, err
}

func (s *Service) recordAudit(ctx context.Context, op string, entityID int64, err error, duration time.Duration, at time.Time) {
	meta, ok := auditOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: at,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// ListRequirements returns requirement summaries, newest first.
func (s *Service) ListRequirements(ctx context.Context) ([]RequirementSummary, error) {
	var out []RequirementSummary
	_, err := s.run(ctx, OpListRequirements, func(tx *Transaction) (int64, error) {
		out = tx.ListRequirements()
		return 0, nil
	})
	return out, err
}

// CreateRequirement registers a new requirement.
func (s *Service) CreateRequirement(ctx context.Context, in RequirementInput) (RequirementCreated, Result, error) {
	var created RequirementCreated
	res, err := s.run(ctx, OpCreateRequirement, func(tx *Transaction) (int64, error) {
		var err error
		created, err = tx.CreateRequirement(in)
		return created.ID, err
	})
	return created, res, err
}

// GetRequirement returns the full requirement graph.
func (s *Service) GetRequirement(ctx context.Context, id int64) (Requirement, error) {
	var req Requirement
	_, err := s.run(ctx, OpGetRequirement, func(tx *Transaction) (int64, error) {
		var err error
		req, err = tx.GetRequirement(id)
		return id, err
	})
	return req, err
}

// StartScouting synthesises suppliers for a requirement.
func (s *Service) StartScouting(ctx context.Context, requirementID int64) (ScoutingResult, Result, error) {
	var scouted ScoutingResult
	res, err := s.run(ctx, OpStartScouting, func(tx *Transaction) (int64, error) {
		var err error
		scouted, err = tx.StartScouting(requirementID)
		return requirementID, err
	})
	return scouted, res, err
}

// SelectSuppliers flags suppliers of a requirement for outreach.
func (s *Service) SelectSuppliers(ctx context.Context, requirementID int64, supplierIDs []int64) (SelectionResult, Result, error) {
	var selected SelectionResult
	res, err := s.run(ctx, OpSelectSuppliers, func(tx *Transaction) (int64, error) {
		var err error
		selected, err = tx.SelectSuppliers(requirementID, supplierIDs)
		return requirementID, err
	})
	return selected, res, err
}

// GenerateSample records a sample for a supplier.
func (s *Service) GenerateSample(ctx context.Context, in SampleInput) (SampleRecorded, Result, error) {
	var recorded SampleRecorded
	res, err := s.run(ctx, OpGenerateSample, func(tx *Transaction) (int64, error) {
		var err error
		recorded, err = tx.GenerateSample(in)
		return recorded.SampleID, err
	})
	return recorded, res, err
}

// ReviewQuality records a quality decision for a sample.
func (s *Service) ReviewQuality(ctx context.Context, sampleID int64, in QualityReviewInput) (QualityReviewed, Result, error) {
	var reviewed QualityReviewed
	res, err := s.run(ctx, OpReviewQuality, func(tx *Transaction) (int64, error) {
		var err error
		reviewed, err = tx.ReviewQuality(sampleID, in)
		return sampleID, err
	})
	return reviewed, res, err
}

// CreateShortlist ranks cost-analysed suppliers for a requirement.
func (s *Service) CreateShortlist(ctx context.Context, requirementID int64) (ShortlistResult, Result, error) {
	var shortlist ShortlistResult
	res, err := s.run(ctx, OpCreateShortlist, func(tx *Transaction) (int64, error) {
		var err error
		shortlist, err = tx.CreateShortlist(requirementID)
		return requirementID, err
	})
	return shortlist, res, err
}

// OnboardSupplier moves a supplier into onboarding.
func (s *Service) OnboardSupplier(ctx context.Context, supplierID int64) (OnboardingResult, Result, error) {
	var onboarded OnboardingResult
	res, err := s.run(ctx, OpOnboardSupplier, func(tx *Transaction) (int64, error) {
		var err error
		onboarded, err = tx.OnboardSupplier(supplierID)
		return supplierID, err
	})
	return onboarded, res, err
}

// GetSupplier returns a single supplier.
func (s *Service) GetSupplier(ctx context.Context, supplierID int64) (Supplier, error) {
	var sup Supplier
	_, err := s.run(ctx, OpGetSupplier, func(tx *Transaction) (int64, error) {
		var err error
		sup, err = tx.GetSupplier(supplierID)
		return supplierID, err
	})
	return sup, err
}

// NegotiationIterations returns the negotiation history of a supplier.
func (s *Service) NegotiationIterations(ctx context.Context, supplierID int64) (NegotiationHistory, error) {
	var history NegotiationHistory
	_, err := s.run(ctx, OpNegotiationIterations, func(tx *Transaction) (int64, error) {
		var err error
		history, err = tx.NegotiationIterations(supplierID)
		return supplierID, err
	})
	return history, err
}
