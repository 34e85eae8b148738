// Package workflow dispatches (verb, path, payload) requests onto the
// procurement workflow service and exposes them over HTTP.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"procureflow/internal/core"
	"procureflow/pkg/domain"
)

// Response wraps every successful payload.
type Response struct {
	Data any `json:"data"`
}

type handlerFunc func(ctx context.Context, ids []int64, payload []byte) (any, error)

type route struct {
	name     string
	method   string
	segments []string
	handle   handlerFunc
}

// Router matches requests against the workflow route table.
type Router struct {
	svc    *core.Service
	logger core.Logger
	routes []route
}

// NewRouter builds the route table for svc. A nil logger disables logging.
func NewRouter(svc *core.Service, logger core.Logger) *Router {
	if logger == nil {
		logger = discardLogger{}
	}
	r := &Router{svc: svc, logger: logger}
	r.add("list_requirements", "GET", "/requirements", r.listRequirements)
	r.add("create_requirement", "POST", "/requirements", r.createRequirement)
	r.add("get_requirement", "GET", "/requirements/{id}", r.getRequirement)
	r.add("start_scouting", "POST", "/requirements/{id}/scout", r.startScouting)
	r.add("select_suppliers", "POST", "/requirements/{id}/select-suppliers", r.selectSuppliers)
	r.add("create_shortlist", "POST", "/requirements/{id}/shortlist", r.createShortlist)
	r.add("create_sample", "POST", "/samples", r.createSample)
	r.add("review_quality", "POST", "/samples/{id}/quality-review", r.reviewQuality)
	r.add("get_supplier", "GET", "/suppliers/{id}", r.getSupplier)
	r.add("onboard_supplier", "POST", "/suppliers/{id}/onboard", r.onboardSupplier)
	r.add("negotiation_iterations", "GET", "/suppliers/{id}/negotiation-iterations", r.negotiationIterations)
	return r
}

func (r *Router) add(name, method, pattern string, handle handlerFunc) {
	r.routes = append(r.routes, route{
		name:     name,
		method:   method,
		segments: splitPath(pattern),
		handle:   handle,
	})
}

// Routes lists "METHOD pattern" for every registered route.
func (r *Router) Routes() []string {
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.method+" /"+strings.Join(rt.segments, "/"))
	}
	return out
}

// Do dispatches a single request. Verbs match case-insensitively; an
// unmatched pair yields domain.UnsupportedOperationError.
func (r *Router) Do(ctx context.Context, method, path string, payload []byte) (Response, error) {
	requestID := core.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = core.WithRequestID(ctx, requestID)
	}
	segments := splitPath(path)
	for _, rt := range r.routes {
		if !strings.EqualFold(rt.method, method) {
			continue
		}
		ids, ok := rt.match(segments)
		if !ok {
			continue
		}
		r.logger.Debug("dispatch", "route", rt.name, "method", strings.ToUpper(method), "path", path, "request_id", requestID)
		data, err := rt.handle(ctx, ids, payload)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: data}, nil
	}
	r.logger.Warn("unmatched route", "method", strings.ToUpper(method), "path", path, "request_id", requestID)
	return Response{}, domain.UnsupportedOperationError{Method: method, Path: path}
}

// match reports whether segments fit the route and returns the numeric
// values bound to its {id} placeholders.
func (rt route) match(segments []string) ([]int64, bool) {
	if len(segments) != len(rt.segments) {
		return nil, false
	}
	var ids []int64
	for i, want := range rt.segments {
		if want != "{id}" {
			if segments[i] != want {
				return nil, false
			}
			continue
		}
		id, ok := parseID(segments[i])
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func parseID(segment string) (int64, bool) {
	if segment == "" || strings.TrimLeft(segment, "0123456789") != "" {
		return 0, false
	}
	id, err := strconv.ParseInt(segment, 10, 64)
	return id, err == nil
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// decode unmarshals payload into dst. An empty payload leaves dst zeroed.
func decode(payload []byte, dst any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return domain.ValidationError{Message: fmt.Sprintf("invalid JSON payload: %v", err)}
	}
	return nil
}

func (r *Router) listRequirements(ctx context.Context, _ []int64, _ []byte) (any, error) {
	return r.svc.ListRequirements(ctx)
}

type createRequirementRequest struct {
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	Category               string    `json:"category"`
	Quantity               flexFloat `json:"quantity"`
	Unit                   string    `json:"unit"`
	RequiredCertifications []string  `json:"required_certifications"`
}

func (r *Router) createRequirement(ctx context.Context, _ []int64, payload []byte) (any, error) {
	var req createRequirementRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	created, _, err := r.svc.CreateRequirement(ctx, core.RequirementInput{
		Title:                  req.Title,
		Description:            req.Description,
		Category:               req.Category,
		Quantity:               float64(req.Quantity),
		Unit:                   req.Unit,
		RequiredCertifications: req.RequiredCertifications,
	})
	return created, err
}

func (r *Router) getRequirement(ctx context.Context, ids []int64, _ []byte) (any, error) {
	return r.svc.GetRequirement(ctx, ids[0])
}

func (r *Router) startScouting(ctx context.Context, ids []int64, _ []byte) (any, error) {
	scouted, _, err := r.svc.StartScouting(ctx, ids[0])
	return scouted, err
}

type selectSuppliersRequest struct {
	SupplierIDs []flexInt `json:"supplier_ids"`
}

func (r *Router) selectSuppliers(ctx context.Context, ids []int64, payload []byte) (any, error) {
	var req selectSuppliersRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	supplierIDs := make([]int64, 0, len(req.SupplierIDs))
	for _, id := range req.SupplierIDs {
		supplierIDs = append(supplierIDs, int64(id))
	}
	selected, _, err := r.svc.SelectSuppliers(ctx, ids[0], supplierIDs)
	return selected, err
}

func (r *Router) createShortlist(ctx context.Context, ids []int64, _ []byte) (any, error) {
	shortlist, _, err := r.svc.CreateShortlist(ctx, ids[0])
	return shortlist, err
}

type sampleRequest struct {
	SupplierID  flexInt   `json:"supplier_id"`
	Quantity    flexFloat `json:"quantity"`
	Address     string    `json:"address"`
	PriceQuoted flexFloat `json:"price_quoted"`
}

func (r *Router) createSample(ctx context.Context, _ []int64, payload []byte) (any, error) {
	var req sampleRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	recorded, _, err := r.svc.GenerateSample(ctx, core.SampleInput{
		SupplierID:  int64(req.SupplierID),
		Quantity:    float64(req.Quantity),
		Address:     req.Address,
		PriceQuoted: float64(req.PriceQuoted),
	})
	return recorded, err
}

type qualityReviewRequest struct {
	QualityApproved bool   `json:"quality_approved"`
	QualityNotes    string `json:"quality_notes"`
	ReviewedBy      string `json:"reviewed_by"`
}

func (r *Router) reviewQuality(ctx context.Context, ids []int64, payload []byte) (any, error) {
	var req qualityReviewRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	reviewed, _, err := r.svc.ReviewQuality(ctx, ids[0], core.QualityReviewInput{
		QualityApproved: req.QualityApproved,
		QualityNotes:    req.QualityNotes,
		ReviewedBy:      req.ReviewedBy,
	})
	return reviewed, err
}

func (r *Router) getSupplier(ctx context.Context, ids []int64, _ []byte) (any, error) {
	return r.svc.GetSupplier(ctx, ids[0])
}

func (r *Router) onboardSupplier(ctx context.Context, ids []int64, _ []byte) (any, error) {
	onboarded, _, err := r.svc.OnboardSupplier(ctx, ids[0])
	return onboarded, err
}

func (r *Router) negotiationIterations(ctx context.Context, ids []int64, _ []byte) (any, error) {
	return r.svc.NegotiationIterations(ctx, ids[0])
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}
