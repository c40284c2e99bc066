package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/liamcoop/cvrisk/rules"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxBatch    = 100
	DefaultConcurrency = 8

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ValidationError reports inputs rejected before evaluation
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Service classifies inputs and keeps a history of the results.
// Safe for concurrent use.
type Service struct {
	engine      *rules.Engine
	store       Store
	validate    *validator.Validate
	maxBatch    int
	concurrency int
	log         *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithBatchLimits sets the maximum batch size and how many inputs are evaluated at once
func WithBatchLimits(maxItems, concurrency int) ServiceOption {
	return func(s *Service) {
		if maxItems > 0 {
			s.maxBatch = maxItems
		}
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = l
	}
}

// NewService creates a Service around a compiled engine and a store
func NewService(engine *rules.Engine, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		engine:      engine,
		store:       store,
		validate:    newValidator(),
		maxBatch:    DefaultMaxBatch,
		concurrency: DefaultConcurrency,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the input ranges accepted at the service boundary
func (s *Service) Validate(in rules.ClinicalInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Assess validates, classifies and stores one input
func (s *Service) Assess(ctx context.Context, in rules.ClinicalInput) (*Record, error) {
	if err := s.Validate(in); err != nil {
		validationFailures.Inc()
		return nil, err
	}
	return s.assess(ctx, in)
}

func (s *Service) assess(ctx context.Context, in rules.ClinicalInput) (*Record, error) {
	rec, err := s.evaluate(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store assessment: %w", err)
	}

	s.log.Debug("assessment stored", "id", rec.ID, "level", rec.Verdict.LevelCode, "riskFactors", rec.Verdict.RiskFactorCount)
	return rec, nil
}

// evaluate classifies one input into an unsaved record
func (s *Service) evaluate(ctx context.Context, in rules.ClinicalInput) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	verdict := s.engine.Evaluate(in)
	observeVerdict(verdict, time.Since(start).Seconds())

	return &Record{
		ID:        uuid.New(),
		Input:     in,
		Verdict:   verdict,
		CreatedAt: verdict.EvaluatedAt,
	}, nil
}

// AssessBatch classifies several inputs concurrently and returns records in input order.
// Every input is validated and evaluated before any is stored, and the batch is
// stored all or nothing.
func (s *Service) AssessBatch(ctx context.Context, inputs []rules.ClinicalInput) ([]*Record, error) {
	if len(inputs) == 0 {
		validationFailures.Inc()
		return nil, &ValidationError{Problems: []string{"batch must contain at least one input"}}
	}
	if len(inputs) > s.maxBatch {
		validationFailures.Inc()
		return nil, &ValidationError{Problems: []string{
			fmt.Sprintf("batch of %d inputs exceeds maximum of %d", len(inputs), s.maxBatch),
		}}
	}

	for i, in := range inputs {
		if err := s.Validate(in); err != nil {
			validationFailures.Inc()
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	records := make([]*Record, len(inputs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			rec, err := s.evaluate(gCtx, in)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.storeBatch(ctx, records); err != nil {
		return nil, err
	}
	s.log.Debug("assessment batch stored", "count", len(records))
	return records, nil
}

// batchAdder is implemented by stores that can write a batch atomically
type batchAdder interface {
	AddBatch(ctx context.Context, recs []*Record) error
}

// storeBatch writes every record or none. Stores without AddBatch are written
// one by one and the records already written are removed on failure.
func (s *Service) storeBatch(ctx context.Context, records []*Record) error {
	if b, ok := s.store.(batchAdder); ok {
		if err := b.AddBatch(ctx, records); err != nil {
			return fmt.Errorf("failed to store assessments: %w", err)
		}
		return nil
	}

	for i, rec := range records {
		if err := s.store.Add(ctx, rec); err != nil {
			s.rollback(ctx, records[:i])
			return fmt.Errorf("input %d: failed to store assessment: %w", i, err)
		}
	}
	return nil
}

func (s *Service) rollback(ctx context.Context, records []*Record) {
	ctx = context.WithoutCancel(ctx)
	for _, rec := range records {
		if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Error("failed to roll back batch assessment", "id", rec.ID, "error", err)
		}
	}
}

// Explain validates the input and returns the per-rule evaluation trace. Nothing is stored.
func (s *Service) Explain(ctx context.Context, in rules.ClinicalInput) ([]rules.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Validate(in); err != nil {
		validationFailures.Inc()
		return nil, err
	}
	return s.engine.Explain(in), nil
}

// Get returns a stored assessment
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.store.Get(ctx, id)
}

// ListRecent returns stored assessments newest first.
// A non-positive limit selects DefaultListLimit; larger limits are capped at MaxListLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListRecent(ctx, min(limit, MaxListLimit))
}

// Delete removes a stored assessment
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Catalogue returns the engine's decision table
func (s *Service) Catalogue() rules.Catalogue {
	return s.engine.Catalogue()
}

// Ping checks the store when it supports health checks
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
