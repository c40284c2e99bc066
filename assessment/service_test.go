package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/cvrisk/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	engine, err := rules.NewEngine(rules.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return NewService(engine, store, opts...)
}

// failingStore rejects writes after a number of successful ones
type failingStore struct {
	*InMemoryStore
	allowed atomic.Int64
}

func (s *failingStore) Add(ctx context.Context, rec *Record) error {
	if s.allowed.Add(-1) < 0 {
		return errors.New("disk full")
	}
	return s.InMemoryStore.Add(ctx, rec)
}

func TestServiceAssess(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := newTestService(t, store)

	rec, err := svc.Assess(ctx, rules.ClinicalInput{HasDiabetes: true, LDLC: f64(120)})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, rules.LevelHigh, rec.Verdict.LevelCode)
	assert.Equal(t, fixedNow, rec.CreatedAt)

	stored, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Verdict, stored.Verdict)
}

func TestServiceAssessValidation(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore())

	testCases := []struct {
		name    string
		input   rules.ClinicalInput
		wantErr string
	}{
		{"Negative age", rules.ClinicalInput{Age: f64(-1)}, "age must be at least 0"},
		{"Age too high", rules.ClinicalInput{Age: f64(131)}, "age must be at most 130"},
		{"LDL too high", rules.ClinicalInput{LDLC: f64(401)}, "ldlC must be at most 400"},
		{"Negative MI count", rules.ClinicalInput{MIHistoryCount: -1}, "miHistoryCount must be at least 0"},
		{"Metabolic factors above five", rules.ClinicalInput{MetabolicSyndromeFactors: f64(6)}, "metabolicSyndromeFactors"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Assess(context.Background(), tc.input)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestServiceAssessAcceptsBoundaries(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore())

	in := rules.ClinicalInput{
		Age:    f64(130),
		IsMale: boolp(false),
		HDLC:   f64(0),
		LDLC:   f64(400),
	}
	_, err := svc.Assess(context.Background(), in)
	assert.NoError(t, err)
}

func TestServiceAssessStoreFailure(t *testing.T) {
	svc := newTestService(t, &failingStore{InMemoryStore: NewInMemoryStore()})

	_, err := svc.Assess(context.Background(), rules.ClinicalInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store assessment")

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr), "store failures are not validation errors")
}

func TestServiceAssessBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewInMemoryStore(), WithBatchLimits(10, 3))

	inputs := []rules.ClinicalInput{
		{HasCAD: true, MIWithin1Year: true},
		{HasASCVDHistory: true},
		{HasDiabetes: true},
		{IsSmoker: true, HasHypertension: true},
		{IsSmoker: true},
		{},
	}
	want := []rules.LevelCode{
		rules.LevelExtremelyHigh,
		rules.LevelVeryHigh,
		rules.LevelHigh,
		rules.LevelMedium,
		rules.LevelLow,
		rules.LevelUndefined,
	}

	records, err := svc.AssessBatch(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, records, len(inputs))

	for i, rec := range records {
		assert.Equal(t, want[i], rec.Verdict.LevelCode, "record %d", i)
	}

	stored, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, len(inputs))
}

func TestServiceAssessBatchLimits(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore(), WithBatchLimits(2, 1))

	testCases := []struct {
		name    string
		inputs  []rules.ClinicalInput
		wantErr string
	}{
		{"Empty", nil, "at least one input"},
		{"Too many", make([]rules.ClinicalInput, 3), "exceeds maximum of 2"},
		{"Invalid member", []rules.ClinicalInput{{}, {Age: f64(-5)}}, "input 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AssessBatch(context.Background(), tc.inputs)
			require.Error(t, err)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestServiceAssessBatchInvalidStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := newTestService(t, store)

	_, err := svc.AssessBatch(ctx, []rules.ClinicalInput{{HasDiabetes: true}, {LDLC: f64(-1)}})
	require.Error(t, err)

	stored, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestServiceAssessBatchStoreFailure(t *testing.T) {
	store := &failingStore{InMemoryStore: NewInMemoryStore()}
	store.allowed.Store(2)
	svc := newTestService(t, store, WithBatchLimits(10, 1))

	ctx := context.Background()
	records, err := svc.AssessBatch(ctx, make([]rules.ClinicalInput, 5))
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "input 2: failed to store assessment: disk full")

	stored, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored, "records written before the failure are removed")
}

func TestServiceAssessBatchStoreFailureHighConcurrency(t *testing.T) {
	store := &failingStore{InMemoryStore: NewInMemoryStore()}
	store.allowed.Store(3)
	svc := newTestService(t, store, WithBatchLimits(10, 8))

	ctx := context.Background()
	_, err := svc.AssessBatch(ctx, make([]rules.ClinicalInput, 6))
	require.Error(t, err)

	stored, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// A retry once the store recovers stores the whole batch
	store.allowed.Store(100)
	records, err := svc.AssessBatch(ctx, make([]rules.ClinicalInput, 6))
	require.NoError(t, err)
	require.Len(t, records, 6)

	stored, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestServiceExplain(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := newTestService(t, store)

	results, err := svc.Explain(ctx, rules.ClinicalInput{IsSmoker: true})
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	stored, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored, "Explain should not store anything")

	_, err = svc.Explain(ctx, rules.ClinicalInput{Systolic: f64(999)})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestServiceListRecentLimits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewInMemoryStore())

	for range DefaultListLimit + 5 {
		_, err := svc.Assess(ctx, rules.ClinicalInput{})
		require.NoError(t, err)
	}

	testCases := []struct {
		limit int
		want  int
	}{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{5, 5},
		{MaxListLimit + 50, DefaultListLimit + 5},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("limit %d", tc.limit), func(t *testing.T) {
			records, err := svc.ListRecent(ctx, tc.limit)
			require.NoError(t, err)
			assert.Len(t, records, tc.want)
		})
	}
}

func TestServiceGetDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewInMemoryStore())

	rec, err := svc.Assess(ctx, rules.ClinicalInput{HasCKD: true})
	require.NoError(t, err)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rules.LevelHigh, got.Verdict.LevelCode)

	require.NoError(t, svc.Delete(ctx, rec.ID))

	_, err = svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServicePingWithoutDatabase(t *testing.T) {
	svc := newTestService(t, NewInMemoryStore())
	assert.NoError(t, svc.Ping(context.Background()))
}
