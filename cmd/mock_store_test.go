package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/pipeline"
	"github.com/sells-group/reage-cli/internal/store"
)

// mockStore is a testify mock of store.Store.
type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) Save(ctx context.Context, req store.SaveRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]model.AnalysisRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]model.AnalysisRecord)
	return recs, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*model.AnalysisRecord)
	return rec, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	return m.Called(ctx, id, tags).Error(0)
}

func (m *mockStore) Import(ctx context.Context, reqs []store.SaveRequest) (int, error) {
	args := m.Called(ctx, reqs)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const capitalOneReport = `Original Creditor: CAPITAL ONE BANK
Account Status: Collection
Date Opened: 01/15/2015
Date of First Delinquency: 06/01/2021
Current Balance: $1,250.00
`

func newTestAnalyzer(t *testing.T) *pipeline.Analyzer {
	t.Helper()
	an, err := pipeline.New(config.AnalysisConfig{MinSegmentLength: 50, DefaultBureau: "unspecified"},
		config.RulesConfig{}, func() time.Time { return testNow })
	require.NoError(t, err)
	return an
}

func priorCapitalOne() model.AnalysisRecord {
	return model.AnalysisRecord{
		ID:        "prior-1",
		Timestamp: testNow.AddDate(0, -1, 0),
		Fields: model.CreditFields{
			model.FieldOriginalCreditor: "CAPITAL ONE BANK",
			model.FieldDOFD:             "2020-01-01",
		},
		Tags: []string{"september"},
	}
}
