package dataprocessing

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idschooldata/pkg/contracts/domain"
)

func TestNewSummarizer(t *testing.T) {
	tests := []struct {
		name          string
		config        SummarizerConfig
		wantTolerance float64
	}{
		{"default config", DefaultSummarizerConfig(), 0.05},
		{"zero tolerance", SummarizerConfig{}, 0.05},
		{"custom tolerance", SummarizerConfig{Tolerance: 0.01}, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummarizer(nil, tt.config)
			require.NotNil(t, s)
			assert.Equal(t, tt.wantTolerance, s.tolerance)
			assert.NotNil(t, s.logger)
		})
	}
}

func TestSummarize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewSummarizer(logger, DefaultSummarizerConfig())

	districts := []domain.EnrollmentRecord{
		district(i64(100), nil),
		district(nil, nil),
	}
	result := &ProcessResult{
		EndYear:          2024,
		State:            CreateStateAggregate(districts, 2024),
		Districts:        districts,
		Campuses:         []domain.EnrollmentRecord{{Type: domain.LevelCampus, RowTotal: i64(60)}},
		QuotedStateTotal: i64(102),
	}

	summary := s.Summarize(context.Background(), result)
	assert.Equal(t, 2024, summary.EndYear)
	assert.Equal(t, 2, summary.DistrictCount)
	assert.Equal(t, 1, summary.CampusCount)
	assert.Equal(t, i64(100), summary.StateTotal)
	assert.Equal(t, i64(60), summary.CampusTotal)
	assert.Equal(t, 1, summary.SuppressedTotals)
	require.NotNil(t, summary.Deviation)
	assert.InDelta(t, 2.0/102.0, *summary.Deviation, 1e-9)
	assert.True(t, summary.WithinTolerance)
	assert.Empty(t, buf.String())
}

func TestSummarizeFlagsDeviation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewSummarizer(logger, DefaultSummarizerConfig())

	districts := []domain.EnrollmentRecord{district(i64(80), nil)}
	result := &ProcessResult{
		EndYear:          2024,
		State:            CreateStateAggregate(districts, 2024),
		Districts:        districts,
		QuotedStateTotal: i64(100),
	}

	summary := s.Summarize(context.Background(), result)
	assert.False(t, summary.WithinTolerance)
	assert.Contains(t, buf.String(), "state total deviates")
}

func TestSummarizeWithoutQuotedTotal(t *testing.T) {
	s := NewSummarizer(nil, DefaultSummarizerConfig())
	summary := s.Summarize(context.Background(), &ProcessResult{EndYear: 2024, State: CreateStateAggregate(nil, 2024)})

	assert.Nil(t, summary.Deviation)
	assert.True(t, summary.WithinTolerance)
	assert.Nil(t, summary.CampusTotal)
}

func TestDeviation(t *testing.T) {
	assert.Nil(t, Deviation(nil, i64(1)))
	assert.Nil(t, Deviation(i64(1), nil))
	assert.Nil(t, Deviation(i64(1), i64(0)))

	d := Deviation(i64(95), i64(100))
	require.NotNil(t, d)
	assert.InDelta(t, 0.05, *d, 1e-9)
}
