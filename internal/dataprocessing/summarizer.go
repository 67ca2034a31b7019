package dataprocessing

import (
	"context"
	"log/slog"
	"math"
)

// Summarizer reports per-year totals and checks the derived state total
// against the total the source prints on its own statewide line.
type Summarizer struct {
	logger    *slog.Logger
	tolerance float64
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	// Tolerance is the relative deviation between the derived and quoted
	// state totals above which a summary is flagged. Zero selects 0.05.
	Tolerance float64
}

// YearSummary is the data-quality view of one processed year.
type YearSummary struct {
	EndYear          int      `json:"end_year"`
	DistrictCount    int      `json:"district_count"`
	CampusCount      int      `json:"campus_count"`
	StateTotal       *int64   `json:"state_total"`
	QuotedStateTotal *int64   `json:"quoted_state_total"`
	CampusTotal      *int64   `json:"campus_total"`
	Deviation        *float64 `json:"deviation"`
	WithinTolerance  bool     `json:"within_tolerance"`
	SuppressedTotals int      `json:"suppressed_totals"`
}

// DefaultSummarizerConfig returns the default configuration
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{Tolerance: 0.05}
}

// NewSummarizer creates a summarizer. A nil logger selects slog.Default.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultSummarizerConfig().Tolerance
	}
	return &Summarizer{logger: logger, tolerance: config.Tolerance}
}

// Summarize builds the summary for result. A deviation beyond tolerance is
// logged as a data-quality warning; it never fails the year.
func (s *Summarizer) Summarize(ctx context.Context, result *ProcessResult) YearSummary {
	summary := YearSummary{
		EndYear:          result.EndYear,
		DistrictCount:    len(result.Districts),
		CampusCount:      len(result.Campuses),
		StateTotal:       result.State.RowTotal,
		QuotedStateTotal: result.QuotedStateTotal,
		WithinTolerance:  true,
	}

	var campus sumAccumulator
	for _, c := range result.Campuses {
		campus.add(c.RowTotal)
		if c.RowTotal == nil {
			summary.SuppressedTotals++
		}
	}
	for _, d := range result.Districts {
		if d.RowTotal == nil {
			summary.SuppressedTotals++
		}
	}
	summary.CampusTotal = campus.result()

	if dev := Deviation(summary.StateTotal, summary.QuotedStateTotal); dev != nil {
		summary.Deviation = dev
		summary.WithinTolerance = *dev < s.tolerance
	}

	if !summary.WithinTolerance {
		s.logger.WarnContext(ctx, "state total deviates from quoted statewide total",
			slog.Int("end_year", summary.EndYear),
			slog.Int64("state_total", *summary.StateTotal),
			slog.Int64("quoted_state_total", *summary.QuotedStateTotal),
			slog.Float64("deviation", *summary.Deviation),
			slog.Float64("tolerance", s.tolerance))
	}
	return summary
}

// Deviation is |derived-reference|/reference, nil when either value is
// missing or the reference is zero.
func Deviation(derived, reference *int64) *float64 {
	if derived == nil || reference == nil || *reference == 0 {
		return nil
	}
	d := math.Abs(float64(*derived-*reference)) / float64(*reference)
	return &d
}
