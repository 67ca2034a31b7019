package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"

	"idschooldata/internal/config"
	"idschooldata/internal/dataprocessing"
	"idschooldata/pkg/contracts/domain"
)

// Downloader fetches a named file from the first URL that serves it
type Downloader interface {
	Download(ctx context.Context, name string, urls []string, force bool) (string, error)
}

// Fetcher is the raw fetch adapter: it downloads the district and building
// workbooks for a year and exposes them as raw tables.
type Fetcher struct {
	downloader Downloader
	cfg        config.SourceConfig
	logger     *slog.Logger
}

// NewFetcher creates a fetcher
func NewFetcher(downloader Downloader, cfg config.SourceConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		downloader: downloader,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "source_fetcher")),
	}
}

// FetchRaw returns the district and building tables for endYear. The
// district workbook is required. The building table is empty before the
// building series starts, and when its workbook is missing or has no
// usable sheet. refresh forces new downloads.
func (f *Fetcher) FetchRaw(ctx context.Context, endYear int, refresh bool) (*domain.RawData, error) {
	district, err := f.fetchTable(ctx, "district", f.cfg.DistrictURL, endYear, refresh)
	if err != nil {
		return nil, err
	}

	raw := &domain.RawData{District: district, Building: domain.RawTable{Source: "building"}}
	if f.cfg.BuildingURL == "" || endYear < f.cfg.BuildingMinYear {
		return raw, nil
	}

	building, err := f.fetchTable(ctx, "building", f.cfg.BuildingURL, endYear, refresh)
	switch {
	case err == nil:
		raw.Building = building
	case errors.Is(err, ErrSourceNotFound), errors.Is(err, ErrNoHeaderRow):
		f.logger.WarnContext(ctx, "building source unavailable, continuing with district data only",
			slog.Int("end_year", endYear),
			slog.String("error", err.Error()))
	default:
		return nil, err
	}
	return raw, nil
}

func (f *Fetcher) fetchTable(ctx context.Context, kind, template string, endYear int, refresh bool) (domain.RawTable, error) {
	primary := ExpandURL(template, endYear)
	urls := append([]string{primary}, MirrorURLs(primary, f.cfg.Mirrors)...)
	name := downloadName(kind, template, endYear)

	path, err := f.downloader.Download(ctx, name, urls, refresh)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("%s workbook for %d: %w", kind, endYear, err)
	}

	table, err := ReadWorkbook(path, endYear, name)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("%s workbook for %d: %w", kind, endYear, err)
	}
	f.logger.DebugContext(ctx, "read workbook",
		slog.String("kind", kind),
		slog.Int("end_year", endYear),
		slog.Int("rows", len(table.Rows)),
		slog.Int("columns", len(table.Headers)))
	return table, nil
}

// ExpandURL substitutes {year} and {label} in a URL template
func ExpandURL(template string, endYear int) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(endYear),
		"{label}", dataprocessing.YearLabel(endYear),
	)
	return r.Replace(template)
}

// MirrorURLs rebases the path of primary onto each mirror base URL
func MirrorURLs(primary string, mirrors []string) []string {
	u, err := url.Parse(primary)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		out = append(out, strings.TrimRight(m, "/")+u.Path)
	}
	return out
}

// downloadName is the local file name for a source. A templated URL is
// per year; a fixed URL is one multi-year workbook shared by every year.
func downloadName(kind, template string, endYear int) string {
	if strings.Contains(template, "{year}") || strings.Contains(template, "{label}") {
		return fmt.Sprintf("%s_%d.xlsx", kind, endYear)
	}
	base := kind + ".xlsx"
	if u, err := url.Parse(template); err == nil {
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			base = b
		}
	}
	if !strings.HasSuffix(strings.ToLower(base), ".xlsx") {
		base += ".xlsx"
	}
	return kind + "_" + base
}
