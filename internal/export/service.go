package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

const (
	SheetOffers = "Offers"
	SheetIssues = "Issues"
)

// Service produces XLSX reports of processed offers.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

var offerHeaders = []string{
	"Source",
	"Make",
	"Make ID",
	"Model",
	"Variant",
	"First Registration",
	"Mileage (km)",
	"Power (PS)",
	"Fuel",
	"Fuel ID",
	"Transmission",
	"Transmission ID",
	"Price",
	"Monthly Rate",
	"Duration (months)",
	"Dealer",
	"Confidence",
	"Method",
	"Accepted",
	"Warnings",
	"Errors",
}

// OffersXLSX returns a workbook with one row per result on the Offers sheet
// and one row per warning or error on the Issues sheet.
func (s *Service) OffersXLSX(results []entity.OfferResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default sheet becomes the offers sheet
	if err := f.SetSheetName(f.GetSheetName(0), SheetOffers); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetIssues); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(SheetOffers)
	f.SetActiveSheet(idx)

	if err := writeRow(f, SheetOffers, 1, toAny(offerHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetIssues, 1, []any{"Source", "Severity", "Message"}); err != nil {
		return nil, err
	}

	issueRow := 2
	for i, r := range results {
		if err := writeRow(f, SheetOffers, i+2, offerRow(r)); err != nil {
			return nil, err
		}
		for _, e := range r.Report.Errors {
			if err := writeRow(f, SheetIssues, issueRow, []any{r.Source, "error", e}); err != nil {
				return nil, err
			}
			issueRow++
		}
		for _, w := range r.Report.Warnings {
			if err := writeRow(f, SheetIssues, issueRow, []any{r.Source, "warning", w}); err != nil {
				return nil, err
			}
			issueRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetOffers, "A", "A", 36) // source
	_ = f.SetColWidth(SheetOffers, "B", "F", 18)
	_ = f.SetColWidth(SheetOffers, "P", "P", 28) // dealer
	_ = f.SetColWidth(SheetOffers, "T", "U", 60) // issues
	_ = f.SetColWidth(SheetIssues, "A", "A", 36)
	_ = f.SetColWidth(SheetIssues, "C", "C", 80)
	_ = f.SetPanes(SheetOffers, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"issues", issueRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func offerRow(r entity.OfferResult) []any {
	v, c := r.Result.Vehicle, r.Result.Commercial
	return []any{
		r.Source,
		str(v.Make),
		mappingID(r.Mappings, "make"),
		str(v.Model),
		str(v.Variant),
		str(v.FirstRegistration),
		num(v.Mileage),
		num(v.PowerPS),
		str(v.FuelType),
		mappingID(r.Mappings, "fuel_type"),
		str(v.Transmission),
		mappingID(r.Mappings, "transmission"),
		num(c.Price),
		num(c.MonthlyRate),
		num(c.DurationMonths),
		str(r.Result.Dealer.Name),
		r.Result.Metadata.ConfidenceScore,
		string(r.Text.Method),
		r.Accepted,
		truncate(strings.Join(r.Report.Warnings, "; "), 500),
		truncate(strings.Join(r.Report.Errors, "; "), 500),
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func mappingID(m map[string]entity.FieldMappingResult, name string) string {
	if res, ok := m[name]; ok && res.CanonicalID != nil {
		return *res.CanonicalID
	}
	return ""
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// num leaves absent numbers as empty cells.
func num[T int | float64](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
