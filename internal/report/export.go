// Package report exports analysis snapshots to CSV and XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/noface-00/prims/internal/model"
)

const SheetName = "Analisis"

var headers = []string{
	"product_id", "product_name", "analyzed_at", "price_actual", "market_mean",
	"price_difference", "min", "max", "std_dev", "sample_size", "stability",
	"confidence", "alert", "trust_score", "trend", "percent_change",
	"volatility", "account_age", "degraded", "failures",
}

// row holds one snapshot as typed cell values, in header order.
func row(s *model.Snapshot) []interface{} {
	return []interface{}{
		s.ProductID,
		s.ProductName,
		s.Timestamp.UTC().Format(time.RFC3339),
		s.PriceActual,
		s.Stats.Mean,
		s.PriceDifference,
		s.Stats.Min,
		s.Stats.Max,
		s.Stats.StdDev,
		s.Stats.SampleSize,
		s.Stats.Stability,
		s.Stats.Confidence,
		string(s.Alert.Alert),
		s.TrustScore,
		s.Trend.Trend,
		s.Trend.PercentChange,
		s.Trend.VolatilityLabel,
		s.AccountAge,
		s.Degraded,
		strings.Join(s.Failures, ";"),
	}
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes one line per snapshot after a header line. Text cells are
// escaped against formula injection.
func WriteCSV(w io.Writer, snapshots []*model.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, s := range snapshots {
		if s == nil {
			continue
		}
		values := row(s)
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = cellString(v)
		}
		if err := cw.Write(EscapeCSVRow(record)); err != nil {
			return fmt.Errorf("writing csv row %s: %w", s.ProductID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the snapshots to a single sheet workbook with a bold
// header row.
func WriteXLSX(w io.Writer, snapshots []*model.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	line := 2
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		values := row(s)
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %s: %w", s.ProductID, err)
		}
		line++
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	return f.Write(w)
}
