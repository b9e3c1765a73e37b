package evaluation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

const (
	errorDetailsSheet = "ErrorDetails"
	summarySheet      = "Summary"
	allStatsSheet     = "AllStats"
)

var errorColumns = []string{
	"record_id", "detail_id_key", "error_type",
	"ground_truth_structure_id", "prediction_structure_id",
	"ground_truth_compound_id", "prediction_compound_id",
	"ground_truth_iupac_name", "prediction_iupac_name",
	"ground_truth_refs", "prediction_refs",
	"ground_truth_detail_ids", "prediction_detail_ids",
	"ground_truth_detail_len", "prediction_detail_len",
	"item_recall", "item_correct", "total_ground_truth_items", "total_predicted_items",
}

// ErrorRow is one line of the error details table.
type ErrorRow struct {
	RecordID              string
	Key                   string
	ErrorType             ErrorType
	GroundTruth           *Item
	Prediction            *Item
	ItemRecall            int
	ItemCorrect           int
	TotalGroundTruthItems int
	TotalPredictedItems   int
}

func (r ErrorRow) values() []any {
	return []any{
		r.RecordID, r.Key, r.ErrorType.String(),
		r.GroundTruth.StructureID, r.Prediction.StructureID,
		r.GroundTruth.CompoundID, r.Prediction.CompoundID,
		r.GroundTruth.IUPACName, r.Prediction.IUPACName,
		strings.Join(r.GroundTruth.Refs, "|"), strings.Join(r.Prediction.Refs, "|"),
		strings.Join(r.GroundTruth.DetailIDs, "|"), strings.Join(r.Prediction.DetailIDs, "|"),
		utf8.RuneCountInString(r.GroundTruth.Detail), utf8.RuneCountInString(r.Prediction.Detail),
		r.ItemRecall, r.ItemCorrect, r.TotalGroundTruthItems, r.TotalPredictedItems,
	}
}

// ErrorRows flattens an analysis into one row per error.
func ErrorRows(analysis *Analysis) []ErrorRow {
	return lo.FlatMap(analysis.Results, func(result ComparisonResult, _ int) []ErrorRow {
		return lo.Map(result.Errors, func(ea ErrorAnalysis, _ int) ErrorRow {
			return ErrorRow{
				RecordID:              result.RecordID,
				Key:                   ea.Key,
				ErrorType:             ea.Type,
				GroundTruth:           ea.GroundTruth,
				Prediction:            ea.Prediction,
				ItemRecall:            result.ItemRecall,
				ItemCorrect:           result.ItemCorrect,
				TotalGroundTruthItems: result.TotalGroundTruthItems,
				TotalPredictedItems:   result.TotalPredictedItems,
			}
		})
	})
}

// WriteReport writes the stats as indented JSON.
func WriteReport(path string, stats *Stats) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0o644)
}

func WriteErrorCSV(path string, rows []ErrorRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(errorColumns); err != nil {
		return err
	}
	for _, row := range rows {
		record := lo.Map(row.values(), func(v any, _ int) string {
			switch v := v.(type) {
			case int:
				return strconv.Itoa(v)
			default:
				return fmt.Sprint(v)
			}
		})
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteErrorWorkbook writes the error rows and the stats of one model to
// two sheets of a workbook.
func WriteErrorWorkbook(path string, rows []ErrorRow, stats *Stats) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", errorDetailsSheet); err != nil {
		return err
	}
	if err := writeSheet(f, errorDetailsSheet, errorColumns, lo.Map(rows, func(r ErrorRow, _ int) []any {
		return r.values()
	})); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	if err := writeSheet(f, summarySheet, summaryColumns, [][]any{stats.row()}); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// WriteSummaryWorkbook writes one stats row per model.
func WriteSummaryWorkbook(path string, all []*Stats) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", allStatsSheet); err != nil {
		return err
	}
	if err := writeSheet(f, allStatsSheet, summaryColumns, lo.Map(all, func(s *Stats, _ int) []any {
		return s.row()
	})); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerRow := lo.ToAnySlice(header)
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
