package evaluation

import (
	"math"

	"github.com/samber/lo"
)

// Stats are micro-averaged over every item of every scored record.
type Stats struct {
	NumRecords          int            `json:"num_records"`
	FullyCorrectRecords int            `json:"fully_correct_records"`
	FullyCorrectRatio   float64        `json:"fully_correct_ratio"`
	TotalRecall         int            `json:"total_recall"`
	TotalGroundTruth    int            `json:"total_ground_truth"`
	RecallRate          float64        `json:"recall_rate"`
	TotalCorrect        int            `json:"total_correct"`
	TotalPredicted      int            `json:"total_predicted"`
	PrecisionRate       float64        `json:"precision_rate"`
	F1                  float64        `json:"f1"`
	ErrorTypeCounts     map[string]int `json:"error_type_counts"`
	SkippedRecords      int            `json:"skipped_records"`
	ModelName           string         `json:"model_name"`
	TaskName            string         `json:"task_name"`
	SFTParamKey         string         `json:"sft_param_key,omitempty"`
	RunID               string         `json:"run_id"`
}

// summaryColumns is the column order of the summary sheets.
var summaryColumns = []string{
	"model_name", "task_name", "sft_param_key", "num_records", "fully_correct_records",
	"fully_correct_ratio", "total_recall", "total_ground_truth", "recall_rate",
	"total_correct", "total_predicted", "precision_rate", "f1", "skipped_records", "run_id",
}

func (s *Stats) row() []any {
	return []any{
		s.ModelName, s.TaskName, s.SFTParamKey, s.NumRecords, s.FullyCorrectRecords,
		s.FullyCorrectRatio, s.TotalRecall, s.TotalGroundTruth, s.RecallRate,
		s.TotalCorrect, s.TotalPredicted, s.PrecisionRate, s.F1, s.SkippedRecords, s.RunID,
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// ComputeStats aggregates an analysis. Ratios are rounded to six decimals.
func ComputeStats(analysis *Analysis) *Stats {
	results := analysis.Results
	stats := &Stats{
		NumRecords:          len(results),
		FullyCorrectRecords: lo.CountBy(results, func(r ComparisonResult) bool { return r.Correct }),
		TotalRecall:         lo.SumBy(results, func(r ComparisonResult) int { return r.ItemRecall }),
		TotalGroundTruth:    lo.SumBy(results, func(r ComparisonResult) int { return r.TotalGroundTruthItems }),
		TotalCorrect:        lo.SumBy(results, func(r ComparisonResult) int { return r.ItemCorrect }),
		TotalPredicted:      lo.SumBy(results, func(r ComparisonResult) int { return r.TotalPredictedItems }),
		ErrorTypeCounts:     map[string]int{},
		SkippedRecords:      analysis.Skipped,
	}
	precision := ratio(stats.TotalCorrect, stats.TotalPredicted)
	recall := ratio(stats.TotalRecall, stats.TotalGroundTruth)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	stats.FullyCorrectRatio = round6(ratio(stats.FullyCorrectRecords, stats.NumRecords))
	stats.RecallRate = round6(recall)
	stats.PrecisionRate = round6(precision)
	stats.F1 = round6(f1)
	for errType, count := range analysis.ErrorTypeCounts {
		stats.ErrorTypeCounts[errType.String()] = count
	}
	return stats
}
