package evaluation

import (
	"testing"

	"github.com/natexcvi/go-llm-eval/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredRecord(id string, output, predicted map[string]any) *records.Record {
	return &records.Record{ID: id, Output: output, PredictOutput: predicted}
}

// Ground truth A, B, C; predictions A (exact), B (iupac_name off), D (spurious).
func scenarioRecord() *records.Record {
	itemA := rawItem([]string{"d1"}, "1", "4-methylbenzoic acid", "", "stir")
	itemB := rawItem([]string{"d2"}, "2", "butane", "", "heat")
	itemBPred := rawItem([]string{"d2"}, "2", "butene", "", "heat")
	itemC := rawItem([]string{"d3"}, "3", "hexane", "", "cool")
	itemD := rawItem([]string{"d4"}, "4", "octane", "", "filter")
	return scoredRecord("rec-1", results(itemA, itemB, itemC), results(itemA, itemBPred, itemD))
}

func TestEvaluator_Analyze(t *testing.T) {
	rec := scenarioRecord()
	analysis := NewEvaluator(Options{}).Analyze([]*records.Record{rec}, []*records.Record{rec})

	require.Len(t, analysis.Results, 1)
	result := analysis.Results[0]
	assert.Equal(t, "rec-1", result.RecordID)
	assert.False(t, result.Correct)
	assert.Equal(t, 1, result.ItemRecall)
	assert.Equal(t, 3, result.TotalGroundTruthItems)
	assert.Equal(t, 3, result.TotalPredictedItems)

	require.Len(t, result.Errors, 3)
	assert.Equal(t, ErrorIUPACName, result.Errors[0].Type)
	assert.Equal(t, "d2||2||", result.Errors[0].Key)
	assert.Equal(t, ErrorMissed, result.Errors[1].Type)
	assert.Equal(t, "d3||3||", result.Errors[1].Key)
	assert.Equal(t, []string{"d3"}, result.Errors[1].Prediction.DetailIDs)
	assert.Equal(t, ErrorSpurious, result.Errors[2].Type)
	assert.Equal(t, "octane", result.Errors[2].Prediction.IUPACName)
	assert.Empty(t, result.Errors[2].GroundTruth.IUPACName)

	assert.Equal(t, map[ErrorType]int{ErrorIUPACName: 1, ErrorMissed: 1, ErrorSpurious: 1}, analysis.ErrorTypeCounts)

	stats := ComputeStats(analysis)
	assert.Equal(t, 1, stats.TotalCorrect)
	assert.Equal(t, 3, stats.TotalPredicted)
	assert.Equal(t, 3, stats.TotalGroundTruth)
	assert.Equal(t, 0.333333, stats.PrecisionRate)
	assert.Equal(t, 0.333333, stats.RecallRate)
	assert.Equal(t, 0.333333, stats.F1)
	assert.Equal(t, 0.0, stats.FullyCorrectRatio)
	assert.Equal(t, 1, stats.ErrorTypeCounts["iupac_name mismatch"])
}

func TestEvaluator_MissingPredictions(t *testing.T) {
	gt := []*records.Record{
		scoredRecord("a", results(rawItem([]string{"d1"}, "1", "x", "", "y")), nil),
		scoredRecord("b", results(
			rawItem([]string{"d1"}, "1", "x", "", "y"),
			rawItem([]string{"d2"}, "2", "x", "", "y"),
		), nil),
	}
	pred := []*records.Record{
		scoredRecord("a", nil, results(rawItem([]string{"d1"}, "1", "x", "", "y"))),
	}

	testCases := []struct {
		name            string
		penalize        bool
		wantRecords     int
		wantSkipped     int
		wantRecall      float64
		wantGroundTruth int
	}{
		{
			name:            "Skipped by default",
			wantRecords:     1,
			wantSkipped:     1,
			wantRecall:      1,
			wantGroundTruth: 1,
		},
		{
			name:            "Penalized as missed",
			penalize:        true,
			wantRecords:     2,
			wantRecall:      0.333333,
			wantGroundTruth: 3,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			analysis := NewEvaluator(Options{PenalizeMissing: tc.penalize}).Analyze(gt, pred)
			stats := ComputeStats(analysis)
			assert.Equal(t, tc.wantRecords, stats.NumRecords)
			assert.Equal(t, tc.wantSkipped, stats.SkippedRecords)
			assert.Equal(t, tc.wantRecall, stats.RecallRate)
			assert.Equal(t, tc.wantGroundTruth, stats.TotalGroundTruth)
			assert.Equal(t, 1.0, stats.PrecisionRate)
		})
	}
}

func TestEvaluator_FullyCorrectRecord(t *testing.T) {
	item := rawItem([]string{"d2", "d1"}, "1", "ethanol", "s", "mix", "r1")
	predicted := rawItem([]string{"d1", "d2"}, "1", "eth anol", "s", "m i x", "r1")
	rec := scoredRecord("r", results(item), results(predicted))

	analysis := NewEvaluator(Options{}).Analyze([]*records.Record{rec}, []*records.Record{rec})
	stats := ComputeStats(analysis)

	assert.Equal(t, 1, stats.FullyCorrectRecords)
	assert.Equal(t, 1.0, stats.FullyCorrectRatio)
	assert.Equal(t, 1.0, stats.F1)
	assert.Empty(t, stats.ErrorTypeCounts)
}

func TestEvaluator_LastDuplicatePredictionWins(t *testing.T) {
	gt := scoredRecord("r", results(rawItem([]string{"d1"}, "1", "x", "", "y")), nil)
	stale := scoredRecord("r", nil, map[string]any{})
	fresh := scoredRecord("r", nil, results(rawItem([]string{"d1"}, "1", "x", "", "y")))

	analysis := NewEvaluator(Options{}).Analyze([]*records.Record{gt}, []*records.Record{stale, fresh})
	require.Len(t, analysis.Results, 1)
	assert.True(t, analysis.Results[0].Correct)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(&Analysis{ErrorTypeCounts: map[ErrorType]int{}})
	assert.Zero(t, stats.NumRecords)
	assert.Zero(t, stats.PrecisionRate)
	assert.Zero(t, stats.RecallRate)
	assert.Zero(t, stats.F1)
}
