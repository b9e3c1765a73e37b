package evaluation

import (
	"sort"

	"github.com/natexcvi/go-llm-eval/agents"
	"github.com/natexcvi/go-llm-eval/records"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	// IUPACThreshold is the minimum similarity for two normalized IUPAC
	// names to count as the same compound.
	IUPACThreshold float64
	// PenalizeMissing scores a ground-truth record with no prediction as
	// all false negatives instead of skipping it.
	PenalizeMissing bool
	// AgentKind selects the prediction file name prefix. Defaults to the
	// synthesis route agent.
	AgentKind string
	// SFTParamKey is appended to the task name when set.
	SFTParamKey string
	// GroundTruthPath overrides the ground truth. When empty, the output
	// field of the prediction file is used.
	GroundTruthPath string
	// RecoverPartial reads truncated array files, such as those left by an
	// interrupted inference run, up to the last complete record.
	RecoverPartial bool
}

// ErrorAnalysis is one non-identical item pair.
type ErrorAnalysis struct {
	Key         string    `json:"detail_id_key"`
	Type        ErrorType `json:"error_type"`
	GroundTruth *Item     `json:"ground_truth"`
	Prediction  *Item     `json:"prediction"`
}

// ComparisonResult holds the item-level outcome for one record.
type ComparisonResult struct {
	RecordID              string          `json:"record_id"`
	Correct               bool            `json:"is_correct"`
	Errors                []ErrorAnalysis `json:"errors"`
	ItemRecall            int             `json:"item_recall"`
	ItemCorrect           int             `json:"item_correct"`
	TotalGroundTruthItems int             `json:"total_ground_truth_items"`
	TotalPredictedItems   int             `json:"total_predicted_items"`
}

type Analysis struct {
	Results         []ComparisonResult
	ErrorTypeCounts map[ErrorType]int
	Skipped         int
}

type Evaluator struct {
	options    Options
	comparator Comparator
}

func NewEvaluator(options Options) *Evaluator {
	if options.IUPACThreshold <= 0 {
		options.IUPACThreshold = DefaultIUPACThreshold
	}
	if options.AgentKind == "" {
		options.AgentKind = agents.SynthesisRouteKind
	}
	return &Evaluator{
		options:    options,
		comparator: Comparator{IUPACThreshold: options.IUPACThreshold},
	}
}

// Analyze scores predictions against ground truth record by record.
// Records are matched by id; for duplicated prediction ids the last one
// wins.
func (e *Evaluator) Analyze(groundTruth, predictions []*records.Record) *Analysis {
	predByID := lo.SliceToMap(predictions, func(rec *records.Record) (string, *records.Record) {
		return rec.ID, rec
	})
	analysis := &Analysis{ErrorTypeCounts: map[ErrorType]int{}}
	log.Infof("starting error analysis over %d ground-truth records", len(groundTruth))

	for _, gtRec := range groundTruth {
		predItems := map[string]*Item{}
		if predRec, ok := predByID[gtRec.ID]; ok {
			predItems = ItemsFromOutput(predRec.PredictOutput)
		} else if e.options.PenalizeMissing {
			log.WithField("record_id", gtRec.ID).Warn("record not found in predictions, scoring as missed")
		} else {
			log.WithField("record_id", gtRec.ID).Warn("record not found in predictions, skipping")
			analysis.Skipped++
			continue
		}
		result := e.compareRecord(gtRec.ID, ItemsFromOutput(gtRec.Output), predItems)
		for _, ea := range result.Errors {
			analysis.ErrorTypeCounts[ea.Type]++
		}
		analysis.Results = append(analysis.Results, result)
	}
	return analysis
}

func (e *Evaluator) compareRecord(recordID string, gtItems, predItems map[string]*Item) ComparisonResult {
	var common, missed, spurious []string
	for key := range gtItems {
		if _, ok := predItems[key]; ok {
			common = append(common, key)
		} else {
			missed = append(missed, key)
		}
	}
	for key := range predItems {
		if _, ok := gtItems[key]; !ok {
			spurious = append(spurious, key)
		}
	}
	sort.Strings(common)
	sort.Strings(missed)
	sort.Strings(spurious)

	result := ComparisonResult{
		RecordID:              recordID,
		TotalGroundTruthItems: len(gtItems),
		TotalPredictedItems:   len(predItems),
	}
	tp := 0
	for _, key := range common {
		errType := e.comparator.Compare(gtItems[key], predItems[key])
		if errType == ErrorNone {
			tp++
			continue
		}
		result.Errors = append(result.Errors, ErrorAnalysis{
			Key: key, Type: errType, GroundTruth: gtItems[key], Prediction: predItems[key],
		})
	}
	for _, key := range missed {
		result.Errors = append(result.Errors, ErrorAnalysis{
			Key: key, Type: ErrorMissed, GroundTruth: gtItems[key], Prediction: emptyItem(key),
		})
	}
	for _, key := range spurious {
		result.Errors = append(result.Errors, ErrorAnalysis{
			Key: key, Type: ErrorSpurious, GroundTruth: emptyItem(key), Prediction: predItems[key],
		})
	}
	result.ItemRecall = tp
	result.ItemCorrect = tp
	result.Correct = len(gtItems) == len(predItems) && tp == len(gtItems)
	return result
}
