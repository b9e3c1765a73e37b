package evaluation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/natexcvi/go-llm-eval/records"
	"github.com/samber/mo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoPredictions is returned for a model whose prediction file is absent.
var ErrNoPredictions = errors.New("prediction file not found")

func (e *Evaluator) PredictionPath(inputDir, model string) string {
	return filepath.Join(inputDir, fmt.Sprintf("%s_%s.json", e.options.AgentKind, model))
}

func (e *Evaluator) taskName(model string) string {
	name := "ErrorEval_" + model
	if e.options.SFTParamKey != "" {
		name += "_" + e.options.SFTParamKey
	}
	return name
}

func (e *Evaluator) load(path string) ([]*records.Record, error) {
	if e.options.RecoverPartial {
		return records.RecoverFile(path)
	}
	return records.LoadFile(path)
}

// EvaluateModel scores one model's prediction file and writes its JSON
// report, error CSV and workbook into outputDir.
func (e *Evaluator) EvaluateModel(inputDir, outputDir, model string) (*Stats, error) {
	predPath := e.PredictionPath(inputDir, model)
	if _, err := os.Stat(predPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPredictions, predPath)
	}
	log.Infof("loading predictions from %s", predPath)
	predictions, err := e.load(predPath)
	if err != nil {
		return nil, err
	}
	groundTruth := predictions
	if e.options.GroundTruthPath != "" {
		if groundTruth, err = e.load(e.options.GroundTruthPath); err != nil {
			return nil, err
		}
	}

	analysis := e.Analyze(groundTruth, predictions)
	stats := ComputeStats(analysis)
	stats.ModelName = model
	stats.TaskName = e.taskName(model)
	stats.SFTParamKey = e.options.SFTParamKey
	stats.RunID = uuid.NewString()

	log.WithFields(log.Fields{
		"model":     model,
		"records":   stats.NumRecords,
		"precision": stats.PrecisionRate,
		"recall":    stats.RecallRate,
		"f1":        stats.F1,
	}).Info("evaluation finished")

	rows := ErrorRows(analysis)
	var g errgroup.Group
	g.Go(func() error {
		return WriteReport(filepath.Join(outputDir, fmt.Sprintf("report_ErrorEval_%s.txt", model)), stats)
	})
	g.Go(func() error {
		return WriteErrorCSV(filepath.Join(outputDir, fmt.Sprintf("ErrorDetails_%s.csv", model)), rows)
	})
	g.Go(func() error {
		return WriteErrorWorkbook(filepath.Join(outputDir, fmt.Sprintf("ErrorEval_%s.xlsx", model)), rows, stats)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// EvaluateModels evaluates every model concurrently and writes a combined
// all_stats.xlsx. Models without a prediction file are skipped with a
// warning; other failures are collected and returned. Stats come back in
// model order.
func (e *Evaluator) EvaluateModels(inputDir, outputDir string, models []string) ([]*Stats, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	channels := make([]chan mo.Result[*Stats], len(models))
	for i, model := range models {
		channels[i] = make(chan mo.Result[*Stats], 1)
		go func(i int, model string) {
			channels[i] <- mo.TupleToResult(e.EvaluateModel(inputDir, outputDir, model))
		}(i, model)
	}

	var (
		all  []*Stats
		errs *multierror.Error
	)
	for i, model := range models {
		stats, err := (<-channels[i]).Get()
		switch {
		case errors.Is(err, ErrNoPredictions):
			log.Warnf("%s, skipping model %s", err, model)
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("model %s: %w", model, err))
		default:
			all = append(all, stats)
		}
	}

	if len(all) == 0 {
		log.Warn("no model finished evaluation, all_stats.xlsx not written")
		return nil, errs.ErrorOrNil()
	}
	if err := WriteSummaryWorkbook(filepath.Join(outputDir, "all_stats.xlsx"), all); err != nil {
		errs = multierror.Append(errs, err)
	}
	return all, errs.ErrorOrNil()
}
