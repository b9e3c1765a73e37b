package main

import (
	"fmt"

	"github.com/natexcvi/go-llm-eval/evaluation"
	"github.com/spf13/cobra"
)

var evalFlags struct {
	inputDir        string
	outputDir       string
	agentKind       string
	groundTruth     string
	iupacThreshold  float64
	penalizeMissing bool
	sftParamKey     string
	recoverPartial  bool
}

var evalCmd = &cobra.Command{
	Use:   "eval [MODEL...]",
	Short: "Score prediction files against ground truth.",
	Long: `Scores <AgentKind>_<model>.json in the input directory for each model
(default all configured) and writes per-model reports plus all_stats.xlsx.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEvalFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		models := selectModels(args)
		if len(models) == 0 {
			return fmt.Errorf("no models given")
		}
		evaluator := evaluation.NewEvaluator(evaluation.Options{
			IUPACThreshold:  cfg.Evaluation.IUPACThreshold,
			PenalizeMissing: cfg.Evaluation.PenalizeMissing,
			AgentKind:       cfg.Evaluation.AgentKind,
			SFTParamKey:     cfg.Evaluation.SFTParamKey,
			GroundTruthPath: cfg.Evaluation.GroundTruth,
			RecoverPartial:  cfg.Evaluation.RecoverPartial,
		})
		all, err := evaluator.EvaluateModels(cfg.Evaluation.InputDir, cfg.Evaluation.OutputDir, models)
		for _, stats := range all {
			fmt.Printf("%-24s P=%.4f R=%.4f F1=%.4f fully correct %d/%d\n",
				stats.ModelName, stats.PrecisionRate, stats.RecallRate, stats.F1,
				stats.FullyCorrectRecords, stats.NumRecords)
		}
		return err
	},
}

func applyEvalFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("input-dir") {
		cfg.Evaluation.InputDir = evalFlags.inputDir
	}
	if flags.Changed("output-dir") {
		cfg.Evaluation.OutputDir = evalFlags.outputDir
	}
	if flags.Changed("agent-kind") {
		cfg.Evaluation.AgentKind = evalFlags.agentKind
	}
	if flags.Changed("ground-truth") {
		cfg.Evaluation.GroundTruth = evalFlags.groundTruth
	}
	if flags.Changed("iupac-threshold") {
		cfg.Evaluation.IUPACThreshold = evalFlags.iupacThreshold
	}
	if flags.Changed("penalize-missing") {
		cfg.Evaluation.PenalizeMissing = evalFlags.penalizeMissing
	}
	if flags.Changed("sft-param-key") {
		cfg.Evaluation.SFTParamKey = evalFlags.sftParamKey
	}
	if flags.Changed("recover") {
		cfg.Evaluation.RecoverPartial = evalFlags.recoverPartial
	}
}

func init() {
	flags := evalCmd.Flags()
	flags.StringVarP(&evalFlags.inputDir, "input-dir", "i", "", "directory holding the prediction files")
	flags.StringVarP(&evalFlags.outputDir, "output-dir", "o", "", "directory for reports")
	flags.StringVar(&evalFlags.agentKind, "agent-kind", "", "prediction file prefix")
	flags.StringVar(&evalFlags.groundTruth, "ground-truth", "", "separate ground-truth file (default: output field of the predictions)")
	flags.Float64Var(&evalFlags.iupacThreshold, "iupac-threshold", evaluation.DefaultIUPACThreshold, "minimum IUPAC name similarity")
	flags.BoolVar(&evalFlags.penalizeMissing, "penalize-missing", false, "score records absent from predictions as all missed")
	flags.StringVar(&evalFlags.sftParamKey, "sft-param-key", "", "suffix for the task name")
	flags.BoolVar(&evalFlags.recoverPartial, "recover", false, "read truncated prediction files up to the last complete record")
}
