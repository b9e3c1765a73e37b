package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/natexcvi/go-llm-eval/agents"
	"github.com/natexcvi/go-llm-eval/engines"
	"github.com/natexcvi/go-llm-eval/evaluation"
	"github.com/natexcvi/go-llm-eval/extract"
	"github.com/natexcvi/go-llm-eval/inference"
	"github.com/natexcvi/go-llm-eval/records"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const repairRetries = 2

var inferFlags struct {
	dataset      string
	idsFile      string
	outputDir    string
	models       []string
	agentKinds   []string
	maxBatchSize int
	appendMode   bool
	sequential   bool
	repairJSON   bool
	outputSchema bool
	jsonl        bool
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run extraction agents over a dataset.",
	Long: `Runs every selected agent kind with every selected model over the dataset
and writes one <AgentKind>_<model>.json file per agent into the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyInferFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Inference.Dataset == "" {
			return fmt.Errorf("no dataset given, use --dataset or inference.dataset")
		}

		recs, err := loadRecords()
		if err != nil {
			return err
		}
		agentList, err := buildAgents()
		if err != nil {
			return err
		}
		log.Infof("running %d agents over %d records", len(agentList), len(recs))

		var s *spinner.Spinner
		runnerOpts := []inference.Option{
			inference.WithAppend(cfg.Inference.Append),
			inference.WithJSONL(cfg.Inference.JSONL),
		}
		if !verbose {
			s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Writer = os.Stderr
			s.Suffix = " Just a moment..."
			s.Start()
			defer s.Stop()
			runnerOpts = append(runnerOpts, inference.WithProgress(func(agent string, done, total int) {
				s.Lock()
				s.Suffix = fmt.Sprintf(" %s %d/%d", agent, done, total)
				s.Unlock()
			}))
		}

		runner, err := inference.NewRunner(agentList, cfg.Inference.OutputDir, recs, runnerOpts...)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if cfg.Inference.Sequential {
			return runner.RunInSequence(ctx, cfg.Inference.MaxBatchSize)
		}
		return runner.RunConcurrently(ctx, cfg.Inference.MaxBatchSize)
	},
}

func applyInferFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Inference.Dataset = inferFlags.dataset
	}
	if flags.Changed("ids") {
		cfg.Inference.IDsFile = inferFlags.idsFile
	}
	if flags.Changed("output-dir") {
		cfg.Inference.OutputDir = inferFlags.outputDir
	}
	if flags.Changed("agents") {
		cfg.Inference.Agents = inferFlags.agentKinds
	}
	if flags.Changed("max-batch-size") {
		cfg.Inference.MaxBatchSize = inferFlags.maxBatchSize
	}
	if flags.Changed("append") {
		cfg.Inference.Append = inferFlags.appendMode
	}
	if flags.Changed("sequential") {
		cfg.Inference.Sequential = inferFlags.sequential
	}
	if flags.Changed("repair-json") {
		cfg.Inference.RepairJSON = inferFlags.repairJSON
	}
	if flags.Changed("output-schema") {
		cfg.Inference.OutputSchema = inferFlags.outputSchema
	}
	if flags.Changed("jsonl") {
		cfg.Inference.JSONL = inferFlags.jsonl
	}
}

func loadRecords() ([]*records.Record, error) {
	recs, err := records.LoadDataset(cfg.Inference.Dataset)
	if err != nil {
		return nil, err
	}
	if cfg.Inference.IDsFile == "" {
		return recs, nil
	}
	ids, err := records.LoadIDs(cfg.Inference.IDsFile)
	if err != nil {
		return nil, err
	}
	filtered := records.FilterByIDs(recs, ids)
	log.Infof("kept %d of %d records listed in %s", len(filtered), len(recs), cfg.Inference.IDsFile)
	return filtered, nil
}

// selectModels returns the requested model names without repeats, or
// every configured model when none are requested.
func selectModels(names []string) []string {
	if len(names) == 0 {
		return cfg.ModelNames()
	}
	return lo.Uniq(names)
}

func buildAgents() ([]agents.Agent, error) {
	names := selectModels(inferFlags.models)
	if len(names) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	var agentList []agents.Agent
	for _, name := range names {
		modelCfg, err := cfg.Model(name)
		if err != nil {
			return nil, err
		}
		model := modelCfg.EngineModel()
		engine, err := engines.NewEngine(model, cfg.EngineOptions()...)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		for _, kind := range cfg.Inference.Agents {
			var opts []agents.Option
			if cfg.Inference.OutputSchema && kind == agents.SynthesisRouteKind {
				opts = append(opts, agents.WithOutputSchema(&evaluation.Results{}))
			}
			if cfg.Inference.RepairJSON {
				opts = append(opts, agents.WithRepairer(extract.NewRepairer(engine, repairRetries)))
			}
			agent, err := agents.New(kind, model, engine, opts...)
			if err != nil {
				return nil, err
			}
			agentList = append(agentList, agent)
		}
	}
	return agentList, nil
}

func init() {
	flags := inferCmd.Flags()
	flags.StringVar(&inferFlags.dataset, "dataset", "", "JSON array of records to run on")
	flags.StringVar(&inferFlags.idsFile, "ids", "", "file with one record id per line to restrict the run to")
	flags.StringVarP(&inferFlags.outputDir, "output-dir", "o", "", "directory for <AgentKind>_<model>.json files")
	flags.StringSliceVarP(&inferFlags.models, "models", "m", nil, "models to run (default all configured)")
	flags.StringSliceVar(&inferFlags.agentKinds, "agents", nil, "agent kinds to run")
	flags.IntVar(&inferFlags.maxBatchSize, "max-batch-size", agents.DefaultMaxBatchSize, "records in flight per agent")
	flags.BoolVar(&inferFlags.appendMode, "append", false, "append to existing output files")
	flags.BoolVar(&inferFlags.sequential, "sequential", false, "run agents one after another")
	flags.BoolVar(&inferFlags.repairJSON, "repair-json", false, "repair malformed JSON answers")
	flags.BoolVar(&inferFlags.outputSchema, "output-schema", false, "append the result JSON schema to the system prompt")
	flags.BoolVar(&inferFlags.jsonl, "jsonl", false, "also write each agent's records to <AgentKind>_<model>.jsonl")
}
