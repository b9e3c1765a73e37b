package main

import (
	"os"

	"github.com/natexcvi/go-llm-eval/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chemeval",
	Short: "Batch LLM extraction over chemical patents, and scoring against ground truth.",
	Long: `chemeval runs extraction agents over a dataset of patent records and
scores the predictions against ground truth.

Example usage:
	chemeval infer --dataset data/test.json --models gpt-4o,QWEN25_32B
	chemeval eval gpt-4o QWEN25_32B --input-dir infer_res --output-dir eval_res
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return config.SetupLogging(cfg.Log, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chemeval.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, no spinner")

	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
