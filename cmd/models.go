package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tRESTRICTED\tREASONING")
		for _, m := range cfg.Models {
			provider := m.Provider
			if provider == "" {
				provider = "openai"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\n", m.Name, provider, m.EngineModel().Model, m.Restricted, m.Reasoning)
		}
		return w.Flush()
	},
}
