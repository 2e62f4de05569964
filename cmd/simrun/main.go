package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	csvPath string
)

func main() {
	root := &cobra.Command{
		Use:   "simrun",
		Short: "Deterministic bar-replay trade simulator",
		Long: `simrun replays historical bars against a strategy through the
broker emulation engine and reports fills, trades and equity. Runs are
fully reproducible from the bar feed and configuration.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML configuration")
	root.PersistentFlags().StringVar(&csvPath, "csv", "", "load bars from a CSV file instead of ClickHouse")

	root.AddCommand(newRunCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newIngestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
