package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "List the configured indicators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSOURCE\tCOORDINATES\tFORMAT\tCLASS")
		for _, indicator := range cfg.Indicators {
			coordinates := indicator.Series
			if indicator.Path != "" {
				coordinates = indicator.Path
			}
			if indicator.Country != "" {
				coordinates += " (" + indicator.Country + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				indicator.Name, indicator.Source, coordinates, indicator.PeriodFormat(), indicator.ValueClass())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(indicatorsCmd)
}
