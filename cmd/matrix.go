package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"matrixctl/internal/color"
	"matrixctl/internal/matrix"
)

func newMatrixCmd() *cobra.Command {
	var properties []string
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "List the configurations a run would sweep, without running anything",
		Long: `Matrix prints every combination of the configured property values in the
order run visits them, followed by the build command. Nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSweepConfig("", properties)
			if err != nil {
				return err
			}
			assignments, err := matrix.Enumerate(cfg.Properties)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			total := len(assignments)
			width := len(fmt.Sprint(total))
			for i, a := range assignments {
				fmt.Fprintf(out, "%*d/%d %s\n", width, i+1, total, color.Render(color.KeyStyle, a.Key()))
			}

			argv := sweepOptions(cfg).Argv()
			fmt.Fprintf(out, "\n%d configurations of %s, each running: %s\n", total, cfg.StorePath, strings.Join(argv, " "))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&properties, "property", "p", nil, "Property to sweep as name=v1,v2 or name=bool, repeatable")
	_ = cmd.RegisterFlagCompletionFunc("property", completePropertyFlag)
	return cmd
}
