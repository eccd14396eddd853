package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"matrixctl/internal/color"
	"matrixctl/internal/matrix"
	"matrixctl/internal/store"
)

func newShowCmd() *cobra.Command {
	var (
		storePath string
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current values of the swept properties",
		Long: `Show reads the configuration file and prints the current value of every
property the sweep would change. With --all every property assignment in
the file is listed. The file is never written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSweepConfig(storePath, nil)
			if err != nil {
				return err
			}
			st := store.New(cfg.StorePath)

			var props []store.Property
			if all {
				props, err = st.Properties()
			} else {
				props, err = st.Snapshot(matrix.Names(cfg.Properties))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.Render(color.MutedStyle, st.Path()))
			for _, p := range props {
				fmt.Fprintf(out, "  %s = %s\n", color.Render(color.KeyStyle, p.Name), p.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "Configuration file to read (overrides storePath)")
	cmd.Flags().BoolVar(&all, "all", false, "List every property in the file, not only the swept ones")
	return cmd
}
