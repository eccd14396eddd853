package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"matrixctl/internal/color"
	"matrixctl/internal/config"
	"matrixctl/internal/store"
	"matrixctl/pkg/logging"
)

func newRestoreCmd() *cobra.Command {
	var restorePoint string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Put back the original values left by an interrupted sweep",
		Long: `Restore applies the restore point written at the start of a sweep and
removes it. It is only needed when matrixctl was killed before it could
restore the configuration file itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := restorePoint
			if path == "" {
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					return err
				}
				path = cfg.RestorePointPath
			}
			return runRestore(cmd, path)
		},
	}
	cmd.Flags().StringVar(&restorePoint, "restore-point", "", "Restore point to apply (overrides restorePointPath)")
	return cmd
}

func runRestore(cmd *cobra.Command, path string) error {
	if path == "" {
		return errors.New("no restore point path configured")
	}
	lock, err := store.AcquireLock(store.LockPath(path, ""))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Warn("Restore", "%v", err)
		}
	}()

	rp, err := store.LoadRestorePoint(path)
	if errors.Is(err, store.ErrNoRestorePoint) {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing to restore, %s does not exist\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	st := store.New(rp.StorePath)
	if err := st.Restore(rp.Properties); err != nil {
		return fmt.Errorf("failed to restore %s: %w", rp.StorePath, err)
	}
	logging.Info("Restore", "Applied restore point from %s", rp.CreatedAt.Format("2006-01-02 15:04:05"))
	if err := store.RemoveRestorePoint(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d properties of %s\n", color.Render(color.SuccessStyle, "Restored"), len(rp.Properties), rp.StorePath)
	for _, p := range rp.Properties {
		fmt.Fprintf(out, "  %s = %s\n", color.Render(color.KeyStyle, p.Name), p.Value)
	}
	return nil
}
