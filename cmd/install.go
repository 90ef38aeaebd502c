package cmd

import (
	"fmt"
	"os"

	"barobak/internal/autostart"
	"barobak/internal/config"

	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the daemon automatically at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		// A daemon that cannot start its watches would only restart in a loop.
		if err := cfg.Validate(); err != nil {
			return err
		}

		as := autostart.New()
		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if installed && !installForce {
			return fmt.Errorf("autostart is already installed, use --force to replace it")
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		workDir, err := config.Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return err
		}

		opts := autostart.Options{ExecPath: execPath, WorkDir: workDir, Debug: debug}
		if err := as.Install(opts); err != nil {
			return err
		}

		fmt.Printf("barobak daemon registered for autostart (backing up to %s)\n", backupTarget())
		return nil
	},
}

// backupTarget describes where the registered daemon will write artifacts.
func backupTarget() string {
	if dir := cfg.BackupService.BackupFolder; dir != "" {
		return dir
	}
	return "the save folder"
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "replace an existing autostart entry")
	rootCmd.AddCommand(installCmd)
}
