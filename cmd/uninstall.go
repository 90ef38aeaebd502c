package cmd

import (
	"fmt"

	"barobak/internal/autostart"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the daemon autostart entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		as := autostart.New()
		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if !installed {
			fmt.Println("barobak daemon autostart is not installed")
			return nil
		}

		if err := as.Uninstall(); err != nil {
			return err
		}

		fmt.Println("barobak daemon autostart removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
