package cmd

import (
	"context"
	"fmt"
	"time"

	"barobak/internal/update"
	"barobak/internal/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and check for a newer release",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.UserAgent())

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		newer, err := update.NewChecker(version.UserAgent()).Check(ctx, version.Version)
		if err != nil {
			fmt.Println("could not check for updates:", err)
			return nil
		}
		if newer != nil {
			fmt.Printf("a new version is available: %s\nget it at %s\n", newer, update.ReleasesPage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
