package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/stop"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		var result map[string]string
		if err := decodeResponse(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["status"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
