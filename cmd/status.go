package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"barobak/internal/model"
	"barobak/internal/repository"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		var result struct {
			Service model.ServiceSnapshot `json:"service"`
			History *repository.Stats     `json:"history"`
		}

		if err := decodeResponse(resp, &result); err != nil {
			return err
		}

		snap := result.Service
		lastBackup := "-"
		if snap.LastBackup != nil {
			lastBackup = snap.LastBackup.Format("2006-01-02 15:04:05")
		}

		output := snap.OutputDir
		if output == "" {
			output = "(next to each save)"
		}

		fmt.Printf("strategy:    %s\n", snap.Strategy)
		fmt.Printf("output:      %s\n", output)
		fmt.Printf("uptime:      %s\n", time.Since(snap.StartedAt).Round(time.Second))
		fmt.Printf("last backup: %s\n", lastBackup)
		fmt.Printf("events:      %d accepted, %d dropped\n", snap.Accepted, snap.Dropped)
		fmt.Printf("backups:     %d succeeded, %d failed\n", snap.Succeeded, snap.Failed)

		inFlight := "-"
		if len(snap.InFlight) > 0 {
			inFlight = strings.Join(snap.InFlight, ", ")
		}
		fmt.Printf("in flight:   %s\n", inFlight)

		if result.History != nil {
			fmt.Printf("history:     %d total, %d succeeded, %d failed, %d abandoned\n",
				result.History.Total, result.History.Success, result.History.Failed, result.History.Abandoned)
		}

		fmt.Println()
		fmt.Printf("%-12s %-8s %s\n", "MODE", "PATTERN", "DIR")
		for _, t := range snap.Targets {
			mode := "single"
			if t.Multiplayer {
				mode = "multi"
			}
			fmt.Printf("%-12s %-8s %s\n", mode, t.Pattern, t.Dir)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
