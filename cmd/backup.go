package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"barobak/internal/daemon"
	"barobak/internal/db"
	"barobak/internal/logger"
	"barobak/internal/repository"
	"barobak/internal/watcher"

	"github.com/spf13/cobra"
)

var backupMultiplayer bool

var backupCmd = &cobra.Command{
	Use:   "backup [save file]",
	Short: "Back up a single save file now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		defer func() {
			_ = db.Close()
		}()

		path := args[0]
		multiplayer := backupMultiplayer ||
			strings.EqualFold(filepath.Base(filepath.Dir(path)), watcher.MultiplayerDir)

		result, err := daemon.BackupOnce(context.Background(), cfg, repository.NewHistoryRepository(), path, multiplayer)
		if err != nil {
			return err
		}

		for _, a := range result.Artifacts {
			fmt.Println(a)
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVar(&backupMultiplayer, "multiplayer", false, "require character data next to the save")
	rootCmd.AddCommand(backupCmd)
}
