package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barobak/internal/daemon"
	"barobak/internal/db"
	"barobak/internal/logger"
	"barobak/internal/repository"
	"barobak/internal/update"
	"barobak/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the save folder and back up saves as they change",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()
	defer func() {
		_ = db.Close()
	}()

	repo := repository.NewHistoryRepository()

	svc, err := daemon.NewService(cfg, repo)
	if err != nil {
		return err
	}

	srv := daemon.NewServer(svc, repo, cfg.DaemonPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CheckForUpdates {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			_, _ = update.NewChecker(version.UserAgent()).Check(checkCtx, version.Version)
		}()
	}

	logger.Log.Info("barobak daemon starting",
		zap.String("version", version.Version),
		zap.Int("port", cfg.DaemonPort))

	return daemon.Run(ctx, svc, srv)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
