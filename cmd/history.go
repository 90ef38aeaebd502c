package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"barobak/internal/model"

	"github.com/spf13/cobra"
)

var (
	historyN    int
	historyFile string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View backup history",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("n", fmt.Sprint(historyN))
		if historyFile != "" {
			q.Set("file", historyFile)
		}

		resp, err := http.Get(daemonURL("/history?" + q.Encode()))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		var histories []model.History
		if err := decodeResponse(resp, &histories); err != nil {
			return err
		}

		if len(histories) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, h := range histories {
			status := "✓"
			detail := h.Artifacts
			if h.Status != model.StatusSuccess {
				status = "✗"
				detail = h.ErrMsg
			}

			fmt.Printf("%s [%s] %-9s %s -> %s\n",
				status,
				h.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				h.Status,
				h.FileName,
				detail,
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().StringVar(&historyFile, "file", "", "only show entries for this save file name")
	rootCmd.AddCommand(historyCmd)
}
