package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okabe/favcrawl/internal/history"
)

// newHistoryCmd creates the 'history' subcommand, a read-only view of the
// run log.
func newHistoryCmd() *cobra.Command {
	var (
		event string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Shows recent crawl run summaries",

		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}

			records, err := history.NewLog(rt.Config.Paths.HistoryFile).Recent(event, limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if len(records) == 0 {
				cmd.Println("no runs recorded")
				return nil
			}
			for _, rec := range records {
				cmd.Printf("%s  %-10s  run=%s  %s\n",
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					rec.Event,
					shortRunID(rec.RunID),
					formatCounts(rec.Counts))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "only show records for this stage event")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
