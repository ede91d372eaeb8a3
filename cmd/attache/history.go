package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeos-tools/attache/internal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent calendar mutations from the local journal",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	storage, closeDB, err := openStorage()
	if err != nil {
		return err
	}
	defer closeDB()

	recs, err := storage.RecentMutations(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No mutations recorded yet.")
		return nil
	}

	for _, rec := range recs {
		marker := "✓"
		switch rec.Status {
		case internal.MutationPartial:
			marker = "⚠"
		case internal.MutationFailed:
			marker = "✗"
		}
		line := fmt.Sprintf("%s %s  %-16s %q on %s",
			marker, rec.At.Local().Format("2006-01-02 15:04"), rec.Action, rec.Title, rec.SourceID)
		if rec.Detail != "" {
			line += " (" + rec.Detail + ")"
		}
		fmt.Println(line)
	}
	return nil
}
