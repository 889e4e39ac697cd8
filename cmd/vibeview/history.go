package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bnema/vibeview/internal/models"
	"github.com/bnema/vibeview/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect browsing history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent history entries",
	RunE:  runHistoryList,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find history entries by URL or title",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistorySearch,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	RunE:  runHistoryClear,
}

func openHistory() *storage.History {
	return storage.NewHistory(afero.NewOsFs(), cfg.Storage.Dir, cfg.Storage.HistoryLimit)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	items, err := openHistory().List()
	if err != nil {
		return err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	printHistory(cmd.OutOrStdout(), items)
	return nil
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	items, err := openHistory().Search(args[0])
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), items)
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	if err := openHistory().Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
	return nil
}

func printHistory(w io.Writer, items []models.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No history entries")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s  %s\n", it.Timestamp.Local().Format(time.DateTime), it.URL)
		if it.Title != "" {
			fmt.Fprintf(w, "                     %s\n", it.Title)
		}
	}
}
