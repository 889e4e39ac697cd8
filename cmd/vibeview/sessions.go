package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bnema/vibeview/internal/storage"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsRestoreInfoCmd = &cobra.Command{
	Use:   "restore-info",
	Short: "Show the tabs that would be restored after a crash",
	RunE:  runSessionsRestoreInfo,
}

func openSessions() *storage.Sessions {
	return storage.NewSessions(afero.NewOsFs(), cfg.Storage.Dir)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	list, err := openSessions().List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No saved sessions")
		return nil
	}
	for _, s := range list {
		fmt.Fprintf(out, "%s  %-24s %2d tab(s)  %s\n", s.ID, s.Name, len(s.Tabs), s.LastModified.Format(time.DateTime))
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	if err := openSessions().Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func runSessionsRestoreInfo(cmd *cobra.Command, args []string) error {
	session, ok, err := openSessions().Autosave()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok || len(session.Tabs) == 0 {
		fmt.Fprintln(out, "Nothing to restore")
		return nil
	}
	fmt.Fprintf(out, "Autosaved %s:\n", session.LastModified.Format(time.DateTime))
	for _, t := range session.Tabs {
		fmt.Fprintf(out, "  %s  %s\n", t.URL, t.Title)
	}
	return nil
}
