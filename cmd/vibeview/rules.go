package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bnema/vibeview/internal/fetcher"
	"github.com/bnema/vibeview/internal/logging"
	"github.com/bnema/vibeview/internal/mediator"
	"github.com/bnema/vibeview/internal/ruleset"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and edit the adblock rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show rule files, counts and configured remote lists",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Report whether URLs would be blocked",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRulesCheck,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <rule>",
	Short: "Append a rule to the custom rule file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesAdd,
}

var rulesReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Load all rule files and print a report",
	RunE:  runRulesReload,
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download enabled remote filter lists",
	RunE:  runRulesUpdate,
}

func openRules() *ruleset.Store {
	logging.Setup(cfg.Log)
	return ruleset.New(afero.NewOsFs(), cfg.Rules)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	store := openRules()
	report := store.Reload()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Rule files:")
	for _, f := range report.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	printStats(out, store.Stats())

	fmt.Fprintln(out, "\nRemote lists:")
	for _, list := range cfg.Lists {
		status := "enabled"
		if !list.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(out, "  [%s] %s\n", status, list.Name)
		fmt.Fprintf(out, "         %s\n", list.URL)
	}
	return nil
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	store := openRules()
	store.Reload()

	dataSaver, _ := cmd.Flags().GetBool("data-saver")
	med := mediator.New(store)
	med.SetAdblockEnabled(true)
	med.SetDataSaverEnabled(dataSaver)

	out := cmd.OutOrStdout()
	for _, u := range args {
		verdict := "allowed"
		if med.Probe(u) {
			verdict = "blocked"
		}
		fmt.Fprintf(out, "%-8s %s\n", verdict, u)
	}
	return nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	store := openRules()
	store.Reload()
	if err := store.AddRule(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added rule to %s\n", store.CustomPath())
	printStats(cmd.OutOrStdout(), store.Stats())
	return nil
}

func runRulesReload(cmd *cobra.Command, args []string) error {
	store := openRules()
	report := store.Reload()
	printReport(cmd.OutOrStdout(), report)
	printStats(cmd.OutOrStdout(), store.Stats())
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d rule file(s) could not be read", len(report.Errors))
	}
	return nil
}

func runRulesUpdate(cmd *cobra.Command, args []string) error {
	logging.Setup(cfg.Log)
	reload, _ := cmd.Flags().GetBool("reload")

	lists := cfg.EnabledLists()
	if len(lists) == 0 {
		return fmt.Errorf("no enabled filter lists found in config")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Updating %d filter lists...\n", len(lists))

	fs := afero.NewOsFs()
	results, err := fetcher.New(cfg.HTTP).UpdateLists(context.Background(), fs, cfg.Rules.Dir, lists)
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "  %-20s ERROR: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Fprintf(out, "  %-20s %d bytes, %d block, %d allow, %d unsupported\n",
			r.Name, r.Bytes, r.Stats.Block, r.Stats.Allow, r.Stats.Unsupported)
	}

	if reload {
		store := ruleset.New(fs, cfg.Rules)
		printReport(out, store.Reload())
		printStats(out, store.Stats())
	}
	return err
}

func printStats(w io.Writer, s ruleset.Stats) {
	fmt.Fprintf(w, "\nBlock rules: %d\nAllow rules: %d\n", s.BlockRules, s.AllowRules)
}

func printReport(w io.Writer, r ruleset.LoadReport) {
	fmt.Fprintf(w, "Loaded %d file(s): %d lines, %d block, %d allow, %d comments\n",
		len(r.Files), r.Parse.Total, r.Parse.Block, r.Parse.Allow, r.Parse.Comments)
	fmt.Fprintf(w, "Compiled %d rule(s), skipped %d\n", r.Convert.Converted, r.Convert.Skipped+r.Parse.Unsupported)

	for _, err := range r.Errors {
		fmt.Fprintf(w, "  error: %v\n", err)
	}

	skips := make(map[string]int)
	for reason, n := range r.Parse.SkipReasons {
		skips[reason] += n
	}
	for reason, n := range r.Convert.SkipReasons {
		skips[reason] += n
	}
	if len(skips) == 0 {
		return
	}
	reasons := make([]string, 0, len(skips))
	for reason := range skips {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	fmt.Fprintln(w, "Skipped:")
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s: %d\n", reason, skips[reason])
	}
}
