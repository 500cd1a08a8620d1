package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/alert"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Compliance alert commands",
	}

	cmd.AddCommand(newAlertsListCmd())
	cmd.AddCommand(newAlertsArchiveCmd())
	cmd.AddCommand(newAlertsRestoreCmd())
	cmd.AddCommand(newAlertsExportCmd())
	cmd.AddCommand(newAlertsPruneCmd())
	return cmd
}

// criteriaFlags registers the shared filter flags on cmd.
func criteriaFlags(cmd *cobra.Command, c *alert.Criteria, ref *string) {
	cmd.Flags().StringVar(ref, "ref", "", "reference day, YYYY-MM-DD (default today); the window ends the day before")
	cmd.Flags().StringVar(&c.WorkerID, "worker", "", "filter by worker ID")
	cmd.Flags().StringVar(&c.Severity, "severity", "", "critical, moderate, minor or all")
	cmd.Flags().StringVar(&c.Status, "status", "active", "active, archived or all")
	cmd.Flags().StringVar(&c.DateFrom, "from", "", "earliest day, inclusive")
	cmd.Flags().StringVar(&c.DateTo, "to", "", "latest day, inclusive")
}

func newAlertsListCmd() *cobra.Command {
	var (
		configPath string
		ref        string
		c          alert.Criteria
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List compliance alerts",
		Long:  "Derives alerts for the window before the reference day and prints those matching the filters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsList(cmd, configPath, ref, c)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	criteriaFlags(cmd, &c, &ref)
	return cmd
}

func runAlertsList(cmd *cobra.Command, configPath, ref string, c alert.Criteria) error {
	alerts, err := loadAlerts(configPath, ref, c)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(alerts) == 0 {
		fmt.Fprintln(out, "No alerts found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tWORKER\tKIND\tLOGGED\tTARGET\tSTATUS\tJUSTIFIED")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Key(), truncate(a.WorkerName, 24), a.Kind, formatHours(a.LoggedHours),
			formatHours(a.TargetHours), a.Status, orDash(a.Justification))
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d alert(s)\n", len(alerts))
	return nil
}

func loadAlerts(configPath, ref string, c alert.Criteria) ([]alert.Alert, error) {
	refDay, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return nil, err
	}
	return svc.FilterAlerts(context.Background(), refDay, c)
}

func newAlertsArchiveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "archive <key>...",
		Short: "Archive alerts by key",
		Long:  "Archives one or more alerts. Keys have the form worker/date/severity, as printed by 'alerts list'.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsBulk(cmd, configPath, args, true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func newAlertsRestoreCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "restore <key>...",
		Short: "Restore archived alerts by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsBulk(cmd, configPath, args, false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

// runAlertsBulk applies archive or restore to every key and reports each
// outcome. Unparseable keys fail individually without blocking the rest.
func runAlertsBulk(cmd *cobra.Command, configPath string, args []string, archive bool) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "Restored"
	if archive {
		verb = "Archived"
	}

	var keys []alert.Key
	failed := 0
	for _, arg := range args {
		k, err := alert.ParseKey(arg)
		if err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", arg, err)
			failed++
			continue
		}
		keys = append(keys, k)
	}

	var results []alert.Result
	if archive {
		results = svc.ArchiveAlerts(keys)
	} else {
		results = svc.RestoreAlerts(keys)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", r.Key, r.Err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s %s\n", verb, r.Key)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d alert(s) failed", failed, len(args))
	}
	return nil
}

func newAlertsExportCmd() *cobra.Command {
	var (
		configPath string
		ref        string
		output     string
		c          alert.Criteria
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export alerts to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsExport(cmd, configPath, ref, output, c)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVarP(&output, "output", "o", "alerts.xlsx", "output file")
	criteriaFlags(cmd, &c, &ref)
	return cmd
}

func runAlertsExport(cmd *cobra.Command, configPath, ref, output string, c alert.Criteria) error {
	alerts, err := loadAlerts(configPath, ref, c)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := alert.WriteXLSX(f, alerts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d alert(s) to %s\n", len(alerts), output)
	return nil
}

func newAlertsPruneCmd() *cobra.Command {
	var configPath, ref string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Forget archive decisions for alerts that no longer apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsPrune(cmd, configPath, ref)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&ref, "ref", "", "reference day, YYYY-MM-DD (default today)")
	return cmd
}

func runAlertsPrune(cmd *cobra.Command, configPath, ref string) error {
	refDay, err := parseRef(ref)
	if err != nil {
		return err
	}
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	n, err := svc.PruneAlerts(context.Background(), refDay)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d stale alert status(es)\n", n)
	return nil
}
