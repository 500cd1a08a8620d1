package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Worker management commands",
	}

	cmd.AddCommand(newWorkerAddCmd())
	cmd.AddCommand(newWorkerListCmd())
	cmd.AddCommand(newWorkerEditCmd())
	cmd.AddCommand(newWorkerDeleteCmd())
	return cmd
}

func newWorkerAddCmd() *cobra.Command {
	var (
		configPath string
		opts       worker.CreateOpts
		target     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a worker",
		Long:  "Adds a worker to a configured department with a daily hours target and shift start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := decimal.NewFromString(target)
			if err != nil {
				return fmt.Errorf("invalid --target %q: %w", target, err)
			}
			opts.TargetHoursPerDay = t
			return runWorkerAdd(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&opts.Name, "name", "", "worker name (required)")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department (required)")
	cmd.Flags().StringVar(&opts.Role, "role", "standard", "role: standard or supervisor")
	cmd.Flags().StringVar(&target, "target", "8", "target hours per day")
	cmd.Flags().StringVar(&opts.ShiftStart, "shift-start", "09:00", "shift start time (HH:MM)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("department")
	return cmd
}

func runWorkerAdd(cmd *cobra.Command, configPath string, opts worker.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	w, err := worker.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created worker %s\n", w.ID)
	fmt.Fprintf(out, "Target: %s hours from %s\n", formatHours(w.TargetHoursPerDay), w.ShiftStart)
	return nil
}

func newWorkerListCmd() *cobra.Command {
	var (
		configPath string
		filters    worker.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkerList(cmd, configPath, filters)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&filters.Department, "department", "", "filter by department")
	cmd.Flags().StringVar(&filters.Role, "role", "", "filter by role")
	return cmd
}

func runWorkerList(cmd *cobra.Command, configPath string, filters worker.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	workers, err := worker.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(workers) == 0 {
		fmt.Fprintln(out, "No workers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tROLE\tTARGET\tSHIFT")
	for _, wk := range workers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			wk.ID, truncate(wk.Name, 30), wk.Department, wk.Role, formatHours(wk.TargetHoursPerDay), wk.ShiftStart)
	}
	w.Flush()
	return nil
}

func newWorkerEditCmd() *cobra.Command {
	var (
		configPath string
		name       string
		department string
		role       string
		target     string
		shiftStart string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a worker",
		Long: `Changes only the fields whose flags are given. A worker can move to
another department only if it has every category their records use.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]interface{})
			if cmd.Flags().Changed("name") {
				updates["name"] = name
			}
			if cmd.Flags().Changed("department") {
				updates["department"] = department
			}
			if cmd.Flags().Changed("role") {
				updates["role"] = role
			}
			if cmd.Flags().Changed("target") {
				t, err := decimal.NewFromString(target)
				if err != nil {
					return fmt.Errorf("invalid --target %q: %w", target, err)
				}
				updates["target_hours_per_day"] = t
			}
			if cmd.Flags().Changed("shift-start") {
				updates["shift_start"] = shiftStart
			}
			return runWorkerEdit(cmd, configPath, args[0], updates)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&department, "department", "", "new department")
	cmd.Flags().StringVar(&role, "role", "", "new role: standard or supervisor")
	cmd.Flags().StringVar(&target, "target", "", "new target hours per day")
	cmd.Flags().StringVar(&shiftStart, "shift-start", "", "new shift start time (HH:MM)")
	return cmd
}

func runWorkerEdit(cmd *cobra.Command, configPath, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return fmt.Errorf("nothing to change: pass at least one of --name, --department, --role, --target, --shift-start")
	}

	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	w, err := svc.UpdateWorker(id, updates)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated worker %s: %s, %s %s, %s hours from %s\n",
		w.ID, w.Name, w.Department, w.Role, formatHours(w.TargetHoursPerDay), w.ShiftStart)
	return nil
}

func newWorkerDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a worker with their records and justifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkerDelete(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func runWorkerDelete(cmd *cobra.Command, configPath, id string) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	if err := svc.DeleteWorker(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted worker %s\n", id)
	return nil
}
