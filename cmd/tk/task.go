package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/models"
	"github.com/zulandar/timekeeper/internal/worker"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task record commands",
	}

	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var (
		configPath string
		opts       ledger.CreateOpts
		hours      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log hours against a category",
		Long:  "Creates a task record. Hours must be between 0.5 and 12; the date defaults to today.",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ledger.ParseHours(hours)
			if err != nil {
				return err
			}
			opts.Hours = h
			if opts.Date == "" {
				opts.Date = time.Now().Format(ledger.DateLayout)
			}
			return runTaskAdd(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&opts.WorkerID, "worker", "", "worker ID (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what was worked on (required)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category from the worker's department (required)")
	cmd.Flags().StringVar(&hours, "hours", "", "hours worked (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "day worked, YYYY-MM-DD (default today)")
	cmd.MarkFlagRequired("worker")
	cmd.MarkFlagRequired("description")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("hours")
	return cmd
}

func runTaskAdd(cmd *cobra.Command, configPath string, opts ledger.CreateOpts) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	r, err := svc.CreateRecord(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s hours on %s\n", r.ID, formatHours(r.Hours), r.Date)
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		filters    ledger.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task records",
		Long:  "Lists task records with their derived time range, newest day first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskList(cmd, configPath, filters)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&filters.WorkerID, "worker", "", "filter by worker ID")
	cmd.Flags().StringVar(&filters.DateFrom, "from", "", "earliest day, inclusive")
	cmd.Flags().StringVar(&filters.DateTo, "to", "", "latest day, inclusive")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath string, filters ledger.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	records, err := ledger.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No task records found.")
		return nil
	}

	workers, err := worker.List(gormDB, worker.ListFilters{})
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Worker, len(workers))
	for i := range workers {
		byID[workers[i].ID] = &workers[i]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tWORKER\tCATEGORY\tHOURS\tRANGE\tDESCRIPTION")
	for i := range records {
		r := &records[i]
		span := "-"
		if wk, ok := byID[r.WorkerID]; ok {
			if tr, err := ledger.TimeRangeOf(wk, r); err == nil {
				span = tr.Start + "-" + tr.End
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.WorkerID, r.Category, formatHours(r.Hours), span, truncate(r.Description, 40))
	}
	w.Flush()
	return nil
}

func newTaskEditCmd() *cobra.Command {
	var (
		configPath  string
		description string
		category    string
		hours       string
		date        string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task record",
		Long:  "Changes only the fields whose flags are given. Editing hours of a running task resets its timer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p ledger.Patch
			if cmd.Flags().Changed("description") {
				p.Description = &description
			}
			if cmd.Flags().Changed("category") {
				p.Category = &category
			}
			if cmd.Flags().Changed("hours") {
				h, err := ledger.ParseHours(hours)
				if err != nil {
					return err
				}
				p.Hours = &h
			}
			if cmd.Flags().Changed("date") {
				p.Date = &date
			}
			return runTaskEdit(cmd, configPath, id, p)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&hours, "hours", "", "new hours")
	cmd.Flags().StringVar(&date, "date", "", "new day, YYYY-MM-DD")
	return cmd
}

func runTaskEdit(cmd *cobra.Command, configPath string, id uint, p ledger.Patch) error {
	if p.Description == nil && p.Category == nil && p.Hours == nil && p.Date == nil {
		return fmt.Errorf("nothing to change: pass at least one of --description, --category, --hours, --date")
	}

	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	r, err := svc.UpdateRecord(id, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s hours on %s\n", r.ID, formatHours(r.Hours), r.Date)
	return nil
}

func newTaskDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runTaskDelete(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func runTaskDelete(cmd *cobra.Command, configPath string, id uint) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	if err := svc.DeleteRecord(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
	return nil
}
