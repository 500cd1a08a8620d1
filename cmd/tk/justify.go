package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/justification"
	"github.com/zulandar/timekeeper/internal/models"
)

func newJustifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "justify",
		Short: "Holiday and vacation justification commands",
	}

	cmd.AddCommand(newJustifyAddCmd())
	cmd.AddCommand(newJustifyListCmd())
	cmd.AddCommand(newJustifyReviewCmd())
	return cmd
}

func newJustifyAddCmd() *cobra.Command {
	var configPath, workerID, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Justify a worker's day as holiday or vacation",
		Long:  "Records a pending justification. A worker may justify each day only once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJustifyAdd(cmd, configPath, workerID, date)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&workerID, "worker", "", "worker ID (required)")
	cmd.Flags().StringVar(&date, "date", "", "day being justified, YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("worker")
	cmd.MarkFlagRequired("date")
	return cmd
}

func runJustifyAdd(cmd *cobra.Command, configPath, workerID, date string) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	j, err := svc.CreateJustification(workerID, date)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created justification %d for %s (%s)\n", j.ID, justification.Key(j.WorkerID, j.Date), j.Status)
	return nil
}

func newJustifyListCmd() *cobra.Command {
	var configPath, workerID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List justifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJustifyList(cmd, configPath, workerID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&workerID, "worker", "", "filter by worker ID")
	return cmd
}

func runJustifyList(cmd *cobra.Command, configPath, workerID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := justification.List(gormDB, workerID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No justifications found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tWORKER\tTYPE\tSTATUS")
	for _, j := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", j.ID, j.Date, j.WorkerID, j.Type, j.Status)
	}
	w.Flush()
	return nil
}

func newJustifyReviewCmd() *cobra.Command {
	var configPath, status string

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject a pending justification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runJustifyReview(cmd, configPath, id, status)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().StringVar(&status, "status", models.JustificationApproved, "approved or rejected")
	return cmd
}

func runJustifyReview(cmd *cobra.Command, configPath string, id uint, status string) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	if err := svc.ReviewJustification(id, status); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Justification %d %s\n", id, status)
	return nil
}
