package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/ledger"
	"github.com/zulandar/timekeeper/internal/logging"
	"github.com/zulandar/timekeeper/internal/timer"
	"github.com/zulandar/timekeeper/internal/tracker"
)

func newTimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Live task timer commands",
	}

	cmd.AddCommand(newTimerStartCmd())
	cmd.AddCommand(newTimerStatusCmd())
	cmd.AddCommand(newTimerStopCmd())
	return cmd
}

func newTimerStartCmd() *cobra.Command {
	var (
		configPath string
		limit      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Time a task in the foreground",
		Long: `Runs a timer for the task until Ctrl-C (or --for elapses), saving the
accumulated hours to the record every 30 minutes and once more on stop.
The timer resumes from the hours already logged on the record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runTimerStart(cmd, configPath, id, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().DurationVar(&limit, "for", 0, "stop automatically after this long (0 runs until interrupted)")
	return cmd
}

func runTimerStart(cmd *cobra.Command, configPath string, taskID uint, limit time.Duration) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc := tracker.New(tracker.Opts{DB: gormDB, Config: cfg, Logger: log})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if limit > 0 {
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, stopping timer...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := svc.StartTimer(taskID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Timing task %d from %s\n", taskID, formatElapsed(st.ElapsedSeconds))

	unsubscribe := svc.OnTick(func(ev timer.TickEvent) {
		if ev.Flushed {
			fmt.Fprintf(out, "Saved %s hours (%s)\n", formatHours(timer.ToHours(ev.ElapsedSeconds)), formatElapsed(ev.ElapsedSeconds))
		}
		if ev.Stopped {
			fmt.Fprintln(out, "Reached the daily maximum; timer stopped.")
			cancel()
		}
		if ev.Released {
			fmt.Fprintln(out, "Timer was stopped or taken over elsewhere.")
			cancel()
		}
	})
	defer unsubscribe()

	// Run flushes the running timer once ctx is done.
	svc.Run(ctx)

	r, err := ledger.Get(gormDB, taskID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Task %d now has %s hours\n", taskID, formatHours(r.Hours))
	return nil
}

func newTimerStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		Long:  "Shows the timer running in any process that shares this database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimerStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func runTimerStatus(cmd *cobra.Command, configPath string) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	st, ok, err := svc.ActiveTimer()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "No timer running.")
		return nil
	}
	fmt.Fprintf(out, "Task %d at %s (since %s, owner %s)\n",
		st.TaskID, formatElapsed(st.ElapsedSeconds), st.StartedAt.Local().Format(time.DateTime), st.Owner)
	return nil
}

func newTimerStopCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop a running timer and save its hours",
		Long:  "Stops the task's timer wherever it is running and saves the elapsed hours to the record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runTimerStop(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	return cmd
}

func runTimerStop(cmd *cobra.Command, configPath string, taskID uint) error {
	_, svc, err := trackerFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	st, stopped, err := svc.StopTimer(taskID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !stopped {
		fmt.Fprintf(out, "Task %d has no running timer.\n", taskID)
		return nil
	}
	fmt.Fprintf(out, "Stopped task %d at %s hours\n", taskID, formatHours(st.Hours()))
	return nil
}
