package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/timekeeper/internal/api"
	"github.com/zulandar/timekeeper/internal/config"
	"github.com/zulandar/timekeeper/internal/digest"
	"github.com/zulandar/timekeeper/internal/logging"
	"github.com/zulandar/timekeeper/internal/notify"
	"github.com/zulandar/timekeeper/internal/notify/discord"
	"github.com/zulandar/timekeeper/internal/notify/slack"
	"github.com/zulandar/timekeeper/internal/tracker"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live timer and alert digest",
		Long: `Starts the JSON API with the live timer event stream. When Slack or
Discord tokens are configured, newly raised alerts are also posted on the
alerts.digest_cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Timekeeper config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	if port == 0 {
		port = cfg.Server.Port
	}

	svc := tracker.New(tracker.Opts{DB: gormDB, Config: cfg, Logger: log})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Run(ctx)
	}()

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	if notifier != nil {
		sched, err := digest.New(digest.Opts{
			Source:   svc,
			Notifier: notifier,
			Logger:   log.Named("digest"),
			Spec:     cfg.Alerts.DigestCron,
		})
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	} else {
		log.Info("no notifier configured, alert digest disabled")
	}

	err = api.Start(ctx, api.StartOpts{
		Tracker: svc,
		Port:    port,
		Logger:  log.Named("api"),
		Out:     cmd.OutOrStdout(),
	})
	cancel()
	wg.Wait()
	if err != nil {
		log.Error("api server stopped", zap.Error(err))
	}
	return err
}

// buildNotifier returns the configured chat notifiers, or nil when none has
// a token.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Slack.Token != "" {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.Token, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if cfg.Discord.Token != "" {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.Token, ChannelID: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	switch len(multi) {
	case 0:
		return nil, nil
	case 1:
		return multi[0], nil
	}
	return multi, nil
}
