package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ilanpazar/messaging/internal/api"
	"github.com/ilanpazar/messaging/internal/chat"
	"github.com/ilanpazar/messaging/internal/cleanup"
	"github.com/ilanpazar/messaging/internal/config"
	"github.com/ilanpazar/messaging/internal/gateway"
	"github.com/ilanpazar/messaging/internal/identity"
	"github.com/ilanpazar/messaging/internal/storage"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the messaging service",
		Long:  "Serves the REST API and the websocket gateway, and schedules the inactivity sweeper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "msgd.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	convs := chat.NewConversationStore(gormDB)
	reads := chat.NewReadTracker(gormDB, convs)
	msgs := chat.NewMessageStore(gormDB, convs, reads)
	unread := chat.NewUnreadAggregator(gormDB)
	poll := chat.NewPollService(msgs)
	verifier := identity.NewJWTVerifier(cfg.Auth.TokenSecret)

	objects, err := storage.NewDiskStore(cfg.Storage.Dir)
	if err != nil {
		return err
	}

	gw, err := gateway.New(gateway.Opts{
		Conversations: convs,
		Messages:      msgs,
		Reads:         reads,
		Verifier:      verifier,
		SendBuffer:    cfg.Gateway.SendBuffer,
		Log:           log,
	})
	if err != nil {
		return err
	}
	defer gw.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cleanup.Schedule != "" {
		sweeper := cleanup.NewSweeper(gormDB, time.Duration(cfg.Cleanup.RetentionDays)*24*time.Hour, log)
		scheduler := cron.New()
		if err := sweeper.Schedule(scheduler, cfg.Cleanup.Schedule); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port)
	log.WithField("addr", addr).Info("msgd: serving")

	return api.Start(ctx, api.Opts{
		Conversations: convs,
		Messages:      msgs,
		Reads:         reads,
		Unread:        unread,
		Poll:          poll,
		Gateway:       gw,
		Verifier:      verifier,
		Objects:       objects,
		Addr:          addr,
		Log:           log,
	})
}
