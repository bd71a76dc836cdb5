package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ilanpazar/messaging/internal/cleanup"
	"github.com/ilanpazar/messaging/internal/config"
)

func newCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep inactive conversations once",
		Long:  "Deletes conversations with no activity inside the configured retention window, cascading to their messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "msgd.yaml", "path to config file")
	return cmd
}

func runCleanup(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	sweeper := cleanup.NewSweeper(gormDB, time.Duration(cfg.Cleanup.RetentionDays)*24*time.Hour, logrus.StandardLogger())
	removed, err := sweeper.RunOnce(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d inactive conversations\n", removed)
	return nil
}
