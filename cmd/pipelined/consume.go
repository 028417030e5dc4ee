package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pipeline-service/internal/queue"
)

func newConsumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consume-events",
		Short: "Append pipeline events from the broker to the audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			c := queue.NewConsumer(cfg.Events.URL, cfg.Events.Queue, cfg.Events.AuditLog, log)
			err = c.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				log.Info("consumer stopped")
				return nil
			}
			return err
		},
	}
}
