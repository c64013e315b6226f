package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoockh/nexusbot/config"
	"github.com/yoockh/nexusbot/internal/models"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := config.NewPostgres(cfg.PostgresURI)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := db.WithContext(cmd.Context()).AutoMigrate(
				&models.Bot{},
				&models.Session{},
				&models.Message{},
				&models.Appointment{},
			); err != nil {
				return fmt.Errorf("automigrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated:", models.CollectionBots, models.CollectionSessions,
				models.CollectionMessages, models.CollectionAppointments)
			return nil
		},
	}
}

func newEnsureIndexesCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the Mongo indexes the runtime queries by",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := config.NewMongo(cfg.MongoURI, cfg.MongoTLS12)
			if err != nil {
				return fmt.Errorf("connect mongo: %w", err)
			}
			defer client.Disconnect(context.Background())

			if err := config.EnsureMongoIndexes(cmd.Context(), client.Database(cfg.MongoDB)); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ready on", cfg.MongoDB)
			return nil
		},
	}
}
