package main

import (
	"github.com/MrEthical07/classgate/internal/config"
	"github.com/MrEthical07/classgate/store/postgres"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Apply all pending PostgreSQL migrations, or roll every migration back with --down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			if cfg.Database.URL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
			}

			m, err := postgres.NewMigrator(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if down {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
			} else {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
			}

			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			cmd.Printf("Schema version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations")
	return cmd
}
