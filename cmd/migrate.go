package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the contacts schema and graph indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "migrate")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		if env.Graph == nil {
			zap.L().Warn("graph unavailable, skipping graph indexes")
			return nil
		}
		if err := env.Graph.EnsureIndexes(ctx); err != nil {
			return eris.Wrap(err, "ensure graph indexes")
		}
		zap.L().Info("graph indexes ensured")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
