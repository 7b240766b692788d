package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <contact-id>",
	Short: "Research one contact and persist the synthesized profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.Run(ctx, args[0])
		if report != nil {
			if werr := writeOutput(cmd.OutOrStdout(), outputFormat, report); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}

		zap.L().Info("enrichment complete",
			zap.String("contact_id", report.ContactID),
			zap.Int("providers_ok", report.Succeeded()),
			zap.Float64("depth_score", report.DepthScore),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(enrichCmd)
}
