package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchTopK        int
	neighborhoodDepth int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search fusing vector, graph and text retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Search.HybridSearch(ctx, strings.Join(args, " "), searchTopK)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, results)
	},
}

var semanticCmd = &cobra.Command{
	Use:   "semantic <query>",
	Short: "Nearest-neighbor search over profile embeddings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		hits, err := env.Search.SemanticSearch(ctx, strings.Join(args, " "), searchTopK)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, hits)
	},
}

var neighborhoodCmd = &cobra.Command{
	Use:   "neighborhood <contact-id>",
	Short: "Show the graph neighborhood of a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Search.Neighborhood(ctx, args[0], neighborhoodDepth)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, n)
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <from-id> <to-id>",
	Short: "Shortest connection path between two contacts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Search.ShortestPath(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, p)
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, semanticCmd} {
		c.Flags().IntVar(&searchTopK, "top-k", 0, "maximum results (default from config)")
	}
	neighborhoodCmd.Flags().IntVar(&neighborhoodDepth, "depth", 2, "traversal depth (1-5)")

	for _, c := range []*cobra.Command{searchCmd, semanticCmd, neighborhoodCmd, pathCmd} {
		c.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
		rootCmd.AddCommand(c)
	}
}
