package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samestrin/dirindex/internal/semantic"
)

func searchCmd() *cobra.Command {
	var (
		pathFilter string
		limit      int
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long: `Search the index with a natural-language query and print ranked results
with chunk previews.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			opts := semantic.SearchOptions{
				DirectoryFilter: pathFilter,
				Limit:           limit,
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = float32(threshold)
				opts.HasThreshold = true
			}

			engine := app.newEngine()
			results, err := engine.Search(cmd.Context(), query, opts)
			if err != nil {
				return err
			}
			engine.HydratePreviews(cmd.Context(), results)

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. %s (chunk %d, score %.4f)\n", i+1, r.FilePath, r.ChunkID, r.Score)
				if r.Preview != "" {
					fmt.Printf("   %s\n", r.Preview)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pathFilter, "path", "", "Restrict results to files under this directory")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity score (0-1)")
	return cmd
}
