package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func similarCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <file>",
		Short: "Find files similar to a given file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.newEngine().FindSimilarFiles(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No similar files found.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. %s (chunk %d, score %.4f)\n", i+1, r.FilePath, r.ChunkID, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	return cmd
}
