package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samestrin/dirindex/internal/semantic"
)

func getCmd() *cobra.Command {
	var chunks string

	cmd := &cobra.Command{
		Use:   "get <file>",
		Short: "Print file content, optionally narrowed to chunks",
		Long: `Print a file's content. With --chunks, print only the selected stored
chunks: a single 1-indexed ordinal ("5") or an inclusive range ("1-5").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rng *semantic.ChunkRange
			if chunks != "" {
				parsed, err := semantic.ParseChunkRange(chunks)
				if err != nil {
					return err
				}
				rng = &parsed
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			content, err := app.newEngine().GetFileContent(cmd.Context(), args[0], rng)
			if err != nil {
				return err
			}
			fmt.Println(content)
			return nil
		},
	}

	cmd.Flags().StringVar(&chunks, "chunks", "", "Chunk selection, e.g. 5 or 1-5")
	return cmd
}
