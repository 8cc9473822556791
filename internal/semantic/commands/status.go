package commands

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/samestrin/dirindex/internal/semantic"
)

type statusReport struct {
	Directories    int    `json:"directories"`
	Files          int    `json:"files"`
	Chunks         int    `json:"chunks"`
	VectorPoints   uint64 `json:"vector_points"`
	IndexedVectors uint64 `json:"indexed_vectors"`
	DatabaseBytes  int64  `json:"database_bytes"`
}

func statusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return semantic.ErrInvalidInput("unknown format: %s (use text or json)", format)
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			report := statusReport{DatabaseBytes: app.meta.DatabaseSize()}
			if report.Directories, err = app.meta.CountDirectories(ctx); err != nil {
				return err
			}
			if report.Files, err = app.meta.CountFiles(ctx); err != nil {
				return err
			}
			if report.Chunks, err = app.meta.CountChunks(ctx); err != nil {
				return err
			}
			exists, err := app.vectors.CollectionExists(ctx)
			if err != nil {
				return err
			}
			if exists {
				info, err := app.vectors.Info(ctx)
				if err != nil {
					return err
				}
				report.VectorPoints = info.PointsCount
				report.IndexedVectors = info.IndexedVectorsCount
			}

			if format == "json" {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("Directories:     %d\n", report.Directories)
			fmt.Printf("Files:           %d\n", report.Files)
			fmt.Printf("Chunks:          %d\n", report.Chunks)
			fmt.Printf("Vector points:   %d\n", report.VectorPoints)
			fmt.Printf("Indexed vectors: %d\n", report.IndexedVectors)
			fmt.Printf("Database size:   %s\n", humanize.IBytes(uint64(report.DatabaseBytes)))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
