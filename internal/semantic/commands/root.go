// Package commands implements the dirindex command-line surface.
package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/samestrin/dirindex/internal/logging"
	"github.com/samestrin/dirindex/internal/semantic"
	"github.com/samestrin/dirindex/internal/semantic/config"
)

var (
	verbose    bool
	configPath string

	// Set by SetVersion before Execute.
	appVersion = "dev"
)

// SetVersion records the build version shown by --version and server_info.
func SetVersion(v string) {
	if v != "" {
		appVersion = v
	}
}

// RootCmd returns the root command for dirindex.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dirindex",
		Short: "Semantic index over local directory trees",
		Long: `dirindex builds a semantic index over local directory trees and answers
natural-language queries against it. Metadata lives in SQLite; embeddings
live in a Qdrant collection.`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (YAML or TOML)")

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(similarCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())

	return rootCmd
}

// app holds the wired components shared by every command. Commands open it
// on entry and close it on exit.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	meta     *semantic.MetadataStore
	vectors  semantic.VectorStore
	embedder semantic.Embedder
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(verbose)

	meta, err := semantic.NewMetadataStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	vectors, err := semantic.NewQdrantStore(semantic.QdrantConfig{
		Endpoint:   cfg.Storage.Qdrant.Endpoint,
		APIKey:     cfg.Storage.Qdrant.APIKey,
		Collection: cfg.Storage.Qdrant.Collection,
	})
	if err != nil {
		meta.Close()
		return nil, err
	}

	embedder, err := semantic.NewEmbedder(semantic.EmbedderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.APIKey,
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	})
	if err != nil {
		vectors.Close()
		meta.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
	}, nil
}

func (a *app) Close() {
	if a.vectors != nil {
		a.vectors.Close()
	}
	if a.meta != nil {
		a.meta.Close()
	}
}

func (a *app) newPipeline(force bool) *semantic.Pipeline {
	scanner := semantic.NewScanner(semantic.ScanConfig{
		IgnorePatterns:   a.cfg.Indexing.IgnorePatterns,
		MaxFileSize:      a.cfg.Indexing.MaxFileSize,
		RespectGitignore: a.cfg.Indexing.RespectGitignore,
	})
	return semantic.NewPipeline(a.meta, a.vectors, a.embedder, scanner, semantic.PipelineConfig{
		ChunkSize:   a.cfg.Indexing.ChunkSize,
		Overlap:     a.cfg.Indexing.Overlap,
		Concurrency: a.cfg.Indexing.Concurrency,
		BatchSize:   a.cfg.Monitoring.BatchSize,
		Force:       force,
	}, a.logger)
}

func (a *app) newEngine() *semantic.Engine {
	return semantic.NewEngine(a.meta, a.vectors, a.embedder, a.logger)
}
