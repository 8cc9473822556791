package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/samestrin/dirindex/internal/semantic/mcpserver"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tool server on standard I/O",
		Long: `Run the line-delimited JSON-RPC tool server over standard input and
output. Blocks until the input stream closes or the process is interrupted.
Logs go to standard error; standard output carries only protocol frames.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			srv := mcpserver.NewServer(os.Stdin, os.Stdout, mcpserver.Deps{
				Pipeline:   app.newPipeline(false),
				Engine:     app.newEngine(),
				Meta:       app.meta,
				Vectors:    app.vectors,
				Embedder:   app.embedder,
				ServerName: "dirindex",
				Version:    appVersion,
				Collection: app.cfg.Storage.Qdrant.Collection,
				Logger:     app.logger,
			})
			return srv.ServeWithSignalHandler()
		},
	}
}
