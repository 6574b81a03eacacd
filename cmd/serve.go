package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChinoUkaegbu/exportify/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP download server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host, port := r.config.Server.Host, r.config.Server.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(host, port, r.router())
	return server.ListenAndServe(ctx, srv, r.logger)
}

// router wires the export endpoints behind logging and panic recovery.
func (r *Runner) router() *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))

	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	libraryFor := func(ctx context.Context, token string) server.PlaylistLister {
		return r.library(ctx, token)
	}
	router.Handler(server.NewExportHandler(libraryFor, r.exporter, r.config.Export.ArchiveName, r.logger))
	return router
}
