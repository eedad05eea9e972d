// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"github.com/cristalhq/acmd"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/server"
)

func init() {
	commands = append(commands, acmd.Command{
		Name:        "serve",
		Description: "Start the extraction HTTP API",
		ExecFunc:    runServe,
	})
}

func runServe(ctx context.Context, args []string) error {
	var host string
	var port int
	var schemaFile string

	var flags appFlags
	fs := flags.Flags()
	fs.StringVar(&host, "host", "", "server host")
	fs.IntVar(&port, "port", 0, "server port")
	fs.StringVar(&schemaFile, "schema", "", "schema file (xml, yaml, json or toml)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := appPreRun(&flags); err != nil {
		return err
	}
	if host != "" {
		configs.Config.Server.Host = host
	}
	if port > 0 {
		configs.Config.Server.Port = port
	}

	catalog, err := loadCatalog(schemaFile)
	if err != nil {
		return err
	}

	s := server.New(newExtractor(catalog))
	s.Init()

	srv := &http.Server{
		Addr:              configs.ListenAddr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * configs.Config.Fetch.Timeout.Duration(),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("starting server",
			slog.String("version", configs.Version()),
			slog.String("url", "http://"+srv.Addr+"/api"),
			slog.Int("formats", catalog.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
