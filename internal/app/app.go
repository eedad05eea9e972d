// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package app is the Microtron command line application.
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cristalhq/acmd"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/httpclient"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	bold       = "\033[1m"
)

var (
	commands = []acmd.Command{}

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Run starts the command line application. Its context is canceled on
// interrupt and termination signals.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:])
}

func run(ctx context.Context, args []string) error {
	r := acmd.RunnerOf(commands, acmd.Config{
		AppName:        "microtron",
		AppDescription: "Microformats extraction from HTML documents",
		Version:        configs.Version(),
		Context:        ctx,
		Args:           args,
		Output:         stderr,
	})
	return r.Run()
}

// appFlags are the flags shared by every command.
type appFlags struct {
	ConfigFile string
}

// Flags returns a new flag set with the common flags.
func (f *appFlags) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.ConfigFile, "config", os.Getenv(configs.EnvPrefix+"CONFIG"), "configuration file path")
	return fs
}

// appPreRun loads the configuration and sets the logger.
func appPreRun(flags *appFlags) error {
	configs.Reset()
	if err := configs.LoadConfiguration(flags.ConfigFile); err != nil {
		return err
	}
	if err := configs.InitConfiguration(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	initLogger()
	return nil
}

// stringsFlag is a repeatable flag. Every value may also hold
// a comma separated list.
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*f = append(*f, v)
		}
	}
	return nil
}

// loadCatalog returns the catalog from a schema file or the default
// catalog when filename is empty.
func loadCatalog(filename string) (*schema.Catalog, error) {
	if filename == "" {
		filename = configs.Config.Extract.Schema
	}
	if filename == "" {
		return schema.Default(), nil
	}
	return schema.Load(filename)
}

// newExtractor returns an extractor with the configured HTTP client.
func newExtractor(catalog *schema.Catalog) *extractor.Extractor {
	client := httpclient.New(
		httpclient.WithTimeout(configs.Config.Fetch.Timeout.Duration()),
		httpclient.WithDeniedIPs(configs.DeniedIPs()...),
		httpclient.WithLogger(slog.Default()),
	)
	return extractor.New(catalog, client)
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("err", err))
	os.Exit(1)
}
