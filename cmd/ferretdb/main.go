// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the engine process.
//
// There is no MongoDB wire listener here (network framing is out of scope); main
// wires the storage backend, the command handler, and cursor/state bookkeeping
// together, and exposes their Prometheus metrics for as long as the process runs.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/FerretDB/FerretDB/build/version"
	"github.com/FerretDB/FerretDB/internal/backends/memory"
	"github.com/FerretDB/FerretDB/internal/handler"
	"github.com/FerretDB/FerretDB/internal/util/ctxutil"
	"github.com/FerretDB/FerretDB/internal/util/debugbuild"
	"github.com/FerretDB/FerretDB/internal/util/must"
	"github.com/FerretDB/FerretDB/internal/util/state"
)

// cli represents all command-line flags, parsed by kong.
//
//nolint:lll // for readability
var cli struct {
	Run     struct{} `cmd:"" default:"1" hidden:""`
	Version struct{} `cmd:"" help:"Print version to stdout and exit."`

	DebugAddr string `default:"127.0.0.1:8088" help:"Listen address for the Prometheus /metrics endpoint." group:"Interfaces"`
	StateDir  string `default:"."              help:"Process state directory."                            group:"Miscellaneous"`

	CappedCleanupInterval   time.Duration `default:"1m" help:"How often to run capped collection cleanup." group:"Miscellaneous"`
	CappedCleanupPercentage uint8         `default:"10" help:"Percentage of documents to remove when a capped collection is over its limit." group:"Miscellaneous"`

	Log struct {
		Level string `default:"${default_log_level}" help:"Log level: 'debug', 'info', 'warn', 'error'." enum:"debug,info,warn,error"`
	} `embed:"" prefix:"log-" group:"Miscellaneous"`
}

var kongOptions = []kong.Option{
	kong.Vars{
		"default_log_level": defaultLogLevel(),
	},
	kong.DefaultEnvars("FERRETDB"),
}

func main() {
	ctx := kong.Parse(&cli, kongOptions...)

	switch ctx.Command() {
	case "run":
		run()
	case "version":
		printVersion()
	default:
		panic("unknown sub-command: " + ctx.Command())
	}
}

// defaultLogLevel returns the default log level name, more verbose for debug builds.
func defaultLogLevel() string {
	if debugbuild.Enabled {
		return "debug"
	}

	return "info"
}

// printVersion prints build information to stdout.
func printVersion() {
	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	must.NoError(e.Encode(version.Get()))
}

// setupLogger builds a zap logger honoring cli.Log.Level.
func setupLogger() *zap.Logger {
	level := zap.NewAtomicLevel()

	if err := level.UnmarshalText([]byte(cli.Log.Level)); err != nil {
		log.Fatalf("invalid log level %q: %s", cli.Log.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if debugbuild.Enabled {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = level

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %s", err)
	}

	return l
}

// run sets up the engine (backend, handler, cursors, metrics) and blocks until
// the process receives SIGINT/SIGTERM.
func run() {
	logger := setupLogger()
	defer logger.Sync() //nolint:errcheck // best effort

	setGOMAXPROCS(logger)

	info := version.Get()
	logger.Info(
		"Starting",
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.Bool("devBuild", info.DevBuild),
	)

	stateProvider, err := state.NewProvider(filepath.Join(cli.StateDir, "state.json"))
	if err != nil {
		log.Fatalf("failed to set up state provider: %s", err)
	}

	b, err := memory.NewBackend(&memory.NewBackendParams{
		L: logger.Named("memory"),
		P: stateProvider,
	})
	if err != nil {
		log.Fatalf("failed to set up backend: %s", err)
	}
	defer b.Close()

	h, err := handler.New(&handler.NewOpts{
		Backend:                 b,
		L:                       logger.Named("handler"),
		StateProvider:           stateProvider,
		CappedCleanupInterval:   cli.CappedCleanupInterval,
		CappedCleanupPercentage: cli.CappedCleanupPercentage,
	})
	if err != nil {
		log.Fatalf("failed to set up handler: %s", err)
	}
	defer h.Close()

	registerer := prometheus.DefaultRegisterer
	registerer.MustRegister(b, h)

	ctx, stop := ctxutil.SigTerm(context.Background())
	defer stop()

	var debugServer *http.Server

	if cli.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		debugServer = &http.Server{Addr: cli.DebugAddr, Handler: mux}

		go func() {
			logger.Info("Debug server listening", zap.String("addr", cli.DebugAddr))

			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Debug server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Stopping")

	if debugServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Debug server shutdown failed", zap.Error(err))
		}
	}
}
