// Command bowtie-server hosts bow-tie diagrams over HTTP.
//
//	bowtie-server -config bowtie.yaml -load examples/refinery-overpressure/diagram.json
//
// SIGHUP rereads the config file and applies the new log level; other
// settings need a restart.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dd0wney/cluso-bowtie/pkg/api"
	"github.com/dd0wney/cluso-bowtie/pkg/archive"
	"github.com/dd0wney/cluso-bowtie/pkg/auth"
	"github.com/dd0wney/cluso-bowtie/pkg/config"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/dd0wney/cluso-bowtie/pkg/pipeline"
	"github.com/dd0wney/cluso-bowtie/pkg/pubsub"
	"github.com/dd0wney/cluso-bowtie/pkg/server"
	bowtietls "github.com/dd0wney/cluso-bowtie/pkg/tls"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "YAML config file")
	load := flag.String("load", "", "Comma-separated diagram files to open at startup")
	flag.Parse()

	if err := run(*configPath, *load); err != nil {
		fmt.Fprintf(os.Stderr, "bowtie-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, load string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Log.Level))
	logging.SetDefaultLogger(logger)
	reg := metrics.DefaultRegistry()

	events := pubsub.NewPubSub(reg)
	srv, err := api.NewServer(api.Options{
		Pipeline: pipeline.Options{
			RiskScoring:       cfg.Engine.RiskScoring,
			MaxPathsPerThreat: cfg.Engine.MaxPathsPerThreat,
		},
		MaxDiagrams:     cfg.Server.MaxDiagrams,
		MaxBodyBytes:    int64(cfg.Server.MaxBodyBytes),
		GraphQLMaxDepth: cfg.Server.GraphQLMaxDepth,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Version:         version,
	}, events, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to build API: %w", err)
	}

	if cfg.Auth.Enabled() {
		jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		srv.SetAuth(jwt)

		// API keys are held in memory; they are hashed under the JWT secret
		keys, err := auth.NewAPIKeyStore([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return err
		}
		srv.SetAPIKeys(keys)
	} else {
		logger.Warn("authentication disabled, set auth.jwt_secret or BOWTIE_JWT_SECRET to enable it")
	}

	ctx := context.Background()
	arch, err := archive.FromConfig(ctx, cfg.Archive, logger, reg)
	if err != nil {
		return err
	}
	if arch != nil {
		srv.SetArchiver(arch)
	}

	for _, path := range splitList(load) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ed, warnings, err := srv.CreateDiagram(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Info("diagram loaded",
			logging.Path(path),
			logging.DiagramID(ed.ID()),
			logging.Int("warnings", len(warnings)))
	}

	gs := server.NewGracefulServer(cfg.Server.Addr, srv.Handler(), server.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Idle:     cfg.Server.IdleTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	}, logger)
	gs.OnShutdown(events.Shutdown)

	tlsConfig, err := bowtietls.Load(cfg.Server.TLS)
	if err != nil {
		return err
	}
	gs.SetTLSConfig(tlsConfig)
	if tlsConfig != nil && cfg.Server.TLS.CertFile == "" {
		logger.Warn("serving a generated self-signed certificate",
			logging.String("hosts", strings.Join(cfg.Server.TLS.Hosts, ",")))
	}

	gs.SetConfigReloadFunc(func() error {
		next, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger.SetLevel(logging.ParseLevel(next.Log.Level))
		return nil
	})

	logger.Info("bowtie server starting",
		logging.String("addr", cfg.Server.Addr),
		logging.String("version", version),
		logging.Bool("auth", cfg.Auth.Enabled()),
		logging.Bool("tls", tlsConfig != nil),
		logging.String("archive", cfg.Archive.Sink),
		logging.Bool("risk_scoring", cfg.Engine.RiskScoring))

	return gs.Run(ctx)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
