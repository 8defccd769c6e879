package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/metrics"
	"github.com/jonathan/keyword-miner/internal/pipeline"
	"github.com/jonathan/keyword-miner/internal/server"
	"github.com/jonathan/keyword-miner/internal/server/ratelimit"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing POST /v1/keywords, GET /v1/credits, /health and /metrics.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveMigrate {
		if err := db.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
	}

	database, err := db.Connect(ctx, cfg.Database.URL, db.Options{MaxConns: cfg.Database.MaxConns, MinConns: cfg.Database.MinConns})
	if err != nil {
		return err
	}
	defer database.Close()

	srv, closeLLM, err := buildServer(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLLM(); err != nil {
			zap.L().Warn("close llm client", zap.Error(err))
		}
	}()

	return srv.Start(ctx)
}

// buildServer wires every component behind the HTTP server.
func buildServer(ctx context.Context, cfg *config.Config, database *db.DB) (*server.Server, func() error, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	client, err := newLLM(ctx, cfg, rec)
	if err != nil {
		return nil, nil, err
	}
	searcher, searchLimiter, err := newSearcher(ctx, cfg, rec)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	credits := ledger.New(database)
	router := pipeline.NewRouter(pipeline.Deps{
		LLM:           client,
		Enrichment:    newEnrichment(cfg, rec),
		Search:        searcher,
		SearchLimiter: searchLimiter,
		Ledger:        credits,
		Workflows:     workflow.NewResolver(database),
		Recorder:      rec,
		Options:       pipelineOptions(cfg),
	})

	deps := server.Deps{
		Keywords:     router,
		Balances:     credits,
		Transactions: database,
		Health:       database,
		Limiter:      ratelimit.NewLimiter(ratelimit.FromSettings(cfg.Server.RateLimit)),
		Gatherer:     reg,
	}

	if cfg.JWT.Secret != "" {
		jwtConfig, err := config.NewJWTConfig(cfg.JWT)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		deps.Tokens = server.NewJWTService(jwtConfig).AsTokenValidator()
	} else {
		zap.L().Warn("jwt.secret not set; bearer tokens disabled")
	}

	keyConfig, err := config.NewAPIKeyConfig(cfg.APIKey)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	deps.Keys = server.NewAPIKeyValidator(database, keyConfig)

	return server.New(cfg.Server, deps), client.Close, nil
}
