package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/config"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/script"
	"github.com/cardlab/duel-server-go/internal/transport"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("cards", catalog.Len()),
	)

	limits := script.Limits{
		MaxTriggersPerScript:   cfg.Duel.Limits.MaxTriggersPerScript,
		MaxTriggersPerMutation: cfg.Duel.Limits.MaxTriggersPerMutation,
		SelfTriggerMaxDepth:    cfg.Duel.Limits.SelfTriggerMaxDepth,
		AnyTriggerMaxDepth:     cfg.Duel.Limits.AnyTriggerMaxDepth,
	}
	duelMgr := game.NewManager(catalog, script.Factory(limits, logger), duelSettings(cfg.Duel), logger)
	if cfg.Duel.ReplayDirectory != "" {
		duelMgr.SetReplayDirectory(cfg.Duel.ReplayDirectory)
	}
	logger.Info("duel manager initialized",
		zap.Int("max_triggers_per_mutation", limits.MaxTriggersPerMutation),
		zap.String("replay_directory", cfg.Duel.ReplayDirectory),
	)

	duelServer := transport.NewServer(duelMgr, catalog, transport.Options{
		SendBuffer: cfg.Server.HTTP.SendBuffer,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTP.Address,
		Handler:           duelServer.Routes(),
		ReadHeaderTimeout: cfg.Server.HTTP.ReadTimeout,
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC health server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
			stop()
		}
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	duelServer.Close()

	for _, s := range duelMgr.ListDuels() {
		if err := duelMgr.RemoveDuel(s.ID); err != nil {
			logger.Warn("failed to close duel", zap.String("duel_id", s.ID), zap.Error(err))
		}
	}

	grpcServer.GracefulStop()
	logger.Info("duel server stopped")
}

func duelSettings(cfg config.DuelConfig) game.Settings {
	settings := game.DefaultSettings()
	settings.MaxCoreHealth = cfg.MaxCoreHealth
	settings.MaxEnergy = cfg.MaxEnergy
	settings.StartCards = cfg.StartCards
	settings.UnitsX = cfg.UnitsX
	settings.UnitsY = cfg.UnitsY
	return settings
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cards.Catalog, error) {
	if cfg.Catalog.Source != "postgres" {
		return cards.LoadYAMLFiles(cfg.Catalog.Packs, logger)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return cards.LoadFromPostgres(ctx, pool, logger)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
