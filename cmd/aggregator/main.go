package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/client"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
	"portfolio_aggregator/internal/infrastructure/restapi"
	"portfolio_aggregator/internal/pkg/logger"
	"portfolio_aggregator/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "aggregator",
		Usage: "aggregated balances, transactions and portfolio history of an address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML configuration file",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:  "fetch",
				Usage: "aggregate one address and print the result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "chain", Value: "1", Usage: "chain id"},
					&cli.StringFlag{Name: "address", Required: true, Usage: "wallet address or ENS name"},
					&cli.StringFlag{Name: "currency", Value: "usd", Usage: "usd, eur or jpy"},
				},
				Action: fetch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("Aggregator stopped", "error", err)
	}
}

// components is everything both commands need.
type components struct {
	cfg        *configloader.Config
	zapLogger  *zap.Logger
	aggregator port.Aggregator
}

func bootstrap(c *cli.Context) (*components, error) {
	cfg, err := configloader.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initializing zap logger: %w", err)
	}
	logger.InitSlog(zapLogger)
	zapLogger.Info("Configuration loaded", zap.String("path", c.String("config")))

	upstream := client.NewCovalentClient(client.CovalentOptions{
		BaseURL:           cfg.Covalent.BaseURL,
		APIKey:            cfg.Covalent.APIKey,
		RequestTimeout:    cfg.Covalent.RequestTimeout(),
		RequestsPerSecond: cfg.Covalent.RequestsPerSecond,
		Burst:             cfg.Covalent.Burst,
		UserAgent:         cfg.Covalent.UserAgent,
	}, zapLogger)

	aggregator := service.NewAggregatorService(upstream, cfg.Aggregator.ExcludeTypes, logger.NewSlogAdapter("Aggregator"))

	return &components{cfg: cfg, zapLogger: zapLogger, aggregator: aggregator}, nil
}

func serve(c *cli.Context) error {
	comp, err := bootstrap(c)
	if err != nil {
		return err
	}
	cfg, zapLogger := comp.cfg, comp.zapLogger
	defer func() { _ = zapLogger.Sync() }()

	metrics.MustRegisterMetrics()

	cache := service.NewRefreshCache(comp.aggregator, service.RefreshCacheOptions{
		FreshFor:        cfg.Cache.FreshFor(),
		EvictAfter:      cfg.Cache.EvictAfter(),
		CleanupInterval: cfg.Cache.CleanupInterval(),
		MaxEntries:      cfg.Cache.MaxEntries,
		RefreshTimeout:  cfg.Cache.RefreshTimeout(),
	}, logger.NewSlogAdapter("RefreshCache"))
	zapLogger.Info("Refresh cache initialized",
		zap.Duration("freshFor", cfg.Cache.FreshFor()),
		zap.Int("maxEntries", cfg.Cache.MaxEntries))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewAggregateHandler(cache, service.NewExportFormatter(), zapLogger)
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		AllowOrigins: cfg.Server.AllowOrigins,
		EnablePprof:  cfg.Server.EnablePprof,
		Swagger:      cfg.Swagger,
	}, zapLogger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		cache.Close()
		return fmt.Errorf("server failed: %w", err)
	}
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	cache.Close()

	zapLogger.Info("Server exiting")
	return nil
}

func fetch(c *cli.Context) error {
	comp, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer func() { _ = comp.zapLogger.Sync() }()

	key := entity.NewQueryKey(c.String("chain"), c.String("address"), c.String("currency"))
	ctx, cancel := context.WithTimeout(c.Context, comp.cfg.Cache.RefreshTimeout())
	defer cancel()

	res, err := comp.aggregator.Fetch(ctx, key)
	if errors.Is(err, entity.ErrNotFound) {
		fmt.Fprintln(c.App.Writer, `{"balance":[]}`)
		return nil
	}
	if err != nil {
		return err
	}

	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
