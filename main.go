package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classroom-auction/api"
	"classroom-auction/auth"
	"classroom-auction/config"
	"classroom-auction/cronrunner"
	"classroom-auction/logger"
	"classroom-auction/metrics"
	"classroom-auction/orderbook"
	"classroom-auction/room"
)

var version = "dev"

var (
	configPath string
	envOnly    bool
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (defaults only when empty)")
	serveCmd.Flags().BoolVar(&envOnly, "env-only", false, "ignore the config file and read AUCTION_* variables only")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "classroom-auction",
	Short: "Realtime classroom auction engine",
	Long: `Runs English, Dutch, sealed-bid and double auction rooms for a classroom.
An auctioneer creates rooms over HTTP; participants join over websockets and
receive the events their role is allowed to see.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath, envOnly)
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tree, ok := orderbook.ParseTreeType(cfg.Engine.PriceTree)
	if !ok {
		return errors.Errorf("unknown engine.price_tree %q", cfg.Engine.PriceTree)
	}
	m := metrics.PrometheusMetrics(metrics.Namespace)
	registry := room.NewRegistry(room.Config{
		InboxSize:        cfg.Engine.InboxSize,
		SubscriberBuffer: cfg.Engine.SubscriberBuffer,
		ActivityLimit:    cfg.Engine.ActivityLimit,
		PriceTree:        tree,
		Strict:           cfg.Engine.StrictInvariants,
		DefaultCountdown: cfg.Engine.DefaultCountdown,
		MinTickInterval:  cfg.Engine.MinTickInterval,
	}, log.Named("room"), m)
	defer registry.Close()

	srv := &api.Server{
		Registry: registry,
		Auth: auth.Authenticator{
			JWT:          auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL},
			HostPassword: cfg.Auth.HostPassword,
		},
		Logger:      log.Named("api"),
		CORSOrigins: cfg.Server.CORSOrigins,
		Ready:       func() bool { return ctx.Err() == nil },
		Metrics:     promhttp.Handler(),
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Handler(),
	}

	if cfg.Cron.Enabled {
		runner := cronrunner.New(log.Named("cron"), ctx)
		if _, err := runner.Add("room-stats", cfg.Cron.StatsSpec, cronrunner.StatsJob(registry, log.Named("stats"))); err != nil {
			return err
		}
		runner.Start()
		defer runner.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr), zap.String("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return errors.Wrap(httpServer.Shutdown(shutdownCtx), "http shutdown")
	})

	return g.Wait()
}
