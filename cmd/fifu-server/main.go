package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adharris/fifu-queue/internal/api"
	"github.com/adharris/fifu-queue/pkg/datastructs/fifu"
	"github.com/adharris/fifu-queue/pkg/logger"
	"github.com/adharris/fifu-queue/pkg/settings"
	"github.com/adharris/fifu-queue/pkg/timer"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "fifu-server",
		Short:         "Serve an in-memory FIFO queue whose items expire after a TTL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fifu-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := settings.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	clock := timer.System()
	if cfg.Queue.ClockResolution > 0 {
		clock = timer.NewCachedTimer(cfg.Queue.ClockResolution)
	}
	defer clock.Stop()

	q, err := fifu.New(cfg.Queue.InitialItems,
		fifu.WithTTL(cfg.Queue.TTL),
		fifu.WithClock(clock),
		fifu.WithLogger(log.Named("fifu")),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create queue")
	}
	defer q.Close()

	q.SetOnExpire(func(item string) {
		log.Debug("item expired", zap.String("item", item))
	})

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: api.NewRouter(q, log.Named("http")),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Duration("ttl", q.TTL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
