package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/yahtzee-backend/internal/httpapi"
	"github.com/DoyleJ11/yahtzee-backend/internal/hub"
	"github.com/DoyleJ11/yahtzee-backend/internal/store"
	"github.com/DoyleJ11/yahtzee-backend/internal/trace"
	"github.com/DoyleJ11/yahtzee-backend/internal/transport"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *Config) (err error) {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	tracer := trace.Multi{trace.NewLogger(log)}
	var results httpapi.Results
	if cfg.traceDSN != "" {
		st, openErr := store.Open(cfg.traceDSN, log)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, st.Close()) }()
		tracer = append(tracer, st)
		results = st
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := hub.NewHub(ctx, hub.Config{
		Players:   cfg.players,
		MaxTables: cfg.maxTables,
		Games:     cfg.games,
		Tracer:    tracer,
		Logger:    log,
	})
	defer h.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	listener := &transport.Listener{
		Addr:         net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Seater:       h,
		WriteTimeout: cfg.writeTimeout,
		Logger:       log,
	}
	g.Go(func() error { return listener.ListenAndServe(gctx) })

	if cfg.httpPort > 0 {
		srv := &http.Server{
			Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.httpPort)),
			Handler:           httpapi.SetupRoutes(h, results, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("status api listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		select {
		case <-h.Done():
			log.Info("finished hosting, shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	log.Info("server started",
		zap.Int("port", cfg.port),
		zap.Int("players", cfg.players),
		zap.Int("games", cfg.games),
		zap.Bool("recording", cfg.traceDSN != ""),
	)
	return g.Wait()
}
