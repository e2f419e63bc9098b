// Package main starts the Aura Temple account and leaderboard server,
// wiring configuration, logging, the chosen store, services, handlers and
// optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/AuraTemple/internal/config"
	"github.com/atinyakov/AuraTemple/internal/db"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/logger"
	"github.com/atinyakov/AuraTemple/internal/middleware"
	"github.com/atinyakov/AuraTemple/internal/repository"
	"github.com/atinyakov/AuraTemple/internal/server/handler/http"
	"github.com/atinyakov/AuraTemple/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

// store is what the services need from either backend.
type store interface {
	service.AccountRepository
	service.LeaderboardRepository
	db.SessionExpirer
}

// postgresStore joins the two Postgres repositories into one store.
type postgresStore struct {
	*repository.PostgresAccountRepository
	*repository.PostgresLeaderboardRepository
}

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if err := run(options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(options *config.Options, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(options, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cat := game.DefaultCatalog()
	size := options.LeaderboardSize

	authService := service.NewAuthService(st, st, cat, size)
	progressService := service.NewProgressService(st, st, cat, size)
	boardService := service.NewLeaderboardService(st, size)

	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Log: log},
		&http.ProgressHandler{ProgressService: progressService, Log: log},
		&http.LeaderboardHandler{LeaderboardService: boardService, Log: log},
		authService,
		middleware.NewIPRateLimiter(options.AuthRatePerMin),
		log,
	)

	db.StartSessionSweeper(ctx, st,
		time.Hour, // interval
		time.Duration(options.SessionTTL),
		log,
	)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if options.TLSCert != "" && options.TLSKey != "" {
			log.Info("starting HTTPS server", zap.String("addr", options.Address))
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			log.Info("starting HTTP server", zap.String("addr", options.Address))
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore picks Postgres when a DSN is configured and the JSON files
// otherwise.
func openStore(options *config.Options, log *zap.Logger) (store, func(), error) {
	if options.DatabaseDSN == "" {
		fs, err := repository.NewFileStore(options.DataDir, options.AccountsFile, options.DataFile, options.LeaderboardSize)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		log.Info("using file store", zap.String("dir", options.DataDir))
		return fs, func() {}, nil
	}

	conn, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot init database: %w", err)
	}
	log.Info("using postgres store")
	st := postgresStore{
		PostgresAccountRepository:     repository.NewPostgresAccountRepository(conn),
		PostgresLeaderboardRepository: repository.NewPostgresLeaderboardRepository(conn, options.LeaderboardSize),
	}
	return st, func() { _ = conn.Close() }, nil
}
