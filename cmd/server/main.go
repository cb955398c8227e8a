package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/auth"
	"knowledgehub/app/internal/config"
	"knowledgehub/app/internal/confluence"
	"knowledgehub/app/internal/content"
	appdb "knowledgehub/app/internal/db"
	apphttp "knowledgehub/app/internal/http"
	applog "knowledgehub/app/internal/log"
	"knowledgehub/app/internal/notify"
	"knowledgehub/app/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{Path: cfg.DBPath})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := content.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running content migrations")
	}
	if err := auth.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running auth migrations")
	}
	if err := notify.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running notification migrations")
	}

	pages, err := content.NewPageRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building page repository")
	}
	submissions, err := content.NewSubmissionRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building submission repository")
	}
	groups, err := content.NewGroupRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building group repository")
	}
	tags, err := content.NewTagAdminRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building tag repository")
	}
	users, err := auth.NewUserRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building user repository")
	}
	notifications, err := notify.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building notification repository")
	}

	external, err := confluence.NewClient(confluence.ClientOptions{
		BaseURL:  cfg.ConfluenceBaseURL,
		Username: cfg.ConfluenceUsername,
		APIToken: cfg.ConfluenceAPIToken,
		SpaceKey: cfg.ConfluenceSpaceKey,
		Logger:   logger,
	})
	if err != nil {
		return eris.Wrap(err, "creating content store client")
	}

	resolver, err := content.NewResolver(pages, logger)
	if err != nil {
		return eris.Wrap(err, "building tree resolver")
	}
	permissions, err := content.NewPermissionResolver(pages, groups, resolver, logger)
	if err != nil {
		return eris.Wrap(err, "building permission resolver")
	}
	reconciler, err := content.NewReconciler(external, pages, cfg.RootPageIDs, logger)
	if err != nil {
		return eris.Wrap(err, "building reconciler")
	}

	hub := notify.NewHub()
	notifier, err := notify.NewService(notifications, hub, logger)
	if err != nil {
		return eris.Wrap(err, "building notification service")
	}

	workflow, err := content.NewWorkflow(external, pages, submissions, groups, resolver, permissions, notifier, users, logger)
	if err != nil {
		return eris.Wrap(err, "building workflow")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return eris.Wrap(err, "building token issuer")
	}
	authService, err := auth.NewService(users, tokens, logger)
	if err != nil {
		return eris.Wrap(err, "building auth service")
	}

	uploads, err := apphttp.NewUploads(cfg.UploadDir)
	if err != nil {
		return eris.Wrap(err, "preparing upload staging")
	}

	syncJob, err := content.NewSyncJob(reconciler, cfg.SyncSchedule)
	if err != nil {
		return eris.Wrap(err, "building sync job")
	}
	cleanupJob, err := notify.NewCleanupJob(notifications, logger)
	if err != nil {
		return eris.Wrap(err, "building cleanup job")
	}
	executor, err := scheduler.NewExecutor([]scheduler.Job{syncJob, cleanupJob}, logger)
	if err != nil {
		return eris.Wrap(err, "building scheduler")
	}
	if err := executor.Start(); err != nil {
		return eris.Wrap(err, "starting scheduler")
	}
	defer executor.Stop()

	transport, err := apphttp.NewServer(apphttp.Options{
		Auth:          authService,
		Users:         users,
		Workflow:      workflow,
		Permissions:   permissions,
		Resolver:      resolver,
		Pages:         pages,
		Submissions:   submissions,
		Groups:        groups,
		Tags:          tags,
		Notifications: notifications,
		Hub:           hub,
		External:      external,
		Reconciler:    reconciler,
		Uploads:       uploads,
		Database:      dbConn,
		Logger:        logger,
		SentryHub:     sentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: 20,
			Burst:             40,
			ClientTTL:         5 * time.Minute,
		},
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr": httpServer.Addr,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}
