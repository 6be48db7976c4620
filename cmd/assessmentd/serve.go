package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/rtdacademy/assessments/internal/api/http"
	"github.com/rtdacademy/assessments/internal/assessment"
	auth "github.com/rtdacademy/assessments/internal/auth/middleware"
	"github.com/rtdacademy/assessments/internal/config"
	"github.com/rtdacademy/assessments/internal/course"
	"github.com/rtdacademy/assessments/internal/db"
	"github.com/rtdacademy/assessments/internal/dispatch"
	"github.com/rtdacademy/assessments/internal/gradebook"
	"github.com/rtdacademy/assessments/internal/gradebook/agshttp"
	"github.com/rtdacademy/assessments/internal/gradebook/sqlstore"
	"github.com/rtdacademy/assessments/internal/submissions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg)

	reg, err := course.Load(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	for _, w := range reg.Warnings() {
		logger.Warn("catalog", "warning", w)
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var dbh *sql.DB
	if usesSQL(cfg) {
		if dbh, err = openSQL(openCtx, cfg); err != nil {
			return err
		}
		defer dbh.Close()
	}
	store, closeStore, storeReady, err := openDocStore(openCtx, cfg, dbh)
	if err != nil {
		return err
	}
	defer closeStore()

	guard, err := assessment.NewAttemptGuard(cfg.AttemptGuard, store)
	if err != nil {
		return err
	}

	var (
		log    submissions.Log
		ledger gradebook.Store
		ags    gradebook.AGSClient
	)
	if dbh != nil {
		log = submissions.NewSQLLog(dbh)
		ledger = &sqlstore.Store{DB: dbh}
	} else {
		log = submissions.NewInMemoryLog()
		ledger = gradebook.NewInMemoryStore()
	}
	if cfg.AGSEnabled() {
		ags = agshttp.New(agshttp.Config{
			TokenURL:     cfg.AGSTokenURL,
			ClientID:     cfg.AGSClientID,
			ClientSecret: cfg.AGSClientSecret,
			Timeout:      cfg.AGSTimeout,
		})
	}
	book := gradebook.New(ledger, reg, ags, time.Now)

	eng := assessment.NewEngine(store,
		assessment.WithGuard(guard),
		assessment.WithSubmissionLog(log),
		assessment.WithGradebook(book),
		assessment.WithLogger(logger),
	)

	h := api.NewRouter(api.Server{
		Dispatcher:      dispatch.New(reg, eng, dispatch.StoreLongAnswer{Store: store}, logger),
		State:           eng,
		Gradebook:       book,
		Submissions:     log,
		Auth:            auth.NewAuthService(cfg.AuthHMACSecret),
		Staff:           auth.StaffAccount{User: cfg.StaffUser, PassHash: cfg.StaffPassHash},
		EnableLocalAuth: cfg.EnableLocalAuth,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          logger,
		Ready:           ready(dbh, storeReady),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.HTTPAddr, "mode", cfg.Mode, "docstore", cfg.DocStore,
			"guard", cfg.AttemptGuard, "ags", cfg.AGSEnabled(), "courses", len(reg.Courses()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// ready combines the database probe with the document store's own check.
func ready(dbh *sql.DB, store func(context.Context) error) func(context.Context) error {
	var checks []func(context.Context) error
	if dbh != nil {
		checks = append(checks, db.Probe(dbh, 2*time.Second))
	}
	if store != nil {
		checks = append(checks, store)
	}
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
