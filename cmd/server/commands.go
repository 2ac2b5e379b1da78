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

	"github.com/ecovend/backend/internal/audit"
	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/handlers"
	"github.com/ecovend/backend/internal/logger"
	"github.com/ecovend/backend/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openAccountStore returns the configured account store and migrates SQL
// backends. The memory driver keeps accounts for the life of the process.
func openAccountStore(ctx context.Context, log zerolog.Logger) (database.AccountStore, func(), error) {
	dbConfig := database.GetConfig()
	if dbConfig.Driver == "memory" {
		log.Warn().Msg("Using in-memory account store, accounts are lost on restart")
		return database.NewMemoryAccountStore(), func() {}, nil
	}

	db, dialect, err := database.Open(dbConfig, log)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return database.NewSQLAccountStore(db, dialect), closeDB(db, log), nil
}

func closeDB(db *sql.DB, log zerolog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	log := newLogger()

	ledgerConfig := config.LoadLedgerConfig()
	rewardsConfig := config.LoadRewardsConfig()
	classifierConfig := config.LoadClassifierConfig()
	if err := ledgerConfig.Validate(); err != nil {
		return err
	}
	if err := rewardsConfig.Validate(); err != nil {
		return err
	}

	tokens, err := services.TokenServiceFromConfig()
	if err != nil {
		return err
	}

	items, err := catalog.Load(rewardsConfig.CatalogFile)
	if err != nil {
		return err
	}

	accounts, closeAccounts, err := openAccountStore(ctx, logger.Component(log, "database"))
	if err != nil {
		return err
	}
	defer closeAccounts()

	var sessions database.SessionStore
	if redisClient := database.InitRedis(logger.Component(log, "redis")); redisClient != nil {
		defer redisClient.Close()
		sessions = database.NewRedisSessionStore(redisClient)
	} else {
		sessions = database.NewMemorySessionStore()
	}

	auditLogger := audit.NewAuditLogger(log)
	ledger := services.NewLedgerService(ledgerConfig, services.WithAuditLogger(auditLogger))
	accountService := services.NewAccountService(
		accounts, sessions, ledger, auditLogger, rewardsConfig.SessionTTL, logger.Component(log, "accounts"),
	)

	classifier := services.NewClassifierService(classifierConfig, logger.Component(log, "classifier"))
	if err := classifier.Configured(); err != nil {
		log.Warn().Err(err).Msg("Classifier disabled, scans will be refused")
	}

	router := handlers.NewRouter(handlers.Dependencies{
		Accounts:   accountService,
		Tokens:     tokens,
		Sessions:   sessions,
		Classifier: classifier,
		Catalog:    items,
		Rewards:    rewardsConfig,
		Ledger:     ledgerConfig,
		StaticDir:  viper.GetString("static.dir"),
		Log:        logger.Component(log, "http"),
	})

	server := &http.Server{
		Addr:         ":" + viper.GetString("server.port"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			db, dialect, err := database.Open(database.GetConfig(), log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db, dialect); err != nil {
				return err
			}
			log.Info().Str("driver", string(dialect)).Msg("Schema is up to date")
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "verify [identity...]",
		Short: "Check stored accounts against the ledger invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("pass at least one identity or --all")
			}

			ctx := cmd.Context()
			log := newLogger()
			store, closeStore, err := openAccountStore(ctx, log)
			if err != nil {
				return err
			}
			defer closeStore()

			identities := args
			if all {
				if identities, err = store.Identities(ctx); err != nil {
					return err
				}
			}

			ledgerConfig := config.LoadLedgerConfig()
			if err := ledgerConfig.Validate(); err != nil {
				return err
			}
			ledger := services.NewLedgerService(ledgerConfig)
			return verifyAccounts(ctx, store, ledger, identities, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Verify every stored account")
	return cmd
}
