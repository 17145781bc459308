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

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/config"
	"github.com/tccredit/portal/backend/internal/handler"
	"github.com/tccredit/portal/backend/internal/logging"
	"github.com/tccredit/portal/backend/internal/model/chat"
	"github.com/tccredit/portal/backend/internal/model/portal"
	"github.com/tccredit/portal/backend/internal/service/ai"
	authService "github.com/tccredit/portal/backend/internal/service/auth"
	"github.com/tccredit/portal/backend/internal/service/broadcast"
	chatService "github.com/tccredit/portal/backend/internal/service/chat"
	documentService "github.com/tccredit/portal/backend/internal/service/documents"
	portalService "github.com/tccredit/portal/backend/internal/service/portal"
	"github.com/tccredit/portal/backend/internal/store/psql"
)

// app owns everything serve builds so it can be torn down in order.
type app struct {
	router http.Handler
	chat   *chatService.Service
	db     *psql.Database
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logging.L().Info("portal backend listening", zap.String("addr", cfg.Server.Addr))
	return multierr.Append(runServer(ctx, srv), a.Close())
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	var (
		messages chat.Store
		portals  portal.Store
	)
	switch cfg.Database.Type {
	case "postgres":
		db, err := psql.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			return nil, multierr.Append(err, db.Close())
		}
		a.db = db
		messages = psql.NewChatStore(db)
		portals = psql.NewPortalStore(db)
		logging.L().Info("using postgres storage")
	default:
		messages = chat.NewMemoryStore()
		portals = portal.NewMemoryStore()
		logging.L().Warn("using in-memory storage; data is lost on restart")
	}

	responder, err := newResponder(ctx, cfg.AI)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	var objects documentService.ObjectStore
	if cfg.Storage.Enabled() {
		minioStore, err := documentService.NewMinIOStore(ctx, cfg.Storage)
		if err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		objects = minioStore
		logging.L().Info("using minio document storage", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		objects = documentService.NewMemoryObjectStore()
		logging.L().Warn("MINIO_ENDPOINT not configured; documents are kept in memory")
	}

	auth := authService.NewService(portals, cfg.Auth)
	if cfg.Auth.AdminEmail != "" {
		if _, err := auth.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return nil, multierr.Append(fmt.Errorf("seed admin account: %w", err), a.Close())
		}
	}
	if cfg.Auth.DevLogin {
		logging.L().Warn("AUTH_DEV_LOGIN enabled; members can sign in without a password")
	}

	hub := broadcast.NewHub()
	a.chat = chatService.NewService(messages, responder, hub, chatService.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxHistoryLimit:  cfg.Chat.MaxHistoryLimit,
		AnalyzeSentiment: cfg.AI.SentimentEnabled && responder.Enabled(),
	})

	a.router = handler.NewRouter(cfg.Server, handler.Services{
		Hub:       hub,
		Chat:      a.chat,
		Auth:      auth,
		Portal:    portalService.NewService(portals),
		Documents: documentService.NewService(objects, portals, cfg.Storage.MaxUploadBytes),
	})
	return a, nil
}

// newResponder builds the Ark-backed responder. Without credentials every
// message escalates to a live agent.
func newResponder(ctx context.Context, aiCfg config.AIConfig) (*ai.Responder, error) {
	opts := ai.Options{Timeout: aiCfg.Timeout, SentimentEnabled: aiCfg.SentimentEnabled}
	if !aiCfg.Enabled() {
		logging.L().Warn("ARK credentials not configured; all chat messages will escalate")
		return ai.NewResponder(ctx, nil, opts)
	}

	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		logging.L().Error("failed to initialize chat model; all chat messages will escalate", zap.Error(err))
		return ai.NewResponder(ctx, nil, opts)
	}
	logging.L().Info("chat model initialized", zap.String("model", aiCfg.Model))
	return ai.NewResponder(ctx, chatModel, opts)
}

// Close waits for background work and releases the database.
func (a *app) Close() error {
	if a.chat != nil {
		a.chat.Wait()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := srv.Shutdown(shutdownCtx)
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return multierr.Append(err, shutdownErr)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
