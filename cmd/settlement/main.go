// Package main запускает HTTP-сервер сервиса расчётов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/clickarena-settlement/internal/claim"
	"github.com/mmeshcher/clickarena-settlement/internal/config"
	"github.com/mmeshcher/clickarena-settlement/internal/handler"
	"github.com/mmeshcher/clickarena-settlement/internal/ledger"
	"github.com/mmeshcher/clickarena-settlement/internal/middleware"
	"github.com/mmeshcher/clickarena-settlement/internal/migration"
	"github.com/mmeshcher/clickarena-settlement/internal/repository"
	"github.com/mmeshcher/clickarena-settlement/internal/service"
	"github.com/mmeshcher/clickarena-settlement/internal/settlement"
)

const rankingCacheTTL = 30 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	prizeClient := ledger.NewPrizeClient(cfg.PrizeLedgerAddress)

	versions, err := cfg.CreditVersions()
	if err != nil {
		sugar.Fatalw("credit ledger configuration error", "error", err.Error())
	}

	creditClients := make([]migration.CreditLedger, 0, len(versions))
	for _, v := range versions {
		creditClients = append(creditClients, ledger.NewCreditClient(v.Version, v.BaseURL))
	}

	reconciler, err := migration.NewReconciler(creditClients, logger)
	if err != nil {
		sugar.Fatalw("reconciler initialization error", "error", err.Error())
	}

	orchestrator := settlement.NewOrchestrator(repo, prizeClient, logger, cfg.SettlementInterval, cfg.ScanDepthDays)
	enforcer := claim.NewEnforcer(prizeClient, cfg.ClaimPeriod)

	svc := service.NewService(repo, orchestrator, enforcer, reconciler, rankingCacheTTL)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware("clickarena-secret")
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового цикла расчёта прошедших дней
	g.Go(func() error {
		orchestrator.Start(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting settlement server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
