package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vtu-platform/internal/auth"
	"vtu-platform/internal/billing"
	"vtu-platform/internal/chat"
	"vtu-platform/internal/config"
	"vtu-platform/internal/flow"
	"vtu-platform/internal/httpapi"
	"vtu-platform/internal/payment"
	"vtu-platform/internal/recon"
	"vtu-platform/internal/session"
	"vtu-platform/internal/transaction"
	"vtu-platform/internal/user"
	"vtu-platform/internal/wallet"
	"vtu-platform/pkg/logger"
	"vtu-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// chatNotifier lets the reconciliation engine message users without knowing
// the chat transport.
type chatNotifier struct {
	client *chat.TelegramClient
}

func (n chatNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	return n.client.Send(ctx, chat.Message{ChatID: chatID, Text: text})
}

func main() {
	// Root context that cancels on shutdown. New chat events stop being
	// accepted when it fires; in-flight handlers are not drained.
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	users := user.NewService(user.NewPostgresRepo(db))
	wallets := wallet.NewService(wallet.NewPostgresRepo(db))
	txs := transaction.NewPostgresRepo(db)

	// Sessions live in Redis so multiple bot instances share conversational
	// state and the per-chat lock holds across them.
	sessions := session.NewRedisStore(rdb)
	locks := session.NewRedisLocker(rdb)

	var provider billing.Provider
	if cfg.App.TestMode {
		provider = billing.NewSandboxProvider()
	} else {
		provider = billing.NewVTPassProvider(cfg.VTPass.BaseURL, cfg.VTPass.APIKey, cfg.VTPass.PublicKey, cfg.VTPass.SecretKey)
	}
	gateway := payment.NewPaystackGateway(cfg.Paystack.SecretKey)

	tg := chat.NewTelegramClient(cfg.Telegram.BotToken)
	engine := recon.NewEngine(txs, wallets, gateway, chatNotifier{client: tg}, log)

	machine := flow.NewMachine(flow.Deps{
		Sessions:    sessions,
		Locks:       locks,
		Users:       users,
		Wallets:     wallets,
		Txs:         txs,
		Billing:     provider,
		Gateway:     gateway,
		Recon:       engine,
		TestMode:    cfg.App.TestMode,
		CallbackURL: cfg.Paystack.CallbackURL,
	}, log)

	dispatcher := chat.NewDispatcher(tg, machine, log, cfg.Telegram.PollTimeout)
	go dispatcher.Run(rootCtx)
	go session.RunSweeper(rootCtx, sessions, 5*time.Minute)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:           authManager,
		Wallets:        wallets,
		Txs:            txs,
		Recon:          engine,
		Log:            log,
		PaystackSecret: cfg.Paystack.SecretKey,
	}
	registerRoutes(r, h, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("bot listening", "addr", srv.Addr, "env", cfg.App.Env, "test_mode", cfg.App.TestMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
