package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hlwatch/internal/api"
	"hlwatch/internal/config"
	"hlwatch/internal/hyperliquid"
	"hlwatch/internal/monitor"
	"hlwatch/internal/notify"
	"hlwatch/internal/repository"
	"hlwatch/internal/stream"
	"hlwatch/internal/websocket"
	"hlwatch/pkg/backoff"
	"hlwatch/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	logger.Info("запуск монитора позиций",
		zap.Int("wallets", len(cfg.Wallets)),
		zap.String("database", cfg.Database.DSNWithoutPassword()))

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("подключение к базе данных не удалось", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Репозиторий и схема
	repo := repository.NewPositionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal("инициализация схемы не удалась", zap.Error(err))
	}

	// REST клиент биржи
	hlClient := hyperliquid.NewClient(cfg.HyperLiquid.RESTURL, cfg.HyperLiquid.HTTPTimeout)

	// Telegram-бот: доставка уведомлений и команды /positions, /balance
	bot, err := notify.NewTelegramBot(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Wallets,
		repo,
		hlClient,
		logger,
	)
	if err != nil {
		logger.Fatal("инициализация Telegram-бота не удалась", zap.Error(err))
	}

	// WebSocket hub для live-подписчиков статусной панели
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Диспетчер уведомлений: единая очередь, журнал в БД, live-рассылка
	dispatcher := notify.NewDispatcher(bot, cfg.Monitor.DispatchBuffer, logger)
	dispatcher.SetJournal(repo)
	dispatcher.SetBroadcaster(hub)
	go dispatcher.Run(ctx)

	go bot.Run(ctx)
	if err := bot.SendStartup(ctx); err != nil {
		logger.Warn("стартовое сообщение не доставлено", zap.Error(err))
	}

	// Пайплайн на каждый кошелек
	pipelineCfg := monitor.PipelineConfig{
		Backoff: backoff.Policy{
			Base:   cfg.Monitor.ReconnectBaseDelay,
			Max:    cfg.Monitor.ReconnectMaxDelay,
			Factor: 2.0,
		},
		SettleDelay:        cfg.Monitor.SettleDelay,
		SafetyPollInterval: cfg.Monitor.SafetyPollInterval,
	}

	pipelines := make([]*monitor.Pipeline, 0, len(cfg.Wallets))
	for _, wallet := range cfg.Wallets {
		streamClient := stream.NewClient(
			cfg.HyperLiquid.WSURL,
			cfg.HyperLiquid.HTTPTimeout,
			cfg.Monitor.PingInterval,
			logger,
		)
		reconciler := monitor.NewReconciler(wallet, hlClient, repo, dispatcher, logger)
		pipelines = append(pipelines, monitor.NewPipeline(
			wallet, streamClient, reconciler, dispatcher, pipelineCfg, logger,
		))
	}

	coordinator := monitor.NewCoordinator(pipelines, logger)

	// HTTP сервер: статус, read-only API позиций, live-поток, метрики
	router := api.SetupRoutes(&api.Dependencies{
		Status:             coordinator,
		Positions:          repo,
		ReconcileTimes:     repo,
		Hub:                hub,
		StatusPasswordHash: cfg.Server.StatusPasswordHash,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP сервер запущен", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP сервер упал", zap.Error(err))
		}
	}()

	// Координатор блокирует до отмены контекста по сигналу
	coordinator.Run(ctx)

	logger.Info("остановка монитора")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP сервер не остановился корректно", zap.Error(err))
	}

	// Даем диспетчеру дочитать очередь
	select {
	case <-dispatcher.Done():
	case <-shutdownCtx.Done():
	}

	logger.Info("монитор остановлен")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
