package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arrears/internal/config"
	"arrears/internal/infrastructure/logger"
	"arrears/internal/infrastructure/metrics"
	"arrears/internal/infrastructure/mysql"
	"arrears/internal/messaging"
	"arrears/internal/order"
	orderrepo "arrears/internal/order/repository"
	"arrears/internal/order/sweep"
	"arrears/internal/server"
	"arrears/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	if err := mysql.RunMigrations(db); err != nil {
		zapLogger.Fatal("running migrations", zap.Error(err))
	}

	publisher, err := messaging.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		zapLogger.Fatal("connecting to broker", zap.Error(err))
	}
	defer publisher.Close()

	m := metrics.New()
	hub := websocket.NewHub()
	outboxRepo := orderrepo.NewMySQLOutboxRepository(db)

	orderCtrl, orderUC := order.NewModule(db, cfg, zapLogger, m, hub, outboxRepo)
	wsHandler := websocket.NewHandler(hub, orderUC, zapLogger)

	dispatcher := messaging.NewOutboxDispatcher(outboxRepo, publisher, m, zapLogger, cfg.Outbox.Interval, cfg.Outbox.BatchSize)
	sweeper := sweep.New(orderUC, zapLogger, cfg.Sweep.Interval)

	router := server.NewRouter(orderCtrl, wsHandler, m)
	srv := server.New(cfg.Server.Port, router, zapLogger)

	// Background loops stop when this context is cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	dispatcher.Start(ctx)
	go sweeper.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
