package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kyohei-watanabe/go-table-seating/internal/api"
	"github.com/kyohei-watanabe/go-table-seating/internal/api/handler"
	custommiddleware "github.com/kyohei-watanabe/go-table-seating/internal/api/middleware"
	"github.com/kyohei-watanabe/go-table-seating/internal/application"
	"github.com/kyohei-watanabe/go-table-seating/internal/config"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/domain/policy"
	eventinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/event"
	"github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/postgres"
	redisinfra "github.com/kyohei-watanabe/go-table-seating/internal/infrastructure/redis"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/logger"
	"github.com/kyohei-watanabe/go-table-seating/internal/pkg/metrics"
	"github.com/kyohei-watanabe/go-table-seating/internal/worker"
)

func main() {
	// .env があれば読み込む（本番では環境変数を直接使う）
	_ = godotenv.Load()

	cfg := config.Load()
	m := metrics.Init()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Error("データベース接続に失敗しました", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Error("マイグレーションに失敗しました", zap.Error(err))
		os.Exit(1)
	}

	// Redis接続（分散ロックとレート制限に使う）
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redisに接続できません", zap.Error(err))
	}
	pingCancel()

	lockManager := redisinfra.NewLockManager(redisClient)
	rateLimiter := redisinfra.NewHoldRateLimiter(redisClient, cfg.Holds.RateLimitWindow, cfg.Holds.RateLimitMax)

	// イベント発行（RabbitMQが使えない場合はログ出力にフォールバック）
	var emitter event.Emitter
	amqpEmitter, err := eventinfra.NewAMQPEmitter(&cfg.AMQP)
	if err != nil {
		logger.Warn("RabbitMQに接続できないためログ発行にフォールバックします", zap.Error(err))
		emitter = eventinfra.NewLogEmitter()
	} else {
		defer amqpEmitter.Close()
		emitter = amqpEmitter
	}

	// リポジトリ
	bookingRepo := postgres.NewBookingRepository(db)
	tableRepo := postgres.NewTableRepository(db)
	holdRepo := postgres.NewHoldRepository(db)
	demandRepo := postgres.NewDemandRepository(db)
	scarcityRepo := postgres.NewScarcityRepository(db)
	committer := postgres.NewAtomicCommitter(db)

	// アプリケーションサービス
	basePolicy := policy.DefaultPolicy().WithTimezone(cfg.Policy.Timezone)
	holdService := application.NewHoldService(holdRepo, rateLimiter, emitter, cfg.Holds)
	demandService := application.NewDemandService(demandRepo, cfg.Selector.DemandCacheTTL)
	scarcityService := application.NewScarcityService(scarcityRepo, cfg.Selector.ScarcityCacheTTL)
	quoteService := application.NewQuoteService(
		bookingRepo, tableRepo, holdService, demandService, scarcityService,
		emitter, basePolicy, cfg.Policy, cfg.Selector,
	)
	assignmentService := application.NewAssignmentService(committer, holdRepo, emitter, cfg.Policy.SignatureSalt)
	autoAssignService := application.NewAutoAssignService(bookingRepo, quoteService, assignmentService, lockManager)

	// ハンドラー
	quoteHandler := handler.NewQuoteHandler(quoteService)
	holdHandler := handler.NewHoldHandler(holdService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	autoAssignHandler := handler.NewAutoAssignHandler(autoAssignService)
	healthHandler := handler.NewHealthHandler()

	// Echoセットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))
	e.Use(custommiddleware.ActorIdentity(cfg.Auth.JWTSecret))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()),
		custommiddleware.MetricsTokenAuth(cfg.Auth.MetricsToken))

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.POST("/bookings/:id/quote", quoteHandler.Quote)
	v1.GET("/bookings/:id/holds", holdHandler.ListForBooking)
	v1.POST("/holds", holdHandler.Create)
	v1.POST("/holds/:id/extend", holdHandler.Extend)
	v1.POST("/holds/:id/confirm", assignmentHandler.ConfirmHold)
	v1.DELETE("/holds/:id", holdHandler.Release)
	v1.POST("/assignments", assignmentHandler.Commit)
	v1.POST("/auto-assign", autoAssignHandler.Run)

	// 期限切れホールドスイーパー
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	sweeper := worker.NewHoldSweeper(holdService, cfg.Holds.SweepInterval)
	go sweeper.Start(sweeperCtx)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// サーバー起動
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error("サーバー起動エラー", zap.Error(err))
			os.Exit(1)
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	sweeperCancel()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
