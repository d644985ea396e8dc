package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/config"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/game"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/metrics"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/migrations"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/push"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/queue"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/storage"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/vocab"
)

// CreateServer builds the gin engine. Routes registered before the origin
// middleware (health, metrics, the internal push callback) accept requests
// with no Origin header; the websocket endpoint is registered after it.
func CreateServer(allowedOrigins []string, hub *push.Hub, handler *game.Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/internal/connections/:id", push.CallbackHandler(hub, logger))

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	r.GET("/ws", handler.ServeWS)

	return r
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := migrations.Migrate(cfg.PostgresURL); err != nil {
		log.Fatal(err)
	}

	repo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	voc, err := vocab.Load(cfg.LabelPath, cfg.TranslationPath)
	if err != nil {
		log.Fatal(err)
	}

	predictQueue := queue.NewRedisQueue(cfg.RedisAddr, cfg.QueueName, "")
	defer predictQueue.Close()

	hub := push.NewHub(logger)
	dispatcher := game.NewDispatcher(hub, logger)
	coordinator := game.NewCoordinator(repo, repo, voc, dispatcher)
	handler := game.NewHandler(hub, coordinator, predictQueue, logger)

	r := CreateServer(cfg.AllowedOrigins, hub, handler, logger)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	logger.Info("server listening", "addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
