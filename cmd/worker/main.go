package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/blob"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/config"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/metrics"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/predict"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/push"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/queue"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/storage"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/vocab"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewPostgresRepo(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	voc, err := vocab.Load(cfg.LabelPath, cfg.TranslationPath)
	if err != nil {
		log.Fatal(err)
	}

	blobs, err := blob.Open(ctx, blob.Config{
		Driver:   cfg.BlobDriver,
		Bucket:   cfg.BucketName,
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
	})
	if err != nil {
		log.Fatal(err)
	}

	predictQueue := queue.NewRedisQueue(cfg.RedisAddr, cfg.QueueName, "")
	defer predictQueue.Close()

	requeued, err := predictQueue.Recover(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if requeued > 0 {
		logger.Warn("requeued abandoned submissions", "count", requeued)
	}

	// The model is loaded on the first submission and reused for the life of
	// the process; a cold start pays the load latency once.
	model := predict.NewLazy(func() (predict.Classifier, error) {
		logger.Info("loading model", "path", cfg.ModelPath)
		return predict.LoadLinearModel(cfg.ModelPath)
	})

	sender := push.NewClient(cfg.PushEndpointURL)
	worker := predict.NewWorker(predictQueue, repo, blobs, sender, model, voc, cfg.BucketKeyPrefix, logger)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics listener", "error", err)
			}
		}()
	}

	logger.Info("worker started", "queue", cfg.QueueName)
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
