package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/blob"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/metrics"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/push"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/queue"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/vocab"
)

// ScoreStore is the slice of the registry the worker writes to.
type ScoreStore interface {
	PutScore(ctx context.Context, rec domain.ScoreRecord) error
}

// ResultMessage is the push reply for both the live-prediction and the
// image-saved variants; only Command differs.
type ResultMessage struct {
	Command string       `json:"command"`
	Scores  []LabelScore `json:"scores"`
}

// Worker drains the submission queue and runs the inference pipeline:
// normalize, classify, rank, persist when final, reply over push. It is
// stateless between messages except for the lazily-initialized classifier.
//
// Messages are acked after the processing attempt regardless of outcome;
// redelivery happens only when the process dies mid-message. A redelivered
// final submission writes a second artifact under a fresh key (see
// DESIGN.md).
type Worker struct {
	queue     queue.Consumer
	scores    ScoreStore
	blobs     blob.Store
	push      push.Sender
	model     Classifier
	vocab     *vocab.Vocabulary
	keyPrefix string
	log       *slog.Logger
}

func NewWorker(q queue.Consumer, scores ScoreStore, blobs blob.Store, sender push.Sender,
	model Classifier, v *vocab.Vocabulary, keyPrefix string, log *slog.Logger) *Worker {
	return &Worker{
		queue:     q,
		scores:    scores,
		blobs:     blobs,
		push:      sender,
		model:     model,
		vocab:     v,
		keyPrefix: keyPrefix,
		log:       log,
	}
}

// Run consumes messages one at a time until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("queue receive failed", "error", err)
			continue
		}

		if err := w.Handle(ctx, msg.Body); err != nil {
			w.log.Error("submission failed", "error", err)
			metrics.WorkerProcessed.WithLabelValues("error").Inc()
		} else {
			metrics.WorkerProcessed.WithLabelValues("ok").Inc()
		}

		if err := w.queue.Ack(ctx, msg); err != nil {
			w.log.Error("queue ack failed", "error", err)
		}
	}
}

// Handle runs the pipeline for one dequeued submission.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return fmt.Errorf("%w: undecodable submission: %w", domain.ErrValidation, err)
	}
	if sub.ConnectionID == "" || sub.ImgB64 == "" {
		return fmt.Errorf("%w: submission missing connection_id or image", domain.ErrValidation)
	}

	imageBytes, err := DecodeDataURL(sub.ImgB64)
	if err != nil {
		return err
	}

	started := time.Now()
	tensor, err := Normalize(imageBytes)
	if err != nil {
		return err
	}
	confidences, err := w.model.Classify(tensor)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	metrics.InferenceDuration.Observe(time.Since(started).Seconds())

	ranked, byLabel := Rank(confidences, w.vocab)

	command := domain.CmdPredict
	if sub.IsFin {
		command = domain.CmdImgSave
		if err := w.persist(ctx, sub, imageBytes, byLabel); err != nil {
			return err
		}
	}

	return w.reply(ctx, sub.ConnectionID, command, Top(ranked, TopN))
}

// persist writes the artifact and the score record for a finalized stroke.
// Failures after the blob write are non-retryable: the artifact exists.
func (w *Worker) persist(ctx context.Context, sub domain.Submission, imageBytes []byte, byLabel map[string]float64) error {
	key := fmt.Sprintf("%s/%s/%s.png", w.keyPrefix, sub.ConnectionID, uuid.NewString())

	if err := w.blobs.Put(ctx, key, imageBytes, "image/png"); err != nil {
		return err
	}

	rec := domain.ScoreRecord{
		ConnectionID: sub.ConnectionID,
		StrokeID:     sub.ImgID,
		ArtifactKey:  key,
		Score:        byLabel[sub.Odai], // zero when the target label is unknown
	}
	if err := w.scores.PutScore(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}

	w.log.Info("artifact saved", "connection_id", sub.ConnectionID, "stroke_id", sub.ImgID, "key", key)
	return nil
}

// reply pushes the ranked result. A gone connection is skipped, not failed:
// the player may have left while inference ran.
func (w *Worker) reply(ctx context.Context, connectionID, command string, scores []LabelScore) error {
	data, err := json.Marshal(ResultMessage{Command: command, Scores: scores})
	if err != nil {
		return err
	}

	err = w.push.SendTo(ctx, connectionID, data)
	if errors.Is(err, domain.ErrGone) {
		metrics.PushGone.Inc()
		w.log.Warn("result dropped, connection gone", "connection_id", connectionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}
	metrics.BroadcastsSent.WithLabelValues(command).Inc()
	return nil
}
