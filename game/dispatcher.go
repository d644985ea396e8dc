package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/metrics"
	"github.com/tsuji-tomonori/RakugakiBattleOnLine/push"
)

// Dispatcher fans out room notifications. A gone connection is logged and
// skipped; any other delivery failure aborts the remaining fan-out, leaving
// earlier recipients already notified — that partial delivery is surfaced
// to the caller as a single non-retryable error, not hidden.
type Dispatcher struct {
	sender push.Sender
	log    *slog.Logger
}

func NewDispatcher(sender push.Sender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, log: log}
}

// Send delivers one payload to one connection. Gone is swallowed.
func (d *Dispatcher) Send(ctx context.Context, connectionID, command string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = d.sender.SendTo(ctx, connectionID, data)
	if errors.Is(err, domain.ErrGone) {
		metrics.PushGone.Inc()
		d.log.Warn("skipping gone connection", "connection_id", connectionID, "command", command)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.BroadcastsSent.WithLabelValues(command).Inc()
	return nil
}

// Broadcast delivers the same payload to every target in order. Delivery
// order across recipients is the caller's iteration order; nothing stronger
// is guaranteed.
func (d *Dispatcher) Broadcast(ctx context.Context, targets []string, command string, payload any) error {
	for _, target := range targets {
		if err := d.Send(ctx, target, command, payload); err != nil {
			return fmt.Errorf("%w: fan-out aborted at %s: %w", domain.ErrNonRetryable, target, err)
		}
	}
	return nil
}
