// Package game orchestrates the per-connection session lifecycle
// (connect, join, start-round, disconnect) against the durable registries
// and the broadcast dispatcher. Every event is an independent, stateless
// invocation; concurrent events on the same room may interleave, and a
// membership snapshot can be stale by the time its broadcast fires. The
// registries carry no multi-key transactions, so the join's two writes are
// not atomic (see DESIGN.md).
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// Coordinator is the session state machine:
// UNCONNECTED -> CONNECTED -> IN_ROOM -> REMOVED.
type Coordinator struct {
	presence   PresenceRegistry
	rooms      RoomRegistry
	prompts    PromptSampler
	dispatcher *Dispatcher
}

func NewCoordinator(presence PresenceRegistry, rooms RoomRegistry, prompts PromptSampler, dispatcher *Dispatcher) *Coordinator {
	return &Coordinator{
		presence:   presence,
		rooms:      rooms,
		prompts:    prompts,
		dispatcher: dispatcher,
	}
}

// OnConnect writes the login marker. No broadcast.
func (c *Coordinator) OnConnect(ctx context.Context, connectionID string) error {
	return c.presence.PutLogin(ctx, connectionID)
}

// OnJoin records the presence and membership writes, then fans out the
// asymmetric enter_room notifications: every existing member gets one
// message with the joiner's name, while the joiner gets one message per
// existing member — a roster replay that lets the client rebuild room state
// without a dedicated bulk-roster payload.
func (c *Coordinator) OnJoin(ctx context.Context, connectionID, roomID, userName string) error {
	if connectionID == "" || roomID == "" || userName == "" {
		return fmt.Errorf("%w: enter_room requires room_id and user_name", domain.ErrValidation)
	}

	if err := c.presence.PutPresence(ctx, connectionID, roomID, userName); err != nil {
		return err
	}
	// A failure here strands a presence record with no membership; there is
	// no compensating rollback (see DESIGN.md).
	if err := c.rooms.AddMember(ctx, roomID, connectionID); err != nil {
		return err
	}

	members, err := c.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}

	for _, member := range members {
		if member != connectionID {
			if err := c.dispatcher.Send(ctx, member, domain.CmdEnterRoom, enterRoomMessage(userName)); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
			}
			continue
		}
		// Roster replay to the joiner, excluding itself.
		for _, other := range members {
			if other == connectionID {
				continue
			}
			info, err := c.presence.GetPresence(ctx, other)
			if err != nil {
				return fmt.Errorf("%w: roster lookup for %s: %w", domain.ErrNonRetryable, other, err)
			}
			if err := c.dispatcher.Send(ctx, connectionID, domain.CmdEnterRoom, enterRoomMessage(info.UserName)); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
			}
		}
	}
	return nil
}

// OnStartRound samples nOdai distinct prompts and broadcasts them with the
// timer to every current room member.
func (c *Coordinator) OnStartRound(ctx context.Context, roomID string, nOdai, nTimeSec int) error {
	if roomID == "" || nOdai <= 0 || nTimeSec <= 0 {
		return fmt.Errorf("%w: start_game requires room_id, n_odai and n_time_sec", domain.ErrValidation)
	}

	odai, err := c.prompts.Sample(nOdai)
	if err != nil {
		return err
	}

	members, err := c.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return err
	}
	return c.dispatcher.Broadcast(ctx, members, domain.CmdGameStart, gameStartMessage(odai, nTimeSec))
}

// OnDisconnect cascades the cleanup: presence first, then membership, then
// the leave broadcast to the remaining members. An absent presence record
// means the connection was already cleaned up, which is a success.
func (c *Coordinator) OnDisconnect(ctx context.Context, connectionID string) error {
	info, err := c.presence.GetPresence(ctx, connectionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.presence.DeletePresence(ctx, connectionID); err != nil {
		return err
	}
	if !info.InRoom() {
		return nil
	}

	if err := c.rooms.RemoveMember(ctx, info.RoomID, connectionID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}

	members, err := c.rooms.ListMembers(ctx, info.RoomID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNonRetryable, err)
	}

	// The departing connection is excluded: its channel is already closing.
	targets := members[:0:0]
	for _, m := range members {
		if m != connectionID {
			targets = append(targets, m)
		}
	}
	return c.dispatcher.Broadcast(ctx, targets, domain.CmdLeaveRoom, leaveRoomMessage(info.UserName))
}
