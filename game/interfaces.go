package game

import (
	"context"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

// PresenceRegistry is the per-connection slice of the durable store.
type PresenceRegistry interface {
	PutLogin(ctx context.Context, connectionID string) error
	PutPresence(ctx context.Context, connectionID, roomID, userName string) error
	GetPresence(ctx context.Context, connectionID string) (domain.Presence, error)
	DeletePresence(ctx context.Context, connectionID string) error
}

// RoomRegistry is the room-membership index used to compute broadcast
// targets.
type RoomRegistry interface {
	AddMember(ctx context.Context, roomID, connectionID string) error
	RemoveMember(ctx context.Context, roomID, connectionID string) error
	ListMembers(ctx context.Context, roomID string) ([]string, error)
}

// PromptSampler draws distinct round prompts from the fixed vocabulary.
type PromptSampler interface {
	Sample(n int) ([]string, error)
}
