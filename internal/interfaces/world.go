package interfaces

import (
	"context"

	"github.com/user/silent-god/internal/types"
)

// Oracle advances the world by one turn
type Oracle interface {
	Advance(ctx context.Context, req types.SimulationRequest) (*types.SimulationResult, error)
}

// PortraitGenerator renders a portrait for a person. A nil reference with a
// nil error means no portrait was produced.
type PortraitGenerator interface {
	Generate(ctx context.Context, person types.Person) (string, error)
}

// Store persists the single save slot and the archive of past worlds
type Store interface {
	Load(ctx context.Context) (*types.SaveState, error)
	Save(ctx context.Context, state *types.SaveState) error
	Clear(ctx context.Context) error
	Archive(ctx context.Context, world types.PastWorld) error
	ListArchives(ctx context.Context) ([]types.PastWorld, error)
}

// MessageSender defines the interface for sending messages
type MessageSender interface {
	SendMessage(phoneNumber, recipient, message string) (string, error)
}

// WorldManager defines the operations exposed to the outer surfaces
type WorldManager interface {
	Snapshot() types.Snapshot
	Enqueue(ctx context.Context, text string) error
	Submit(ctx context.Context, command string) error
	Decide(ctx context.Context, optionID *string) error
	RevealSecret(ctx context.Context, personID, secretID string) error
	SetPlaying(playing bool)
	GeneratePortrait(ctx context.Context, personID string) error
	ArchiveAndReset(ctx context.Context) (*types.PastWorld, error)
	ListArchives(ctx context.Context) ([]types.PastWorld, error)
}
