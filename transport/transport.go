package transport

import (
	"context"
)

// Transport is the outbound side of the chat session: everything the moderation
// core needs to act on a conversation. Implementations wrap the actual protocol
// client; the core never sees wire formats.
type Transport interface {
	// SendMessage posts a text message to a chat (group or direct).
	SendMessage(ctx context.Context, target string, content string) error
	// DeleteMessage removes a previously delivered message for everyone.
	DeleteMessage(ctx context.Context, target string, ref MessageRef) error
	// RemoveParticipants kicks the given user IDs out of a group.
	RemoveParticipants(ctx context.Context, groupID string, ids []string) error
	// PromoteParticipants grants group admin to the given user IDs.
	PromoteParticipants(ctx context.Context, groupID string, ids []string) error
	// DemoteParticipants revokes group admin from the given user IDs.
	DemoteParticipants(ctx context.Context, groupID string, ids []string) error
	// GetGroupRoster returns the current participant list of a group.
	GetGroupRoster(ctx context.Context, groupID string) ([]Participant, error)
	// SelfID returns the session's own user identifier.
	SelfID() string
}

// MessageRef identifies a single delivered message within a chat, enough to
// delete it later.
type MessageRef struct {
	ID     string
	ChatID string
	Sender string
	FromMe bool
}

// Participant is one member of a group roster.
type Participant struct {
	ID           string
	IsAdmin      bool
	IsSuperAdmin bool
}
