package transport

import "strings"

// Normalized inbound events. The session client is responsible for parsing its
// protocol into these shapes before anything in the moderation core runs.

// MessageEvent is one inbound chat message, already split into command/args if
// the text started with the configured command prefix.
type MessageEvent struct {
	// From is the chat the message arrived in: a group ID for group chats,
	// otherwise the sender's own ID.
	From    string
	Sender  string
	IsGroup bool
	GroupID string
	Text    string

	IsCommand bool
	Command   string
	Args      []string

	// QuotedSender is the author of the message being replied to, if any.
	QuotedSender string

	Ref MessageRef
}

// MembershipAction is the kind of group membership change.
type MembershipAction string

const (
	MembershipAdd     MembershipAction = "add"
	MembershipRemove  MembershipAction = "remove"
	MembershipPromote MembershipAction = "promote"
	MembershipDemote  MembershipAction = "demote"
)

// MembershipEvent is one group membership change, possibly covering several
// participants at once.
type MembershipEvent struct {
	GroupID        string
	ParticipantIDs []string
	Action         MembershipAction
}

// Event is one normalized inbound event; exactly one field is set.
type Event struct {
	Message    *MessageEvent
	Membership *MembershipEvent
}

// ParseCommand splits message text into a command name and arguments when it
// starts with the given prefix. Name comparison downstream is
// case-insensitive, so the name is returned as typed.
func ParseCommand(text, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}
