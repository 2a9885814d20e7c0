package transport

import (
	"context"
	"sync"
)

// FakeTransport records every outbound action in memory. Intentionally
// exported, for use in other packages' tests.
type FakeTransport struct {
	mu sync.Mutex

	Self    string
	Rosters map[string][]Participant

	Sent     []SentMessage
	Deleted  []MessageRef
	Removed  map[string][]string
	Promoted map[string][]string
	Demoted  map[string][]string

	// FailDelete makes DeleteMessage return this error, for testing the
	// at-least-attempted policy.
	FailDelete error
}

type SentMessage struct {
	Target  string
	Content string
}

func NewFakeTransport(selfID string) *FakeTransport {
	return &FakeTransport{
		Self:     selfID,
		Rosters:  make(map[string][]Participant),
		Removed:  make(map[string][]string),
		Promoted: make(map[string][]string),
		Demoted:  make(map[string][]string),
	}
}

func (f *FakeTransport) SendMessage(ctx context.Context, target string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, SentMessage{Target: target, Content: content})
	return nil
}

func (f *FakeTransport) DeleteMessage(ctx context.Context, target string, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete != nil {
		return f.FailDelete
	}
	f.Deleted = append(f.Deleted, ref)
	return nil
}

func (f *FakeTransport) RemoveParticipants(ctx context.Context, groupID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed[groupID] = append(f.Removed[groupID], ids...)
	return nil
}

func (f *FakeTransport) PromoteParticipants(ctx context.Context, groupID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Promoted[groupID] = append(f.Promoted[groupID], ids...)
	return nil
}

func (f *FakeTransport) DemoteParticipants(ctx context.Context, groupID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Demoted[groupID] = append(f.Demoted[groupID], ids...)
	return nil
}

func (f *FakeTransport) GetGroupRoster(ctx context.Context, groupID string) ([]Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Rosters[groupID], nil
}

func (f *FakeTransport) SelfID() string {
	return f.Self
}

// SentTo returns the messages sent to a given target, for assertions.
func (f *FakeTransport) SentTo(target string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, m := range f.Sent {
		if m.Target == target {
			out = append(out, m)
		}
	}
	return out
}
