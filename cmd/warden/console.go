package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harbor-social/warden/transport"
)

// ConsoleTransport is a development stand-in for a real chat session client.
// Outbound actions are logged instead of sent, and inbound events come from a
// line-oriented reader:
//
//	sender@group: message text
//	join group user [user...]
//
// Group membership is tracked from join lines so roster lookups behave.
type ConsoleTransport struct {
	logger *slog.Logger
	selfID string

	mu      sync.Mutex
	rosters map[string][]transport.Participant
}

var _ transport.Transport = (*ConsoleTransport)(nil)

func NewConsoleTransport(logger *slog.Logger, selfID string) *ConsoleTransport {
	return &ConsoleTransport{
		logger:  logger,
		selfID:  selfID,
		rosters: make(map[string][]transport.Participant),
	}
}

func (c *ConsoleTransport) SendMessage(ctx context.Context, target string, content string) error {
	c.logger.Info("send", "target", target, "content", content)
	return nil
}

func (c *ConsoleTransport) DeleteMessage(ctx context.Context, target string, ref transport.MessageRef) error {
	c.logger.Info("delete", "target", target, "message", ref.ID)
	return nil
}

func (c *ConsoleTransport) RemoveParticipants(ctx context.Context, groupID string, ids []string) error {
	c.logger.Info("remove", "group", groupID, "participants", ids)
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.rosters[groupID][:0]
	for _, p := range c.rosters[groupID] {
		removed := false
		for _, id := range ids {
			if p.ID == id {
				removed = true
				break
			}
		}
		if !removed {
			kept = append(kept, p)
		}
	}
	c.rosters[groupID] = kept
	return nil
}

func (c *ConsoleTransport) PromoteParticipants(ctx context.Context, groupID string, ids []string) error {
	c.logger.Info("promote", "group", groupID, "participants", ids)
	return nil
}

func (c *ConsoleTransport) DemoteParticipants(ctx context.Context, groupID string, ids []string) error {
	c.logger.Info("demote", "group", groupID, "participants", ids)
	return nil
}

func (c *ConsoleTransport) GetGroupRoster(ctx context.Context, groupID string) ([]transport.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transport.Participant(nil), c.rosters[groupID]...), nil
}

func (c *ConsoleTransport) SelfID() string {
	return c.selfID
}

func (c *ConsoleTransport) addParticipants(groupID string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.rosters[groupID] = append(c.rosters[groupID], transport.Participant{ID: id})
	}
}

// ReadEvents parses events off the reader until EOF, closing the returned
// channel when done.
func (c *ConsoleTransport) ReadEvents(ctx context.Context, r io.Reader) <-chan transport.Event {
	out := make(chan transport.Event)
	go func() {
		defer close(out)
		seq := 0
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			evt, ok := c.parseLine(line, seq)
			if !ok {
				c.logger.Warn("unparseable console line", "line", line)
				continue
			}
			seq++
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Error("reading console input", "err", err)
		}
	}()
	return out
}

func (c *ConsoleTransport) parseLine(line string, seq int) (transport.Event, bool) {
	if rest, ok := strings.CutPrefix(line, "join "); ok {
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return transport.Event{}, false
		}
		c.addParticipants(fields[0], fields[1:])
		return transport.Event{Membership: &transport.MembershipEvent{
			GroupID:        fields[0],
			ParticipantIDs: fields[1:],
			Action:         transport.MembershipAdd,
		}}, true
	}

	head, text, ok := strings.Cut(line, ": ")
	if !ok {
		return transport.Event{}, false
	}
	sender, group, isGroup := strings.Cut(head, "@")
	from := sender
	if isGroup {
		from = group
	}
	return transport.Event{Message: &transport.MessageEvent{
		From:    from,
		Sender:  sender,
		IsGroup: isGroup,
		GroupID: group,
		Text:    text,
		Ref: transport.MessageRef{
			ID:     fmt.Sprintf("console-%d", seq),
			ChatID: from,
			Sender: sender,
		},
	}}, true
}
