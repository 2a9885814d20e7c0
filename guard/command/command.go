// Transport-agnostic command core: a command is a descriptor (identity,
// role requirement, argument shape) plus a handler. The dispatcher owns the
// pipeline around the handler; how command text gets parsed off the wire is
// the transport's business.
package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/harbor-social/warden/guard/auth"
	"github.com/harbor-social/warden/transport"
)

// Invocation carries one parsed command invocation into a handler.
type Invocation struct {
	Event   transport.MessageEvent
	UserID  string
	GroupID string
	Args    []string
	// Role is the caller's effective role, filled in after authorization.
	Role auth.Role
}

// Reply sends text back to the chat the command came from.
func (inv *Invocation) Reply(ctx context.Context, tr transport.Transport, text string) error {
	return tr.SendMessage(ctx, inv.Event.From, text)
}

// HandlerFunc executes a command after the pipeline has admitted it.
type HandlerFunc func(ctx context.Context, inv *Invocation) error

// Command describes one command: who may run it, what arguments it takes, and
// what it does. The zero values are permissive (any role, any argument count,
// usable anywhere).
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string

	RequiredRole auth.Role
	MinArgs      int
	// MaxArgs of zero means no upper bound.
	MaxArgs   int
	GroupOnly bool
	// RequireQuoted demands the invocation reference another message, used by
	// commands that act on a message's sender.
	RequireQuoted bool
	// Validate runs after the shape checks for command-specific argument rules.
	Validate func(inv *Invocation) error

	Handler HandlerFunc
}

// Registry stores commands by name with alias resolution. Lookup is
// case-insensitive. Registering a name again replaces the previous entry, so
// wiring code may run more than once without duplicating state.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	aliases  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command and its aliases. An alias that collides with
// another command's name or alias is skipped rather than hijacked.
func (r *Registry) Register(c *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(c.Name)
	r.commands[name] = c
	for alias, target := range r.aliases {
		if target == name {
			delete(r.aliases, alias)
		}
	}
	for _, a := range c.Aliases {
		a = strings.ToLower(a)
		if _, taken := r.commands[a]; taken {
			continue
		}
		if target, taken := r.aliases[a]; taken && target != name {
			continue
		}
		r.aliases[a] = name
	}
}

// Resolve looks a command up by name or alias, returning nil when unknown.
func (r *Registry) Resolve(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.ToLower(name)
	if c, ok := r.commands[name]; ok {
		return c
	}
	if target, ok := r.aliases[name]; ok {
		return r.commands[target]
	}
	return nil
}

// All returns every registered command sorted by name, for help output.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
