package remote

import (
	"context"
	"fmt"
	"sync"

	"sunpwm/protocol"
)

// Handler runs one command. It reads its arguments from args and appends its
// results to reply, which already holds the success status.
type Handler func(ctx context.Context, args *protocol.Decoder, reply *protocol.Encoder) error

// Command is a registered request type.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument description published in the dictionary, e.g. "ch=%c pct=%c"
	Handler Handler
}

// Registry maps command ids to handlers. Ids are handed out in registration
// order, so both ends agree on them as long as the order is fixed.
type Registry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds a command and returns its id. Registering a name twice
// returns the existing id.
func (r *Registry) Register(name, format string, h Handler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd.ID
	}
	cmd := &Command{
		ID:      uint16(len(r.commands)),
		Name:    name,
		Format:  format,
		Handler: h,
	}
	r.commands = append(r.commands, cmd)
	r.byName[name] = cmd
	return cmd.ID
}

// Lookup returns the command registered under id.
func (r *Registry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// ID returns the id of the named command.
func (r *Registry) ID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	if !ok {
		return 0, false
	}
	return cmd.ID, true
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered under id.
func (r *Registry) Dispatch(ctx context.Context, id uint16, args *protocol.Decoder, reply *protocol.Encoder) error {
	cmd, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownCommand, id)
	}
	return cmd.Handler(ctx, args, reply)
}

// Signatures returns the dictionary form of every command,
// "name format" -> id.
func (r *Registry) Signatures() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.commands))
	for _, cmd := range r.commands {
		sig := cmd.Name
		if cmd.Format != "" {
			sig += " " + cmd.Format
		}
		out[sig] = int(cmd.ID)
	}
	return out
}
