package handler

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Event is one inbound transport event, already reduced to what
// handlers need. Data carries the callback payload with the event
// identifier stripped, or the command arguments.
type Event struct {
	UserID   int64
	ChatID   int64
	Username string
	Data     string
}

// Func handles one event. The returned error is logged, never
// retried.
type Func func(ctx context.Context, ev Event) error

// Registry maps stable event identifiers (slash commands and
// callback-data prefixes) to handlers. It is populated once at startup
// and validated for completeness against the identifiers the bot
// actually emits in its keyboards, instead of being resolved ad hoc at
// call time.
type Registry struct {
	commands  map[string]Func
	callbacks map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Func),
		callbacks: make(map[string]Func),
	}
}

// Command registers a slash command like "/forms".
func (r *Registry) Command(name string, fn Func) {
	r.commands[name] = fn
}

// Callback registers a callback-data prefix like "form_".
func (r *Registry) Callback(prefix string, fn Func) {
	r.callbacks[prefix] = fn
}

// Validate fails if any required identifier lacks a handler. Called
// once at startup so a keyboard can never emit an event nobody
// handles.
func (r *Registry) Validate(commands, callbacks []string) error {
	var missing []string
	for _, c := range commands {
		if _, ok := r.commands[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range callbacks {
		if _, ok := r.callbacks[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("registry: no handler for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DispatchCommand routes a slash command. The remainder of the message
// text becomes ev.Data.
func (r *Registry) DispatchCommand(ctx context.Context, text string, ev Event) (bool, error) {
	name, args, _ := strings.Cut(text, " ")
	fn, ok := r.commands[name]
	if !ok {
		return false, nil
	}
	ev.Data = strings.TrimSpace(args)
	return true, fn(ctx, ev)
}

// DispatchCallback routes callback data by longest matching prefix.
func (r *Registry) DispatchCallback(ctx context.Context, data string, ev Event) (bool, error) {
	var best string
	for prefix := range r.callbacks {
		if strings.HasPrefix(data, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return false, nil
	}
	ev.Data = strings.TrimPrefix(data, best)
	return true, r.callbacks[best](ctx, ev)
}
