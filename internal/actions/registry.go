// internal/actions/registry.go

package actions

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vexaline/browsebench/internal/browser"
)

// Context exposes the environment surface a command handler may touch. The
// environment implements it; tests substitute fakes.
type Context interface {
	// ActivePage returns the page the next browser operation targets.
	ActivePage(ctx context.Context) (browser.Page, error)
	// SendMessage appends a message to the chat transcript.
	SendMessage(role, text string)
	// ReportInfeasible marks the episode infeasible with the given reason.
	ReportInfeasible(reason string)
}

// Handler executes one parsed action against the environment.
type Handler func(ctx context.Context, env Context, args []any) error

type command struct {
	name    string
	minArgs int
	maxArgs int
	handler Handler
}

// Registry maps action names to handlers with arity bounds validated at
// registration time.
type Registry struct {
	commands map[string]command
	logger   *zap.Logger
}

// NewRegistry returns a registry populated with the built-in command set.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		commands: make(map[string]command),
		logger:   logger.Named("actions"),
	}
	registerBuiltins(r)
	return r
}

// register installs a command. A duplicate name or a negative arity bound is
// a programming error and panics at startup rather than surfacing per-call.
func (r *Registry) register(name string, minArgs, maxArgs int, h Handler) {
	if name == "" || h == nil {
		panic("actions: register with empty name or nil handler")
	}
	if minArgs < 0 || maxArgs < minArgs {
		panic(fmt.Sprintf("actions: invalid arity bounds for %q: [%d, %d]", name, minArgs, maxArgs))
	}
	if _, dup := r.commands[name]; dup {
		panic(fmt.Sprintf("actions: duplicate command %q", name))
	}
	r.commands[name] = command{name: name, minArgs: minArgs, maxArgs: maxArgs, handler: h}
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute parses and runs one action string. Parse failures come back as
// *ParseError, execution failures as *ExecError.
func (r *Registry) Execute(ctx context.Context, env Context, input string) error {
	action, err := Parse(input)
	if err != nil {
		return err
	}

	cmd, ok := r.commands[action.Name]
	if !ok {
		return &ExecError{
			Code:   ErrCodeUnknownAction,
			Action: action.Name,
			Msg:    fmt.Sprintf("unknown action %q", action.Name),
		}
	}
	if n := len(action.Args); n < cmd.minArgs || n > cmd.maxArgs {
		return &ExecError{
			Code:   ErrCodeInvalidArguments,
			Action: action.Name,
			Msg:    fmt.Sprintf("%s expects between %d and %d arguments, got %d", action.Name, cmd.minArgs, cmd.maxArgs, n),
		}
	}

	r.logger.Debug("executing action", zap.String("action", action.Name), zap.Int("args", len(action.Args)))
	return cmd.handler(ctx, env, action.Args)
}
