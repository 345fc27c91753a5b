// Package registry holds the command descriptor arena. Modules register
// explicitly at startup; there is no reflective discovery.
package registry

import (
	"fmt"
	"sort"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/udrive-hq/chauffeur/internal/handlers"
)

// Module bundles related commands and listeners, loadable independently.
type Module interface {
	Name() string
	Register(r *Registry) error
}

type Registry struct {
	commands   map[string]handlers.Command
	prefix     map[string]handlers.PrefixCommand
	aliases    map[string]string
	components []handlers.Component
	modals     []handlers.Modal
	listeners  []any
}

func New() *Registry {
	return &Registry{
		commands: make(map[string]handlers.Command),
		prefix:   make(map[string]handlers.PrefixCommand),
		aliases:  make(map[string]string),
	}
}

// Load registers every module, failing on the first conflict.
func (r *Registry) Load(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return fmt.Errorf("loading module %s: %w", m.Name(), err)
		}
	}
	return nil
}

// AddCommand registers a slash command or context menu entry. Names are
// unique within the application-command namespace.
func (r *Registry) AddCommand(c handlers.Command) error {
	name := c.Metadata().Name
	if name == "" {
		return fmt.Errorf("command has no name")
	}
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("duplicate command name %q", name)
	}
	r.commands[name] = c
	return nil
}

// AddPrefix registers a legacy text command. The prefix namespace is
// independent of the application-command namespace.
func (r *Registry) AddPrefix(c handlers.PrefixCommand) error {
	name := strings.ToLower(c.Name())
	if name == "" {
		return fmt.Errorf("prefix command has no name")
	}
	if _, ok := r.prefix[name]; ok {
		return fmt.Errorf("duplicate prefix command name %q", name)
	}
	if owner, ok := r.aliases[name]; ok {
		return fmt.Errorf("prefix command name %q conflicts with alias of %q", name, owner)
	}
	r.prefix[name] = c

	for _, alias := range c.Aliases() {
		alias = strings.ToLower(alias)
		if _, ok := r.prefix[alias]; ok {
			return fmt.Errorf("alias %q of %q conflicts with a command name", alias, name)
		}
		if owner, ok := r.aliases[alias]; ok {
			return fmt.Errorf("alias %q of %q already claimed by %q", alias, name, owner)
		}
		r.aliases[alias] = name
	}
	return nil
}

func (r *Registry) AddComponent(c handlers.Component) {
	r.components = append(r.components, c)
}

func (r *Registry) AddModal(m handlers.Modal) {
	r.modals = append(r.modals, m)
}

// AddListener registers a raw gateway event listener, e.g. a
// func(*discordgo.Session, *discordgo.GuildMemberAdd).
func (r *Registry) AddListener(handler any) {
	r.listeners = append(r.listeners, handler)
}

func (r *Registry) Command(name string) (handlers.Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

func (r *Registry) Prefix(name string) (handlers.PrefixCommand, bool) {
	name = strings.ToLower(name)
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	c, ok := r.prefix[name]
	return c, ok
}

// Component finds the first component handler whose custom ID is a
// prefix of the incoming one, allowing handlers to pack state after a
// separator.
func (r *Registry) Component(customID string) (handlers.Component, bool) {
	for _, c := range r.components {
		if strings.HasPrefix(customID, c.CustomID()) {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) Modal(customID string) (handlers.Modal, bool) {
	for _, m := range r.modals {
		if strings.HasPrefix(customID, m.ModalID()) {
			return m, true
		}
	}
	return nil, false
}

func (r *Registry) Listeners() []any {
	return r.listeners
}

// Descriptors returns the application-command set in a stable order.
func (r *Registry) Descriptors() []*dg.ApplicationCommand {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]*dg.ApplicationCommand, 0, len(names))
	for _, name := range names {
		cmd := r.commands[name].Metadata()
		descriptors = append(descriptors, &cmd)
	}
	return descriptors
}
