// Package handlers defines the contracts command modules implement and
// the dependency set injected into every invocation.
package handlers

import (
	"context"
	"log/slog"
	"time"

	dg "github.com/bwmarrin/discordgo"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	cd "github.com/udrive-hq/chauffeur/internal/cooldown"
	db "github.com/udrive-hq/chauffeur/internal/database"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
)

// Deps carries everything an interaction handler may need. Constructed
// fresh per invocation; only Store, Cooldowns, and Config are shared,
// and those are read-only after startup.
type Deps struct {
	Session     *dg.Session
	Replier     *rp.Replier
	Store       *db.Store
	Cooldowns   *cd.Gate
	Logger      *slog.Logger
	Config      *cf.Config
	Interaction *dg.InteractionCreate
	Options     map[string]*dg.ApplicationCommandInteractionDataOption
}

// PrefixDeps is the equivalent for legacy text commands.
type PrefixDeps struct {
	Session   *dg.Session
	Store     *db.Store
	Cooldowns *cd.Gate
	Logger    *slog.Logger
	Config    *cf.Config
	Message   *dg.MessageCreate
	Args      []string
}

// Check is a precondition composed ahead of a handler body. A non-nil
// return short-circuits the invocation into the error funnel.
type Check func(ctx context.Context, deps Deps) error

type PrefixCheck func(ctx context.Context, deps PrefixDeps) error

// Command is a slash command or context menu entry.
type Command interface {
	Metadata() dg.ApplicationCommand
	Handle(ctx context.Context, deps Deps) error
}

// Guarded commands run their checks before the handler body.
type Guarded interface {
	Checks() []Check
}

// Throttled commands carry a per-user cooldown.
type Throttled interface {
	Cooldown() time.Duration
}

// Autocompleter answers option autocomplete queries for a Command.
type Autocompleter interface {
	Autocomplete(ctx context.Context, deps Deps) ([]*dg.ApplicationCommandOptionChoice, error)
}

// Component handles message component interactions whose custom ID
// starts with CustomID.
type Component interface {
	CustomID() string
	Component(ctx context.Context, deps Deps) error
}

// Modal handles modal submissions whose custom ID starts with ModalID.
type Modal interface {
	ModalID() string
	Modal(ctx context.Context, deps Deps) error
}

// PrefixCommand is a legacy text command.
type PrefixCommand interface {
	Name() string
	Aliases() []string
	Usage() string
	Handle(ctx context.Context, deps PrefixDeps) error
}

type GuardedPrefix interface {
	PrefixChecks() []PrefixCheck
}
