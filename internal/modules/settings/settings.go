// Package settings exposes per-guild configuration: the command
// prefix, the welcome channel, and the staff role. Values live in the
// guild's settings blob and override the process-wide defaults.
package settings

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/guard"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
)

const maxPrefixLength = 5

type Module struct{}

func (Module) Name() string { return "settings" }

func (Module) Register(r *registry.Registry) error {
	return r.AddCommand(&command{})
}

type command struct{}

func (*command) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "settings",
		Description: "View or change this server's bot settings",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "view",
				Description: "Show the current settings",
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "prefix",
				Description: "Set the text command prefix",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:        dg.ApplicationCommandOptionString,
						Name:        "value",
						Description: "The new prefix",
						Required:    true,
					},
				},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "welcome-channel",
				Description: "Set the channel new members are greeted in",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:        dg.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The welcome channel",
						Required:    true,
					},
				},
			},
			{
				Type:        dg.ApplicationCommandOptionSubCommand,
				Name:        "staff-role",
				Description: "Set the role allowed to handle support tickets",
				Options: []*dg.ApplicationCommandOption{
					{
						Type:        dg.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "The staff role",
						Required:    true,
					},
				},
			},
		},
	}
}

func (*command) Checks() []handlers.Check {
	return []handlers.Check{
		guard.GuildOnly(),
		guard.RequirePermissions(dg.PermissionManageGuild),
	}
}

func (c *command) Handle(ctx context.Context, deps handlers.Deps) error {
	if deps.Store == nil {
		return dispatch.Fail(dispatch.KindCheckFailed, "Settings are not available without persistent storage.")
	}

	sub, opt := subcommand(deps.Options)
	switch sub {
	case "view":
		return c.view(ctx, deps)
	case "prefix":
		return c.setPrefix(ctx, deps, opt)
	case "welcome-channel":
		return c.setWelcomeChannel(ctx, deps, opt)
	case "staff-role":
		return c.setStaffRole(ctx, deps, opt)
	default:
		return dispatch.Fail(dispatch.KindMissingArgument, "Pick one of the settings subcommands.")
	}
}

// subcommand pulls the invoked subcommand out of the option map.
func subcommand(options map[string]*dg.ApplicationCommandInteractionDataOption) (string, *dg.ApplicationCommandInteractionDataOption) {
	for name, opt := range options {
		if opt.Type == dg.ApplicationCommandOptionSubCommand {
			return name, opt
		}
	}
	return "", nil
}

func subOption(opt *dg.ApplicationCommandInteractionDataOption, name string) (*dg.ApplicationCommandInteractionDataOption, bool) {
	if opt == nil {
		return nil, false
	}
	for _, o := range opt.Options {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

// validatePrefix rejects prefixes that would be unusable in chat.
func validatePrefix(p string) error {
	switch {
	case p == "":
		return dispatch.Fail(dispatch.KindMissingArgument, "The prefix cannot be empty.")
	case len(p) > maxPrefixLength:
		return dispatch.Failf(dispatch.KindBadArgument, "The prefix must be at most %d characters.", maxPrefixLength)
	case strings.ContainsAny(p, " \t\n"):
		return dispatch.Fail(dispatch.KindBadArgument, "The prefix cannot contain whitespace.")
	}
	return nil
}

func (c *command) view(ctx context.Context, deps handlers.Deps) error {
	g, err := deps.Store.GetGuild(ctx, deps.Interaction.GuildID)
	if err != nil {
		return errutil.With(err)
	}

	handled, err := deps.Store.CountInvocations(ctx, deps.Interaction.GuildID)
	if err != nil {
		deps.Logger.Warn("error counting invocations", "error", err, "guild", deps.Interaction.GuildID)
	}

	prefix := g.Settings.Prefix
	if prefix == "" {
		prefix = deps.Config.Prefix + " (default)"
	}

	e := embed.Info("Server Settings", "",
		embed.Field{Name: "Prefix", Value: prefix, Inline: true},
		embed.Field{Name: "Welcome Channel", Value: channelLabel(g.Settings.WelcomeChannelID), Inline: true},
		embed.Field{Name: "Staff Role", Value: roleLabel(g.Settings.StaffRoleID), Inline: true},
		embed.Field{Name: "Commands Handled", Value: fmt.Sprintf("%d", handled), Inline: true},
	)
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
}

func channelLabel(id string) string {
	if id == "" {
		return "Not set"
	}
	return "<#" + id + ">"
}

func roleLabel(id string) string {
	if id == "" {
		return "Not set"
	}
	return "<@&" + id + ">"
}

func (c *command) setPrefix(ctx context.Context, deps handlers.Deps, opt *dg.ApplicationCommandInteractionDataOption) error {
	value, ok := subOption(opt, "value")
	if !ok {
		return dispatch.Fail(dispatch.KindMissingArgument, "You're missing the `value` argument.")
	}

	prefix := value.StringValue()
	if err := validatePrefix(prefix); err != nil {
		return err
	}

	return c.update(ctx, deps, fmt.Sprintf("Prefix set to `%s`.", prefix), func(s *db.GuildSettings) {
		s.Prefix = prefix
	})
}

func (c *command) setWelcomeChannel(ctx context.Context, deps handlers.Deps, opt *dg.ApplicationCommandInteractionDataOption) error {
	channel, ok := subOption(opt, "channel")
	if !ok {
		return dispatch.Fail(dispatch.KindMissingArgument, "You're missing the `channel` argument.")
	}

	id := channel.StringValue()
	return c.update(ctx, deps, fmt.Sprintf("Welcome messages will be posted in %s.", channelLabel(id)), func(s *db.GuildSettings) {
		s.WelcomeChannelID = id
	})
}

func (c *command) setStaffRole(ctx context.Context, deps handlers.Deps, opt *dg.ApplicationCommandInteractionDataOption) error {
	role, ok := subOption(opt, "role")
	if !ok {
		return dispatch.Fail(dispatch.KindMissingArgument, "You're missing the `role` argument.")
	}

	id := role.StringValue()
	return c.update(ctx, deps, fmt.Sprintf("Support staff role set to %s.", roleLabel(id)), func(s *db.GuildSettings) {
		s.StaffRoleID = id
	})
}

// update applies a mutation to the guild's settings blob.
func (c *command) update(ctx context.Context, deps handlers.Deps, confirmation string, mutate func(*db.GuildSettings)) error {
	guildID := deps.Interaction.GuildID

	g, err := deps.Store.GetGuild(ctx, guildID)
	if err != nil {
		return errutil.With(err)
	}

	settings := g.Settings
	mutate(&settings)

	if err := deps.Store.UpdateGuildSettings(ctx, guildID, settings); err != nil {
		return errutil.With(err)
	}

	deps.Logger.Info("guild settings updated", "guild", guildID)
	return deps.Replier.Send(rp.Message{
		Embeds:    []*dg.MessageEmbed{embed.Success("Settings Updated", confirmation)},
		Ephemeral: true,
	})
}
