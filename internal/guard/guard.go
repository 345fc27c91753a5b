// Package guard provides reusable permission predicates. Guards never
// reply themselves; a denial is a classified failure that flows into
// the central error funnel.
package guard

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/handlers"
)

var permissionNames = map[int64]string{
	dg.PermissionAdministrator:  "Administrator",
	dg.PermissionManageGuild:    "Manage Server",
	dg.PermissionManageChannels: "Manage Channels",
	dg.PermissionManageMessages: "Manage Messages",
	dg.PermissionKickMembers:    "Kick Members",
	dg.PermissionBanMembers:     "Ban Members",
	dg.PermissionManageRoles:    "Manage Roles",
}

func describePermissions(bits int64) string {
	var names []string
	for bit, name := range permissionNames {
		if bits&bit != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%x", bits)
	}
	return strings.Join(names, ", ")
}

// GuildOnly rejects invocations outside a guild.
func GuildOnly() handlers.Check {
	return func(ctx context.Context, deps handlers.Deps) error {
		if deps.Interaction.GuildID == "" {
			return dispatch.Fail(dispatch.KindCheckFailed, "This command can only be used in a server.")
		}
		return nil
	}
}

// RequirePermissions rejects members missing all of the given
// permission bits. Interaction members carry their resolved channel
// permissions, so no extra lookup is needed.
func RequirePermissions(bits int64) handlers.Check {
	return func(ctx context.Context, deps handlers.Deps) error {
		i := deps.Interaction
		if i.GuildID == "" || i.Member == nil {
			return dispatch.Fail(dispatch.KindCheckFailed, "This command can only be used in a server.")
		}
		if i.Member.Permissions&dg.PermissionAdministrator != 0 {
			return nil
		}
		if i.Member.Permissions&bits == 0 {
			return dispatch.Failf(dispatch.KindPermissionDenied,
				"You need the following permissions to run this command: %s.", describePermissions(bits))
		}
		return nil
	}
}

// GuildOwnerOnly restricts a prefix command to the guild owner.
func GuildOwnerOnly() handlers.PrefixCheck {
	return func(ctx context.Context, deps handlers.PrefixDeps) error {
		m := deps.Message
		if m.GuildID == "" {
			return dispatch.Fail(dispatch.KindCheckFailed, "This command can only be used in a server.")
		}

		guild, err := deps.Session.State.Guild(m.GuildID)
		if err != nil {
			guild, err = deps.Session.Guild(m.GuildID)
			if err != nil {
				return dispatch.Fail(dispatch.KindCheckFailed, "Could not verify server ownership.")
			}
		}

		if m.Author.ID != guild.OwnerID {
			return dispatch.Fail(dispatch.KindPermissionDenied, "Only the server owner can run this command.")
		}
		return nil
	}
}

// RequireMessagePermissions is the prefix-path analog of
// RequirePermissions; text messages don't carry resolved permissions so
// the channel permission set is computed per call.
func RequireMessagePermissions(bits int64) handlers.PrefixCheck {
	return func(ctx context.Context, deps handlers.PrefixDeps) error {
		m := deps.Message
		if m.GuildID == "" {
			return dispatch.Fail(dispatch.KindCheckFailed, "This command can only be used in a server.")
		}

		perms, err := deps.Session.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			return dispatch.Fail(dispatch.KindCheckFailed, "Could not verify your permissions.")
		}
		if perms&dg.PermissionAdministrator != 0 {
			return nil
		}
		if perms&bits == 0 {
			return dispatch.Failf(dispatch.KindPermissionDenied,
				"You need the following permissions to run this command: %s.", describePermissions(bits))
		}
		return nil
	}
}
