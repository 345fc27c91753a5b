package guard

import (
	"context"
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/handlers"
)

func interactionDeps(guildID string, perms int64) handlers.Deps {
	i := &dg.InteractionCreate{Interaction: &dg.Interaction{GuildID: guildID}}
	if guildID != "" {
		i.Member = &dg.Member{
			User:        &dg.User{ID: "u1", Username: "alice"},
			Permissions: perms,
		}
	}
	return handlers.Deps{Interaction: i}
}

func kindOf(t *testing.T, err error) dispatch.Kind {
	t.Helper()
	var f *dispatch.Failure
	require.ErrorAs(t, err, &f)
	return f.Kind
}

func TestGuildOnly(t *testing.T) {
	check := GuildOnly()

	assert.NoError(t, check(context.Background(), interactionDeps("g1", 0)))

	err := check(context.Background(), interactionDeps("", 0))
	assert.Equal(t, dispatch.KindCheckFailed, kindOf(t, err))
}

func TestRequirePermissionsDeniesMissingBits(t *testing.T) {
	check := RequirePermissions(dg.PermissionManageGuild)

	err := check(context.Background(), interactionDeps("g1", dg.PermissionSendMessages))
	assert.Equal(t, dispatch.KindPermissionDenied, kindOf(t, err))
	assert.Contains(t, err.Error(), "Manage Server")
}

func TestRequirePermissionsAllowsHolder(t *testing.T) {
	check := RequirePermissions(dg.PermissionManageGuild)
	assert.NoError(t, check(context.Background(), interactionDeps("g1", dg.PermissionManageGuild)))
}

func TestRequirePermissionsAdministratorBypass(t *testing.T) {
	check := RequirePermissions(dg.PermissionManageGuild | dg.PermissionBanMembers)
	assert.NoError(t, check(context.Background(), interactionDeps("g1", dg.PermissionAdministrator)))
}

func TestRequirePermissionsOutsideGuild(t *testing.T) {
	check := RequirePermissions(dg.PermissionManageGuild)

	err := check(context.Background(), interactionDeps("", 0))
	assert.Equal(t, dispatch.KindCheckFailed, kindOf(t, err))
}

func TestDescribePermissions(t *testing.T) {
	assert.Contains(t, describePermissions(dg.PermissionBanMembers), "Ban Members")

	joined := describePermissions(dg.PermissionKickMembers | dg.PermissionBanMembers)
	assert.Contains(t, joined, "Kick Members")
	assert.Contains(t, joined, "Ban Members")

	// Unmapped bits fall back to a hex rendering.
	assert.Equal(t, "0x80000000000000", describePermissions(1<<55))
}
