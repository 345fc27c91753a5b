// Package welcome greets new members in the configured channel.
package welcome

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dg "github.com/bwmarrin/discordgo"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/registry"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

type Module struct {
	Conf   *cf.Config
	Store  *db.Store
	Logger *slog.Logger
}

func (*Module) Name() string { return "welcome" }

func (m *Module) Register(r *registry.Registry) error {
	r.AddListener(m.onMemberAdd)
	return nil
}

// channelFor prefers the per-guild setting over the process-wide one.
// Empty means the guild has no welcome channel and joins are ignored.
func (m *Module) channelFor(guildID string) string {
	if m.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if g, err := m.Store.GetGuild(ctx, guildID); err == nil && g.Settings.WelcomeChannelID != "" {
			return g.Settings.WelcomeChannelID
		}
	}
	return m.Conf.WelcomeChannelID
}

func (m *Module) onMemberAdd(s *dg.Session, e *dg.GuildMemberAdd) {
	channelID := m.channelFor(e.GuildID)
	if channelID == "" {
		return
	}

	guildName := e.GuildID
	memberCount := 0
	if guild, err := s.State.Guild(e.GuildID); err == nil {
		guildName = guild.Name
		memberCount = guild.MemberCount
	}

	created, _ := dg.SnowflakeTimestamp(e.User.ID)

	welcome := embed.Success(
		fmt.Sprintf("Welcome to %s!", guildName),
		fmt.Sprintf("%s has joined the server!", utils.FormatUserMention(e.User.ID)),
		embed.Field{Name: "Member Count", Value: fmt.Sprintf("%d", memberCount), Inline: true},
		embed.Field{Name: "Account Created", Value: utils.FormatTimestamp(created, utils.TimestampRelative), Inline: true},
	)
	welcome.Footer = &dg.MessageEmbedFooter{Text: "User ID: " + e.User.ID}

	if _, err := s.ChannelMessageSendEmbed(channelID, welcome); err != nil {
		m.Logger.Error("error sending welcome message",
			"error", err, "guild", e.GuildID, "user", e.User.ID, "channel", channelID)
		return
	}

	m.Logger.Info("welcome message sent", "guild", e.GuildID, "user", e.User.ID)
}
