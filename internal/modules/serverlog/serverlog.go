// Package serverlog mirrors member joins, leaves, and message
// deletions into log channels the bot creates under a Server Logs
// category.
package serverlog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/registry"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

const (
	categoryName       = "Server Logs"
	memberLogsChannel  = "member-logs"
	messageLogsChannel = "message-logs"

	maxLoggedContent = 1024
)

type Module struct {
	Logger *slog.Logger

	mu       sync.Mutex
	channels map[string]string // "<guildID>/<name>" -> channel ID, "" when setup failed
}

func (*Module) Name() string { return "serverlog" }

func (m *Module) Register(r *registry.Registry) error {
	m.channels = make(map[string]string)
	r.AddListener(m.onMemberAdd)
	r.AddListener(m.onMemberRemove)
	r.AddListener(m.onMessageDelete)
	return nil
}

func (m *Module) onMemberAdd(s *dg.Session, e *dg.GuildMemberAdd) {
	channelID := m.logChannel(s, e.GuildID, memberLogsChannel)
	if channelID == "" {
		return
	}

	if _, err := s.ChannelMessageSendEmbed(channelID, memberJoinedEmbed(e.User, memberCount(s, e.GuildID))); err != nil {
		m.Logger.Warn("error logging member join", "error", err, "guild", e.GuildID)
	}
}

func (m *Module) onMemberRemove(s *dg.Session, e *dg.GuildMemberRemove) {
	channelID := m.logChannel(s, e.GuildID, memberLogsChannel)
	if channelID == "" {
		return
	}

	if _, err := s.ChannelMessageSendEmbed(channelID, memberLeftEmbed(e.User, e.Roles, memberCount(s, e.GuildID))); err != nil {
		m.Logger.Warn("error logging member leave", "error", err, "guild", e.GuildID)
	}
}

func (m *Module) onMessageDelete(s *dg.Session, e *dg.MessageDelete) {
	if e.GuildID == "" {
		return
	}

	msg := e.BeforeDelete
	if msg != nil && msg.Author != nil && msg.Author.Bot {
		return
	}

	channelID := m.logChannel(s, e.GuildID, messageLogsChannel)
	if channelID == "" || channelID == e.ChannelID {
		return
	}

	if _, err := s.ChannelMessageSendEmbed(channelID, messageDeletedEmbed(e.ID, e.ChannelID, msg)); err != nil {
		m.Logger.Warn("error logging message deletion", "error", err, "guild", e.GuildID)
	}
}

func memberCount(s *dg.Session, guildID string) int {
	if guild, err := s.State.Guild(guildID); err == nil {
		return guild.MemberCount
	}
	return 0
}

// logChannel resolves a guild's log channel, creating the category and
// channel on first use. Failed setups are cached too so a guild where
// the bot lacks channel permissions doesn't retry on every event.
func (m *Module) logChannel(s *dg.Session, guildID, name string) string {
	key := guildID + "/" + name

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.channels[key]; ok {
		return id
	}

	id, err := findOrCreateLogChannel(s, guildID, name)
	if err != nil {
		m.Logger.Warn("error setting up log channel", "error", err, "guild", guildID, "channel", name)
	}
	m.channels[key] = id
	return id
}

func findOrCreateLogChannel(s *dg.Session, guildID, name string) (string, error) {
	channels, err := s.GuildChannels(guildID)
	if err != nil {
		return "", errutil.With(err)
	}

	categoryID := ""
	for _, c := range channels {
		switch {
		case c.Type == dg.ChannelTypeGuildText && c.Name == name:
			return c.ID, nil
		case c.Type == dg.ChannelTypeGuildCategory && c.Name == categoryName:
			categoryID = c.ID
		}
	}

	if categoryID == "" {
		category, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
			Name: categoryName,
			Type: dg.ChannelTypeGuildCategory,
		})
		if err != nil {
			return "", errutil.With(err)
		}
		categoryID = category.ID
	}

	channel, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
		Name:     name,
		Type:     dg.ChannelTypeGuildText,
		ParentID: categoryID,
		PermissionOverwrites: []*dg.PermissionOverwrite{
			{
				ID:   guildID, // @everyone shares the guild's ID
				Type: dg.PermissionOverwriteTypeRole,
				Deny: dg.PermissionViewChannel,
			},
			{
				ID:    s.State.User.ID,
				Type:  dg.PermissionOverwriteTypeMember,
				Allow: dg.PermissionViewChannel | dg.PermissionSendMessages,
			},
		},
	})
	if err != nil {
		return "", errutil.With(err)
	}
	return channel.ID, nil
}

func memberJoinedEmbed(user *dg.User, memberCount int) *dg.MessageEmbed {
	created, _ := dg.SnowflakeTimestamp(user.ID)

	e := embed.Info("Member Joined",
		fmt.Sprintf("%s joined the server.", utils.FormatUserMention(user.ID)),
		embed.Field{Name: "User ID", Value: user.ID, Inline: true},
		embed.Field{Name: "Account Created", Value: utils.FormatTimestamp(created, utils.TimestampRelative), Inline: true},
		embed.Field{Name: "Member Count", Value: fmt.Sprintf("%d", memberCount), Inline: true},
	)
	e.Thumbnail = &dg.MessageEmbedThumbnail{URL: user.AvatarURL("")}
	return e
}

func memberLeftEmbed(user *dg.User, roles []string, memberCount int) *dg.MessageEmbed {
	roleList := "None"
	if len(roles) > 0 {
		mentions := make([]string, len(roles))
		for i, r := range roles {
			mentions[i] = "<@&" + r + ">"
		}
		roleList = strings.Join(mentions, " ")
	}

	e := embed.Warning("Member Left",
		fmt.Sprintf("%s left the server.", user.Username),
		embed.Field{Name: "User ID", Value: user.ID, Inline: true},
		embed.Field{Name: "Member Count", Value: fmt.Sprintf("%d", memberCount), Inline: true},
		embed.Field{Name: "Roles", Value: roleList},
	)
	e.Thumbnail = &dg.MessageEmbedThumbnail{URL: user.AvatarURL("")}
	return e
}

// messageDeletedEmbed handles both the cached and uncached case; the
// gateway only carries IDs, content comes from the session state when
// it held the message.
func messageDeletedEmbed(messageID, channelID string, msg *dg.Message) *dg.MessageEmbed {
	fields := []embed.Field{
		{Name: "Channel", Value: utils.FormatChannelMention(channelID), Inline: true},
	}
	footer := "Message ID: " + messageID

	if msg != nil {
		if msg.Author != nil {
			fields = append(fields, embed.Field{Name: "Author", Value: utils.FormatUserMention(msg.Author.ID), Inline: true})
			footer += " | User ID: " + msg.Author.ID
		}
		if content := truncate(msg.Content, maxLoggedContent); content != "" {
			fields = append(fields, embed.Field{Name: "Content", Value: content})
		}
		if len(msg.Attachments) > 0 {
			names := make([]string, len(msg.Attachments))
			for i, a := range msg.Attachments {
				names[i] = a.Filename
			}
			fields = append(fields, embed.Field{Name: "Attachments", Value: strings.Join(names, ", ")})
		}
		if n := len(msg.Embeds); n > 0 {
			fields = append(fields, embed.Field{Name: "Embeds", Value: fmt.Sprintf("%d", n), Inline: true})
		}
	} else {
		fields = append(fields, embed.Field{Name: "Content", Value: "Unknown (message was not cached)"})
	}

	e := embed.Warning("Message Deleted", "", fields...)
	e.Footer = &dg.MessageEmbedFooter{Text: footer}
	return e
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
