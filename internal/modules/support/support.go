// Package support runs the DM support desk: a member's direct message
// opens a private staff channel in the home guild, messages relay both
// ways, and closing archives a transcript before the channel is
// removed.
package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/guard"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

const (
	categoryName   = "Support Tickets"
	logChannelName = "ticket-logs"
	channelPrefix  = "support-"
	closeButtonID  = "support_close"
	serviceKey     = "support"

	historyPageSize = 100
	opTimeout       = 10 * time.Second
)

type Module struct {
	Conf   *cf.Config
	Store  *db.Store
	Logger *slog.Logger
}

func (*Module) Name() string { return "support" }

func (m *Module) Register(r *registry.Registry) error {
	if m.Store == nil {
		m.Logger.Warn("support desk disabled, no database configured")
		return nil
	}
	r.AddListener(m.onMessage)
	r.AddComponent(&closeButton{m})
	return r.AddCommand(&closeCommand{m})
}

// onMessage routes both halves of the relay: DMs from members into
// their ticket channel, staff replies in ticket channels back out as
// DMs.
func (m *Module) onMessage(s *dg.Session, msg *dg.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		m.handleDM(s, msg)
		return
	}
	m.handleTicketReply(s, msg)
}

func (m *Module) handleDM(s *dg.Session, msg *dg.MessageCreate) {
	guildID := m.Conf.SupportGuild()
	if guildID == "" {
		m.Logger.Warn("support DM dropped, no home guild configured", "user", msg.Author.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ticket, err := m.Store.GetOpenTicketByUser(ctx, guildID, msg.Author.ID, serviceKey)
	switch {
	case err == nil:
		if m.relayToChannel(s, ticket.ChannelID, msg) {
			return
		}
		// The channel is gone but the row is still open. Close it and
		// start over.
		if err := m.Store.CloseTicket(ctx, ticket.ID); err != nil {
			m.Logger.Error("error closing orphaned ticket", "error", err, "ticket", ticket.ID)
		}
	case !errors.Is(err, sql.ErrNoRows):
		m.Logger.Error("error looking up support ticket", "error", err, "user", msg.Author.ID)
		m.sendUnavailable(s, msg.Author.ID)
		return
	}

	if err := m.openTicket(ctx, s, guildID, msg); err != nil {
		m.Logger.Error("error opening support ticket", "error", err, "user", msg.Author.ID)
		m.sendUnavailable(s, msg.Author.ID)
	}
}

// relayToChannel forwards a member's DM into their ticket channel.
// Returns false when the channel no longer accepts messages.
func (m *Module) relayToChannel(s *dg.Session, channelID string, msg *dg.MessageCreate) bool {
	if _, err := s.ChannelMessageSendEmbed(channelID, userMessageEmbed(msg)); err != nil {
		m.Logger.Warn("error relaying DM to ticket channel", "error", err, "channel", channelID)
		return false
	}
	return true
}

func (m *Module) openTicket(ctx context.Context, s *dg.Session, guildID string, msg *dg.MessageCreate) error {
	staffRole := m.staffRole(ctx, guildID)

	ticketID := utils.GenerateID()
	channel, err := m.createTicketChannel(s, guildID, msg.Author, staffRole, ticketID)
	if err != nil {
		return errutil.With(err)
	}

	ticket := db.Ticket{
		ID:        ticketID,
		GuildID:   guildID,
		ChannelID: channel.ID,
		UserID:    msg.Author.ID,
		Service:   serviceKey,
		Details:   map[string]string{"username": msg.Author.Username},
		Status:    db.TicketOpen,
	}
	if err := m.Store.CreateTicket(ctx, ticket); err != nil {
		return errutil.With(err)
	}

	opened := embed.Sectioned("Support Ticket",
		msg.Author.Username,
		"Replies in this channel are relayed to the member's DMs.",
		embed.Field{Name: "Member", Value: utils.FormatUserMention(msg.Author.ID), Inline: true},
		embed.Field{Name: "User ID", Value: msg.Author.ID, Inline: true},
	)

	content := ""
	var allowed *dg.MessageAllowedMentions
	if staffRole != "" {
		content = fmt.Sprintf("<@&%s>", staffRole)
		allowed = &dg.MessageAllowedMentions{Roles: []string{staffRole}}
	}
	if _, err := s.ChannelMessageSendComplex(channel.ID, &dg.MessageSend{
		Content:         content,
		Embeds:          []*dg.MessageEmbed{opened},
		AllowedMentions: allowed,
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.Button{Label: "Close Ticket", Style: dg.DangerButton, CustomID: closeButtonID},
			}},
		},
	}); err != nil {
		m.Logger.Error("error posting ticket header", "error", err, "channel", channel.ID)
	}

	m.relayToChannel(s, channel.ID, msg)

	if dm, err := s.UserChannelCreate(msg.Author.ID); err == nil {
		confirmation := embed.Success("Support Ticket Opened",
			"Our team has received your message and will reply here.")
		if _, err := s.ChannelMessageSendEmbed(dm.ID, confirmation); err != nil {
			m.Logger.Warn("error confirming ticket to member", "error", err, "user", msg.Author.ID)
		}
	}

	m.Logger.Info("support ticket opened", "ticket", ticketID, "user", msg.Author.ID, "guild", guildID)
	return nil
}

// handleTicketReply relays a staff message written in a ticket channel
// to the member's DMs. The channel name prefix keeps ordinary guild
// chatter away from the database.
func (m *Module) handleTicketReply(s *dg.Session, msg *dg.MessageCreate) {
	channel, err := s.State.Channel(msg.ChannelID)
	if err != nil || !strings.HasPrefix(channel.Name, channelPrefix) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ticket, err := m.Store.GetTicketByChannel(ctx, msg.ChannelID)
	if err != nil || ticket.Service != serviceKey || ticket.Status != db.TicketOpen {
		return
	}

	dm, err := s.UserChannelCreate(ticket.UserID)
	if err != nil {
		m.Logger.Warn("error opening DM for ticket reply", "error", err, "user", ticket.UserID)
		return
	}
	if _, err := s.ChannelMessageSendEmbed(dm.ID, staffReplyEmbed(msg)); err != nil {
		failed := embed.Warning("Delivery Failed",
			"The member could not be reached by DM. They may have DMs disabled.")
		if _, err := s.ChannelMessageSendEmbed(msg.ChannelID, failed); err != nil {
			m.Logger.Warn("error reporting failed delivery", "error", err, "channel", msg.ChannelID)
		}
	}
}

func (m *Module) createTicketChannel(s *dg.Session, guildID string, user *dg.User, staffRole, ticketID string) (*dg.Channel, error) {
	category, err := ensureCategory(s, guildID)
	if err != nil {
		return nil, errutil.With(err)
	}

	overwrites := []*dg.PermissionOverwrite{
		{
			ID:   guildID, // @everyone shares the guild's ID
			Type: dg.PermissionOverwriteTypeRole,
			Deny: dg.PermissionViewChannel,
		},
		{
			ID:    s.State.User.ID,
			Type:  dg.PermissionOverwriteTypeMember,
			Allow: dg.PermissionViewChannel | dg.PermissionSendMessages | dg.PermissionReadMessageHistory | dg.PermissionAttachFiles,
		},
	}
	if staffRole != "" {
		overwrites = append(overwrites, &dg.PermissionOverwrite{
			ID:    staffRole,
			Type:  dg.PermissionOverwriteTypeRole,
			Allow: dg.PermissionViewChannel | dg.PermissionSendMessages | dg.PermissionReadMessageHistory,
		})
	}

	channel, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
		Name:                 ticketChannelName(user.Username, ticketID),
		Type:                 dg.ChannelTypeGuildText,
		ParentID:             category,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return nil, errutil.With(err)
	}
	return channel, nil
}

func ticketChannelName(username, ticketID string) string {
	name := strings.ToLower(strings.ReplaceAll(username, " ", "-"))
	if len(name) > 16 {
		name = name[:16]
	}
	return channelPrefix + name + "-" + ticketID[len(ticketID)-4:]
}

// staffRole resolves the staff role for a guild: the stored per-guild
// setting wins over the process-wide default.
func (m *Module) staffRole(ctx context.Context, guildID string) string {
	g, err := m.Store.GetGuild(ctx, guildID)
	if err == nil && g.Settings.StaffRoleID != "" {
		return g.Settings.StaffRoleID
	}
	return m.Conf.StaffRoleID
}

func (m *Module) sendUnavailable(s *dg.Session, userID string) {
	dm, err := s.UserChannelCreate(userID)
	if err != nil {
		return
	}
	e := embed.Error("Support Unavailable",
		"We couldn't reach the support desk right now. Please try again later.")
	if _, err := s.ChannelMessageSendEmbed(dm.ID, e); err != nil {
		m.Logger.Warn("error sending support unavailable notice", "error", err, "user", userID)
	}
}

// requireStaff gates closing to holders of the staff role.
// Administrators always pass.
func requireStaff(m *Module) handlers.Check {
	return func(ctx context.Context, deps handlers.Deps) error {
		member := deps.Interaction.Member
		if member == nil {
			return dispatch.Fail(dispatch.KindCheckFailed, "This only works inside a server.")
		}
		if member.Permissions&dg.PermissionAdministrator != 0 {
			return nil
		}

		role := m.staffRole(ctx, deps.Interaction.GuildID)
		if role == "" {
			return dispatch.Fail(dispatch.KindCheckFailed, "The support desk has no staff role configured.")
		}
		for _, r := range member.Roles {
			if r == role {
				return nil
			}
		}
		return dispatch.Fail(dispatch.KindPermissionDenied, "Only support staff can close tickets.")
	}
}

// closeCommand is /close: staff close the ticket whose channel they run
// it in.
type closeCommand struct {
	m *Module
}

func (*closeCommand) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "close",
		Description: "Close this support ticket (Staff only)",
	}
}

func (c *closeCommand) Checks() []handlers.Check {
	return []handlers.Check{
		guard.GuildOnly(),
		requireStaff(c.m),
	}
}

func (c *closeCommand) Handle(ctx context.Context, deps handlers.Deps) error {
	return c.m.closeFromInteraction(ctx, deps)
}

// closeButton is the Close Ticket button posted in the ticket header.
type closeButton struct {
	m *Module
}

func (*closeButton) CustomID() string { return closeButtonID }

func (b *closeButton) Component(ctx context.Context, deps handlers.Deps) error {
	if err := requireStaff(b.m)(ctx, deps); err != nil {
		return err
	}
	return b.m.closeFromInteraction(ctx, deps)
}

func (m *Module) closeFromInteraction(ctx context.Context, deps handlers.Deps) error {
	i := deps.Interaction

	ticket, err := m.Store.GetTicketByChannel(ctx, i.ChannelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dispatch.Fail(dispatch.KindCheckFailed, "This channel is not a support ticket.")
		}
		return errutil.With(err)
	}
	if ticket.Service != serviceKey || ticket.Status != db.TicketOpen {
		return dispatch.Fail(dispatch.KindCheckFailed, "This channel is not an open support ticket.")
	}

	// Transcript assembly pages through the channel history, which can
	// blow past the 3s initial-response window.
	if err := deps.Replier.Defer(true); err != nil {
		return errutil.With(err)
	}

	closer := utils.InvokingUser(i.Interaction)
	m.archiveAndDelete(ctx, deps.Session, ticket, closer)

	return deps.Replier.Send(rp.Message{
		Embeds:    []*dg.MessageEmbed{embed.Info("Ticket Closed", "The transcript has been archived and the channel will be removed.")},
		Ephemeral: true,
	})
}

// archiveAndDelete renders the transcript, delivers it to the member
// and the staff log channel, closes the row, and removes the channel.
// Best effort throughout; a failed delivery never blocks the close.
func (m *Module) archiveAndDelete(ctx context.Context, s *dg.Session, ticket *db.Ticket, closer *dg.User) {
	channelName := channelPrefix + "ticket"
	if ch, err := s.State.Channel(ticket.ChannelID); err == nil {
		channelName = ch.Name
	}

	history, err := fetchHistory(s, ticket.ChannelID)
	if err != nil {
		m.Logger.Warn("error fetching ticket history", "error", err, "ticket", ticket.ID)
	}
	transcript := renderTranscript(channelName, ticket.ID, history, time.Now().UTC())

	closed := embed.Info("Support Ticket Closed",
		fmt.Sprintf("Your ticket was closed by %s. The transcript is attached.", closer.Username))
	if dm, err := s.UserChannelCreate(ticket.UserID); err == nil {
		m.sendTranscript(s, dm.ID, channelName, transcript, closed)
	}

	logEmbed := embed.Info("Ticket Archived", "",
		embed.Field{Name: "Member", Value: utils.FormatUserMention(ticket.UserID), Inline: true},
		embed.Field{Name: "Closed By", Value: utils.FormatUserMention(closer.ID), Inline: true},
		embed.Field{Name: "Ticket", Value: ticket.ID, Inline: true},
	)
	if logID, err := m.ensureLogChannel(s, ticket.GuildID); err == nil {
		m.sendTranscript(s, logID, channelName, transcript, logEmbed)
	} else {
		m.Logger.Warn("error resolving ticket log channel", "error", err, "guild", ticket.GuildID)
	}

	if err := m.Store.CloseTicket(ctx, ticket.ID); err != nil {
		m.Logger.Error("error closing ticket row", "error", err, "ticket", ticket.ID)
	}
	if _, err := s.ChannelDelete(ticket.ChannelID); err != nil {
		m.Logger.Error("error deleting ticket channel", "error", err, "channel", ticket.ChannelID)
	}
	m.Logger.Info("support ticket closed", "ticket", ticket.ID, "closed_by", closer.ID)
}

func (m *Module) sendTranscript(s *dg.Session, channelID, channelName, transcript string, e *dg.MessageEmbed) {
	_, err := s.ChannelMessageSendComplex(channelID, &dg.MessageSend{
		Embeds: []*dg.MessageEmbed{e},
		Files: []*dg.File{{
			Name:        channelName + ".txt",
			ContentType: "text/plain",
			Reader:      strings.NewReader(transcript),
		}},
	})
	if err != nil {
		m.Logger.Warn("error delivering transcript", "error", err, "channel", channelID)
	}
}

// ensureLogChannel finds or creates the staff transcript channel under
// the support category.
func (m *Module) ensureLogChannel(s *dg.Session, guildID string) (string, error) {
	channels, err := s.GuildChannels(guildID)
	if err != nil {
		return "", errutil.With(err)
	}
	for _, c := range channels {
		if c.Type == dg.ChannelTypeGuildText && c.Name == logChannelName {
			return c.ID, nil
		}
	}

	category, err := ensureCategory(s, guildID)
	if err != nil {
		return "", errutil.With(err)
	}
	channel, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
		Name:     logChannelName,
		Type:     dg.ChannelTypeGuildText,
		ParentID: category,
		PermissionOverwrites: []*dg.PermissionOverwrite{
			{
				ID:   guildID,
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

func ensureCategory(s *dg.Session, guildID string) (string, error) {
	channels, err := s.GuildChannels(guildID)
	if err != nil {
		return "", errutil.With(err)
	}
	for _, c := range channels {
		if c.Type == dg.ChannelTypeGuildCategory && c.Name == categoryName {
			return c.ID, nil
		}
	}

	category, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
		Name: categoryName,
		Type: dg.ChannelTypeGuildCategory,
	})
	if err != nil {
		return "", errutil.With(err)
	}
	return category.ID, nil
}

// userMessageEmbed wraps a member's DM for display in the ticket
// channel.
func userMessageEmbed(msg *dg.MessageCreate) *dg.MessageEmbed {
	e := embed.Info("User Message", messageBody(msg.Message))
	e.Author = &dg.MessageEmbedAuthor{
		Name:    msg.Author.Username,
		IconURL: msg.Author.AvatarURL(""),
	}
	e.Footer = &dg.MessageEmbedFooter{Text: "User ID: " + msg.Author.ID}
	return e
}

// staffReplyEmbed wraps a staff channel message for delivery to the
// member's DMs.
func staffReplyEmbed(msg *dg.MessageCreate) *dg.MessageEmbed {
	e := embed.Success("Support Team Reply", messageBody(msg.Message))
	e.Author = &dg.MessageEmbedAuthor{
		Name:    msg.Author.Username,
		IconURL: msg.Author.AvatarURL(""),
	}
	return e
}

func messageBody(msg *dg.Message) string {
	body := msg.Content
	for _, a := range msg.Attachments {
		if body != "" {
			body += "\n"
		}
		body += "[attachment] " + a.URL
	}
	if body == "" {
		body = "(no content)"
	}
	return body
}

// fetchHistory pages through a channel oldest-first.
func fetchHistory(s *dg.Session, channelID string) ([]*dg.Message, error) {
	var all []*dg.Message
	before := ""
	for {
		page, err := s.ChannelMessages(channelID, historyPageSize, before, "", "")
		if err != nil {
			return all, errutil.With(err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		before = page[len(page)-1].ID
		if len(page) < historyPageSize {
			break
		}
	}

	// The API returns newest-first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// renderTranscript produces the plain-text archive of a ticket channel.
func renderTranscript(channelName, ticketID string, history []*dg.Message, closedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript of %s (ticket %s)\n", channelName, ticketID)
	fmt.Fprintf(&b, "Closed at %s\n\n", closedAt.Format(time.RFC3339))

	for _, msg := range history {
		author := "unknown"
		if msg.Author != nil {
			author = msg.Author.Username
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.Timestamp.UTC().Format("2006-01-02 15:04:05"), author, msg.Content)
		for _, a := range msg.Attachments {
			fmt.Fprintf(&b, "    [attachment] %s\n", a.URL)
		}
		for _, e := range msg.Embeds {
			if e.Title != "" || e.Description != "" {
				fmt.Fprintf(&b, "    [embed] %s %s\n", e.Title, strings.ReplaceAll(e.Description, "\n", " "))
			}
		}
	}

	if len(history) == 0 {
		b.WriteString("(no messages)\n")
	}
	return b.String()
}
