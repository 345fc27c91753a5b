// Package orders implements the order ticket flow: an admin posts the
// service menu, a member picks a service, fills the order form, and a
// private ticket channel is opened for them.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
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
	categoryName = "Orders"

	menuSelectID  = "order_service_select"
	orderModalID  = "order_modal:"
	closeButtonID = "order_close:"

	ticketCooldown = 2 * time.Minute
)

type service struct {
	Key         string
	Label       string
	Description string
}

var services = []service{
	{"standard", "Standard Ride", "Pickup and drop-off (limo & blackout tiers)."},
	{"getaway", "Getaway Driver", "Emergency pickup when evading police."},
	{"transit", "Transit Services", "Public transportation (bus services)."},
}

func serviceByKey(key string) (service, bool) {
	for _, s := range services {
		if s.Key == key {
			return s, true
		}
	}
	return service{}, false
}

type Module struct{}

func (Module) Name() string { return "orders" }

func (Module) Register(r *registry.Registry) error {
	if err := r.AddCommand(&menu{}); err != nil {
		return err
	}
	r.AddComponent(&menuSelect{})
	r.AddComponent(&closeButton{})
	r.AddModal(&orderForm{})
	return nil
}

// menu is /order-menu: posts the service dropdown. Admin only.
type menu struct{}

func (*menu) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "order-menu",
		Description: "Post the order dropdown menu (Admin only)",
	}
}

func (*menu) Checks() []handlers.Check {
	return []handlers.Check{
		guard.GuildOnly(),
		guard.RequirePermissions(dg.PermissionAdministrator),
	}
}

func (*menu) Handle(ctx context.Context, deps handlers.Deps) error {
	options := make([]dg.SelectMenuOption, 0, len(services))
	fields := make([]embed.Field, 0, len(services))
	for _, s := range services {
		options = append(options, dg.SelectMenuOption{
			Label:       s.Label,
			Value:       s.Key,
			Description: s.Description,
		})
		fields = append(fields, embed.Field{Name: s.Label, Value: s.Description})
	}

	e := embed.Sectioned("U-Drive Orders",
		"Choose a service to start",
		"Select an option below to open an order ticket.",
		fields...)

	return deps.Replier.Send(rp.Message{
		Embeds: []*dg.MessageEmbed{e},
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.SelectMenu{
					CustomID:    menuSelectID,
					Placeholder: "Select a service to start your order",
					Options:     options,
				},
			}},
		},
	})
}

// menuSelect opens the order form for the chosen service.
type menuSelect struct{}

func (*menuSelect) CustomID() string { return menuSelectID }

func (*menuSelect) Component(ctx context.Context, deps handlers.Deps) error {
	values := deps.Interaction.MessageComponentData().Values
	if len(values) == 0 {
		return dispatch.Fail(dispatch.KindBadArgument, "No service was selected.")
	}

	svc, ok := serviceByKey(values[0])
	if !ok {
		return dispatch.Failf(dispatch.KindBadArgument, "Unknown service `%s`.", values[0])
	}

	return deps.Replier.Modal(&dg.InteractionResponseData{
		CustomID: orderModalID + svc.Key,
		Title:    svc.Label + " Order Form",
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.TextInput{
					CustomID:    "username",
					Label:       "Roblox Username",
					Style:       dg.TextInputShort,
					Placeholder: "Enter your Roblox username",
					Required:    true,
					MaxLength:   100,
				},
			}},
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.TextInput{
					CustomID:    "location",
					Label:       "Location",
					Style:       dg.TextInputParagraph,
					Placeholder: "Where should we meet you?",
					Required:    true,
					MaxLength:   500,
				},
			}},
		},
	})
}

// orderForm turns a submitted order into a private ticket channel and a
// stored ticket row.
type orderForm struct{}

func (*orderForm) ModalID() string { return orderModalID }

func (f *orderForm) Modal(ctx context.Context, deps handlers.Deps) error {
	i := deps.Interaction
	user := utils.InvokingUser(i.Interaction)

	if i.GuildID == "" {
		return dispatch.Fail(dispatch.KindCheckFailed, "Orders can only be placed in a server.")
	}
	if deps.Store == nil {
		return dispatch.Fail(dispatch.KindCheckFailed, "The order system is not available right now.")
	}

	key := strings.TrimPrefix(i.ModalSubmitData().CustomID, orderModalID)
	svc, ok := serviceByKey(key)
	if !ok {
		return dispatch.Failf(dispatch.KindBadArgument, "Unknown service `%s`.", key)
	}

	if open, err := deps.Store.CountOpenTickets(ctx, i.GuildID, user.ID); err != nil {
		return errutil.With(err)
	} else if open > 0 {
		return dispatch.Fail(dispatch.KindCheckFailed,
			"You already have an open ticket. Please close it before opening another.")
	}

	if remaining, allowed := deps.Cooldowns.Take(ctx, "order-ticket", user.ID, ticketCooldown); !allowed {
		return &dispatch.Failure{
			Kind:    dispatch.KindCooldown,
			Message: "You just opened an order ticket.",
			Retry:   remaining,
		}
	}

	details := modalValues(i.ModalSubmitData())

	// Channel creation can exceed the 3s initial-response window.
	if err := deps.Replier.Defer(true); err != nil {
		return errutil.With(err)
	}

	ticketID := utils.GenerateID()
	channel, err := createTicketChannel(deps.Session, i.GuildID, user, svc, ticketID)
	if err != nil {
		return errutil.With(err)
	}

	ticket := db.Ticket{
		ID:        ticketID,
		GuildID:   i.GuildID,
		ChannelID: channel.ID,
		UserID:    user.ID,
		Service:   svc.Key,
		Details:   details,
		Status:    db.TicketOpen,
	}
	if err := deps.Store.CreateTicket(ctx, ticket); err != nil {
		deps.Logger.Error("error storing ticket", "error", err, "ticket", ticketID)
	}

	summary := embed.Sectioned("Order Ticket Created",
		user.Username,
		fmt.Sprintf("**Service:** %s\n**Roblox Username:** %s\n**Location:** %s",
			svc.Label, details["username"], details["location"]))

	if _, err := deps.Session.ChannelMessageSendComplex(channel.ID, &dg.MessageSend{
		Content: utils.FormatUserMention(user.ID),
		Embeds:  []*dg.MessageEmbed{summary},
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.Button{Label: "Close Ticket", Style: dg.DangerButton, CustomID: closeButtonID + ticketID},
			}},
		},
	}); err != nil {
		deps.Logger.Error("error posting ticket summary", "error", err, "channel", channel.ID)
	}

	confirmation := embed.Success("Order ticket created",
		fmt.Sprintf("Channel: %s\nA team member will assist you shortly.", utils.FormatChannelMention(channel.ID)))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{confirmation}, Ephemeral: true})
}

// closeButton closes a ticket from inside its channel.
type closeButton struct{}

func (*closeButton) CustomID() string { return closeButtonID }

func (*closeButton) Component(ctx context.Context, deps handlers.Deps) error {
	i := deps.Interaction

	if deps.Store == nil {
		return dispatch.Fail(dispatch.KindCheckFailed, "The order system is not available right now.")
	}

	if i.Member == nil || i.Member.Permissions&dg.PermissionManageChannels == 0 {
		return dispatch.Fail(dispatch.KindPermissionDenied, "Only staff can close order tickets.")
	}

	ticketID := strings.TrimPrefix(i.MessageComponentData().CustomID, closeButtonID)
	if err := deps.Store.CloseTicket(ctx, ticketID); err != nil {
		return errutil.With(err)
	}

	if err := deps.Replier.Send(rp.Message{
		Embeds: []*dg.MessageEmbed{embed.Info("Ticket Closed", "This ticket is now closed and the channel will be removed.")},
	}); err != nil {
		return errutil.With(err)
	}

	if _, err := deps.Session.ChannelDelete(i.ChannelID); err != nil {
		deps.Logger.Error("error deleting ticket channel", "error", err, "channel", i.ChannelID)
	}
	return nil
}

func createTicketChannel(s *dg.Session, guildID string, user *dg.User, svc service, ticketID string) (*dg.Channel, error) {
	category, err := ensureCategory(s, guildID)
	if err != nil {
		return nil, errutil.With(err)
	}

	name := fmt.Sprintf("order-%s-%s-%s",
		sanitizeChannelPart(user.Username), svc.Key, ticketID[len(ticketID)-4:])

	overwrites := []*dg.PermissionOverwrite{
		{
			ID:   guildID, // @everyone shares the guild's ID
			Type: dg.PermissionOverwriteTypeRole,
			Deny: dg.PermissionViewChannel,
		},
		{
			ID:    user.ID,
			Type:  dg.PermissionOverwriteTypeMember,
			Allow: dg.PermissionViewChannel | dg.PermissionSendMessages | dg.PermissionReadMessageHistory | dg.PermissionAttachFiles,
		},
		{
			ID:    s.State.User.ID,
			Type:  dg.PermissionOverwriteTypeMember,
			Allow: dg.PermissionViewChannel | dg.PermissionSendMessages | dg.PermissionReadMessageHistory,
		},
	}

	channel, err := s.GuildChannelCreateComplex(guildID, dg.GuildChannelCreateData{
		Name:                 name,
		Type:                 dg.ChannelTypeGuildText,
		ParentID:             category,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return nil, errutil.With(err)
	}
	return channel, nil
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

func sanitizeChannelPart(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}

func modalValues(data dg.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		ar, ok := row.(*dg.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if input, ok := c.(*dg.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}
