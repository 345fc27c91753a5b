// Package demo showcases every interaction surface the dispatch layer
// routes: buttons, select menus, modals, autocomplete, and context
// menus. Handy as a template when writing real modules.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

const (
	buttonPrimaryID = "demo_button_primary"
	buttonDangerID  = "demo_button_danger"
	selectID        = "demo_select"
	modalID         = "demo_modal"
)

var autocompleteOptions = []string{"Option 1", "Option 2", "Option 3", "Option 4", "Option 5"}

type Module struct{}

func (Module) Name() string { return "demo" }

func (Module) Register(r *registry.Registry) error {
	for _, c := range []handlers.Command{
		&panel{},
		&modalCommand{},
		&autocompleteDemo{},
		&messageMenu{},
		&userMenu{},
	} {
		if err := r.AddCommand(c); err != nil {
			return err
		}
	}

	r.AddComponent(&buttons{})
	r.AddComponent(&picker{})
	r.AddModal(&form{})

	return r.AddPrefix(&panelPrefix{})
}

func panelEmbed() *dg.MessageEmbed {
	return embed.Info("Demo UI Components",
		"Click the buttons or select an option from the dropdown menu below!")
}

func panelComponents() []dg.MessageComponent {
	return []dg.MessageComponent{
		dg.ActionsRow{Components: []dg.MessageComponent{
			dg.Button{Label: "Click Me!", Style: dg.PrimaryButton, CustomID: buttonPrimaryID},
			dg.Button{Label: "Danger!", Style: dg.DangerButton, CustomID: buttonDangerID},
			dg.Button{Label: "Disabled", Style: dg.SecondaryButton, CustomID: "demo_button_disabled", Disabled: true},
		}},
		dg.ActionsRow{Components: []dg.MessageComponent{
			dg.SelectMenu{
				CustomID:    selectID,
				Placeholder: "Choose an option...",
				Options: []dg.SelectMenuOption{
					{Label: "Option 1", Value: "1", Description: "First option"},
					{Label: "Option 2", Value: "2", Description: "Second option"},
					{Label: "Option 3", Value: "3", Description: "Third option"},
				},
			},
		}},
	}
}

// panel is /demo: an embed with buttons and a select menu.
type panel struct{}

func (*panel) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "demo",
		Description: "Demonstrate buttons and select menus",
	}
}

func (*panel) Handle(ctx context.Context, deps handlers.Deps) error {
	return deps.Replier.Send(rp.Message{
		Embeds:     []*dg.MessageEmbed{panelEmbed()},
		Components: panelComponents(),
	})
}

type panelPrefix struct{}

func (*panelPrefix) Name() string      { return "demo" }
func (*panelPrefix) Aliases() []string { return []string{"d"} }
func (*panelPrefix) Usage() string     { return "demo" }

func (*panelPrefix) Handle(ctx context.Context, deps handlers.PrefixDeps) error {
	_, err := deps.Session.ChannelMessageSendComplex(deps.Message.ChannelID, &dg.MessageSend{
		Embeds:     []*dg.MessageEmbed{panelEmbed()},
		Components: panelComponents(),
	})
	return err
}

// buttons answers the demo panel's button presses.
type buttons struct{}

func (*buttons) CustomID() string { return "demo_button_" }

func (*buttons) Component(ctx context.Context, deps handlers.Deps) error {
	var e *dg.MessageEmbed
	switch deps.Interaction.MessageComponentData().CustomID {
	case buttonPrimaryID:
		e = embed.Success("Button Clicked!", "You clicked the primary button!")
	case buttonDangerID:
		e = embed.Error("Danger!", "You clicked the danger button!")
	default:
		e = embed.Warning("Unknown Button", "This button has no handler.")
	}
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
}

// picker answers the demo panel's select menu.
type picker struct{}

func (*picker) CustomID() string { return selectID }

func (*picker) Component(ctx context.Context, deps handlers.Deps) error {
	values := deps.Interaction.MessageComponentData().Values
	if len(values) == 0 {
		return deps.Replier.Send(rp.Message{
			Embeds:    []*dg.MessageEmbed{embed.Warning("Nothing Selected", "Pick an option from the menu.")},
			Ephemeral: true,
		})
	}

	e := embed.Info("Selection Made!", fmt.Sprintf("You selected: **Option %s**", values[0]))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
}

// modalCommand is /modal: opens the demo form.
type modalCommand struct{}

func (*modalCommand) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "modal",
		Description: "Demonstrate a modal form",
	}
}

func (*modalCommand) Handle(ctx context.Context, deps handlers.Deps) error {
	return deps.Replier.Modal(&dg.InteractionResponseData{
		CustomID: modalID,
		Title:    "Demo Form",
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.TextInput{
					CustomID:    "name",
					Label:       "Your Name",
					Style:       dg.TextInputShort,
					Placeholder: "Enter your name here...",
					Required:    true,
					MaxLength:   100,
				},
			}},
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.TextInput{
					CustomID:    "message",
					Label:       "Your Message",
					Style:       dg.TextInputParagraph,
					Placeholder: "Enter a message...",
					Required:    false,
					MaxLength:   500,
				},
			}},
		},
	})
}

// form receives the demo modal's submission.
type form struct{}

func (*form) ModalID() string { return modalID }

func (*form) Modal(ctx context.Context, deps handlers.Deps) error {
	values := modalValues(deps.Interaction.ModalSubmitData())

	message := values["message"]
	if message == "" {
		message = "None"
	}

	e := embed.Success("Form Submitted!",
		fmt.Sprintf("**Name:** %s\n**Message:** %s", values["name"], message))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
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

// autocompleteDemo is /autocomplete-demo with a typed option backed by
// an autocomplete provider.
type autocompleteDemo struct{}

func (*autocompleteDemo) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "autocomplete-demo",
		Description: "Demonstrate autocomplete",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:         dg.ApplicationCommandOptionString,
				Name:         "option",
				Description:  "Pick an option",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

func (*autocompleteDemo) Handle(ctx context.Context, deps handlers.Deps) error {
	opt, ok := deps.Options["option"]
	if !ok {
		return dispatch.Fail(dispatch.KindMissingArgument, "You're missing the `option` argument.")
	}

	e := embed.Success("Autocomplete Selected!", fmt.Sprintf("You selected: **%s**", opt.StringValue()))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}})
}

func (*autocompleteDemo) Autocomplete(ctx context.Context, deps handlers.Deps) ([]*dg.ApplicationCommandOptionChoice, error) {
	var current string
	if opt, ok := deps.Options["option"]; ok {
		current = strings.ToLower(opt.StringValue())
	}

	var choices []*dg.ApplicationCommandOptionChoice
	for _, opt := range autocompleteOptions {
		if current == "" || strings.Contains(strings.ToLower(opt), current) {
			choices = append(choices, &dg.ApplicationCommandOptionChoice{Name: opt, Value: opt})
		}
	}
	if len(choices) > 25 {
		choices = choices[:25]
	}
	return choices, nil
}

func (*autocompleteDemo) Cooldown() time.Duration { return 3 * time.Second }

// messageMenu is a message context menu entry.
type messageMenu struct{}

func (*messageMenu) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name: "Message Info",
		Type: dg.MessageApplicationCommand,
	}
}

func (*messageMenu) Handle(ctx context.Context, deps handlers.Deps) error {
	data := deps.Interaction.ApplicationCommandData()
	msg, ok := data.Resolved.Messages[data.TargetID]
	if !ok {
		return fmt.Errorf("target message %s not resolved", data.TargetID)
	}

	content := msg.Content
	if len(content) > 100 {
		content = content[:100] + "..."
	}

	e := embed.Info("Message Info",
		fmt.Sprintf("Message from %s\nContent: %s", utils.FormatUserMention(msg.Author.ID), content))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
}

// userMenu is a user context menu entry.
type userMenu struct{}

func (*userMenu) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name: "User Info",
		Type: dg.UserApplicationCommand,
	}
}

func (*userMenu) Handle(ctx context.Context, deps handlers.Deps) error {
	data := deps.Interaction.ApplicationCommandData()
	user, ok := data.Resolved.Users[data.TargetID]
	if !ok {
		return fmt.Errorf("target user %s not resolved", data.TargetID)
	}

	created, _ := dg.SnowflakeTimestamp(user.ID)
	e := embed.Info(fmt.Sprintf("User Info: %s", user.Username),
		fmt.Sprintf("**ID:** %s\n**Created:** %s\n**Bot:** %t",
			user.ID, utils.FormatTimestamp(created, utils.TimestampDate), user.Bot))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}, Ephemeral: true})
}
