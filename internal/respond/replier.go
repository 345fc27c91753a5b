// Package respond wraps discordgo's interaction response surface. The
// platform allows exactly one primary response per interaction; a
// Replier tracks whether it has been spent and picks the primary or
// follow-up path accordingly.
package respond

import (
	"errors"
	"log/slog"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
)

// ErrAlreadyAcked is returned when a primary-only operation runs after
// the primary response was spent.
var ErrAlreadyAcked = errors.New("interaction already acknowledged")

// Session is the slice of *discordgo.Session a Replier needs.
type Session interface {
	InteractionRespond(i *dg.Interaction, r *dg.InteractionResponse, opts ...dg.RequestOption) error
	FollowupMessageCreate(i *dg.Interaction, wait bool, p *dg.WebhookParams, opts ...dg.RequestOption) (*dg.Message, error)
}

type Message struct {
	Content    string
	Embeds     []*dg.MessageEmbed
	Components []dg.MessageComponent
	Files      []*dg.File
	Ephemeral  bool
}

// Replier is scoped to a single interaction and is safe for concurrent
// use within it.
type Replier struct {
	s Session
	l *slog.Logger
	i *dg.Interaction

	mu    sync.Mutex
	acked bool
}

func New(s Session, l *slog.Logger, i *dg.Interaction) *Replier {
	return &Replier{s: s, l: l, i: i}
}

// Acked reports whether the primary response has been spent.
func (r *Replier) Acked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acked
}

// Defer acknowledges the interaction with a deferred response, spending
// the primary path. Subsequent sends go out as follow-ups.
func (r *Replier) Defer(ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acked {
		return ErrAlreadyAcked
	}

	data := &dg.InteractionResponseData{}
	if ephemeral {
		data.Flags = dg.MessageFlagsEphemeral
	}
	if err := r.s.InteractionRespond(r.i, &dg.InteractionResponse{
		Type: dg.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}); err != nil {
		return errutil.With(err)
	}

	r.acked = true
	return nil
}

// Send delivers a message through the primary response if it is still
// available, otherwise through a follow-up.
func (r *Replier) Send(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acked {
		data := &dg.InteractionResponseData{
			Content:    m.Content,
			Embeds:     m.Embeds,
			Components: m.Components,
			Files:      m.Files,
		}
		if m.Ephemeral {
			data.Flags = dg.MessageFlagsEphemeral
		}
		if err := r.s.InteractionRespond(r.i, &dg.InteractionResponse{
			Type: dg.InteractionResponseChannelMessageWithSource,
			Data: data,
		}); err != nil {
			return errutil.With(err)
		}
		r.acked = true
		return nil
	}

	params := &dg.WebhookParams{
		Content:    m.Content,
		Embeds:     m.Embeds,
		Components: m.Components,
		Files:      m.Files,
	}
	if m.Ephemeral {
		params.Flags = dg.MessageFlagsEphemeral
	}
	if _, err := r.s.FollowupMessageCreate(r.i, true, params); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Modal opens a modal form. Modals are only valid as a primary response.
func (r *Replier) Modal(data *dg.InteractionResponseData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acked {
		return ErrAlreadyAcked
	}
	if err := r.s.InteractionRespond(r.i, &dg.InteractionResponse{
		Type: dg.InteractionResponseModal,
		Data: data,
	}); err != nil {
		return errutil.With(err)
	}
	r.acked = true
	return nil
}

// Choices answers an autocomplete interaction.
func (r *Replier) Choices(choices []*dg.ApplicationCommandOptionChoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acked {
		return ErrAlreadyAcked
	}
	if err := r.s.InteractionRespond(r.i, &dg.InteractionResponse{
		Type: dg.InteractionApplicationCommandAutocompleteResult,
		Data: &dg.InteractionResponseData{Choices: choices},
	}); err != nil {
		return errutil.With(err)
	}
	r.acked = true
	return nil
}
