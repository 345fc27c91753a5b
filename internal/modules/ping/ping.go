// Package ping is the smallest possible module: a latency check on both
// command surfaces.
package ping

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/udrive-hq/chauffeur/internal/embed"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
)

type Module struct{}

func (Module) Name() string { return "ping" }

func (Module) Register(r *registry.Registry) error {
	if err := r.AddCommand(&slash{}); err != nil {
		return err
	}
	return r.AddPrefix(&prefix{})
}

type slash struct{}

func (*slash) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "ping",
		Description: "Check the bot's latency",
	}
}

func (*slash) Handle(ctx context.Context, deps handlers.Deps) error {
	e := embed.Info("Pong!", fmt.Sprintf("Bot latency: **%dms**", deps.Session.HeartbeatLatency().Milliseconds()))
	return deps.Replier.Send(rp.Message{Embeds: []*dg.MessageEmbed{e}})
}

type prefix struct{}

func (*prefix) Name() string      { return "ping" }
func (*prefix) Aliases() []string { return []string{"p"} }
func (*prefix) Usage() string     { return "ping" }

func (*prefix) Handle(ctx context.Context, deps handlers.PrefixDeps) error {
	e := embed.Info("Pong!", fmt.Sprintf("Bot latency: **%dms**", deps.Session.HeartbeatLatency().Milliseconds()))
	_, err := deps.Session.ChannelMessageSendEmbed(deps.Message.ChannelID, e)
	return err
}
