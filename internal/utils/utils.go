package utils

import (
	dg "github.com/bwmarrin/discordgo"
	"github.com/rs/xid"
)

func GenerateID() string {
	return xid.New().String()
}

func MapOptions(i *dg.InteractionCreate) map[string]*dg.ApplicationCommandInteractionDataOption {
	os := i.ApplicationCommandData().Options
	om := make(map[string]*dg.ApplicationCommandInteractionDataOption, len(os))
	for _, opt := range os {
		om[opt.Name] = opt
	}
	return om
}

// InvokingUser resolves the user behind an interaction, which lives on
// Member in guilds and on User in DMs.
func InvokingUser(i *dg.Interaction) *dg.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
