package dispatch

import (
	dg "github.com/bwmarrin/discordgo"
	"github.com/udrive-hq/chauffeur/internal/embed"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

// embedFor maps a classified failure to its user-facing envelope. The
// cause never appears here; it is logged only.
func embedFor(f *Failure) *dg.MessageEmbed {
	switch f.Kind {
	case KindUnknownCommand:
		return embed.Warning("Command Not Found", f.Message)
	case KindMissingArgument:
		return embed.Warning("Missing Argument", f.Message)
	case KindBadArgument:
		return embed.Warning("Invalid Input", f.Message+"\n\nDouble-check your input and try again.")
	case KindPermissionDenied:
		return embed.Error("Permission Denied", f.Message+"\n\nIf this doesn't seem right, let an admin know.")
	case KindCooldown:
		msg := f.Message
		if f.Retry > 0 {
			msg += " Try again in " + utils.FormatDuration(f.Retry) + "."
		}
		return embed.Warning("Command on Cooldown", msg)
	case KindCheckFailed:
		return embed.Warning("Check Failed", f.Message)
	default:
		return embed.Error("An Error Occurred", f.Message)
	}
}

// ReportInteraction is the funnel for failures on the interaction path.
// The replier picks the primary response if it is still available and a
// follow-up otherwise, so the platform's one-primary rule holds no
// matter how far the handler got.
func (d *Dispatcher) ReportInteraction(r *rp.Replier, guildID, command string, user *dg.User, err error) {
	f := Classify(err)

	userID, username := "", ""
	if user != nil {
		userID, username = user.ID, user.Username
	}

	d.l.Error("command failed",
		"kind", f.Kind.String(),
		"command", command,
		"guild", guildID,
		"user", username,
		"user_id", userID,
		"cause", f.Cause,
		"message", f.Message,
	)
	d.audit(guildID, userID, command, "interaction", f.Kind.String())

	if sendErr := r.Send(rp.Message{
		Embeds:    []*dg.MessageEmbed{embedFor(f)},
		Ephemeral: true,
	}); sendErr != nil {
		d.l.Error("failed to deliver failure notice", "command", command, "error", sendErr)
	}
}

// ReportMessage is the funnel for failures on the prefix path.
func (d *Dispatcher) ReportMessage(s MessageSender, guildID, channelID, command string, user *dg.User, err error) {
	f := Classify(err)

	userID, username := "", ""
	if user != nil {
		userID, username = user.ID, user.Username
	}

	d.l.Error("command failed",
		"kind", f.Kind.String(),
		"command", command,
		"guild", guildID,
		"user", username,
		"user_id", userID,
		"cause", f.Cause,
		"message", f.Message,
	)
	d.audit(guildID, userID, command, "prefix", f.Kind.String())

	if _, sendErr := s.ChannelMessageSendEmbed(channelID, embedFor(f)); sendErr != nil {
		d.l.Error("failed to deliver failure notice", "command", command, "error", sendErr)
	}
}
