package utils

import (
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
)

type TimestampType string

const (
	TimestampShort    TimestampType = "t" // e.g., 16:20
	TimestampLong     TimestampType = "T" // e.g., 16:20:30
	TimestampDate     TimestampType = "d" // e.g., 20/04/2021
	TimestampRelative TimestampType = "R" // e.g., 2 months ago
)

func FormatTimestamp(t time.Time, style TimestampType) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

func FormatUserMention(id string) string {
	return fmt.Sprintf("<@%s>", id)
}

func FormatChannelMention(id string) string {
	return fmt.Sprintf("<#%s>", id)
}

// FormatDuration renders a duration in plain words for user-facing
// cooldown and uptime messages.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(int(days), "day"))
	}
	if h > 0 {
		parts = append(parts, plural(int(h), "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(int(m), "minute"))
	}
	if s > 0 && days == 0 && h == 0 {
		parts = append(parts, plural(int(s), "second"))
	}

	switch len(parts) {
	case 0:
		return "moments"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatInteraction renders a slash invocation back into its typed-out
// form for log lines, e.g. "/order-menu service:transit".
func FormatInteraction(i *dg.InteractionCreate) string {
	if i.Type != dg.InteractionApplicationCommand {
		return ""
	}

	data := i.ApplicationCommandData()
	parts := []string{"/" + data.Name}
	for _, opt := range data.Options {
		parts = append(parts, formatCommandOption(opt))
	}

	return strings.Join(parts, " ")
}

func formatCommandOption(opt *dg.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case dg.ApplicationCommandOptionSubCommand, dg.ApplicationCommandOptionSubCommandGroup:
		subParts := []string{opt.Name}
		for _, subOpt := range opt.Options {
			subParts = append(subParts, formatCommandOption(subOpt))
		}
		return strings.Join(subParts, " ")
	default:
		return fmt.Sprintf("%s:%v", opt.Name, opt.Value)
	}
}
