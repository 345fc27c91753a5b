// Package embed builds the brand-aligned message embeds every handler
// replies with. All builders are pure: same inputs, same payload.
package embed

import (
	dg "github.com/bwmarrin/discordgo"
)

// U-Drive brand palette.
const (
	ColorPrimary = 0xF4F6FB
	ColorAccent  = 0x3FA9F5
	ColorWarning = 0xFFA500
	ColorDanger  = 0xFF0000
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

func Brand(title, description string, color int, fields ...Field) *dg.MessageEmbed {
	e := &dg.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}
	for _, f := range fields {
		e.Fields = append(e.Fields, &dg.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return e
}

func Success(title, description string, fields ...Field) *dg.MessageEmbed {
	return Brand(title, description, ColorPrimary, fields...)
}

func Info(title, description string, fields ...Field) *dg.MessageEmbed {
	return Brand(title, description, ColorAccent, fields...)
}

func Warning(title, description string, fields ...Field) *dg.MessageEmbed {
	return Brand(title, description, ColorWarning, fields...)
}

func Error(title, description string, fields ...Field) *dg.MessageEmbed {
	return Brand(title, description, ColorDanger, fields...)
}

// Sectioned lays out title -> subtitle -> action prompt -> fields, the
// shape used for menus and ticket summaries.
func Sectioned(title, subtitle, action string, fields ...Field) *dg.MessageEmbed {
	description := ""
	if subtitle != "" {
		description = "**" + subtitle + "**"
	}
	if action != "" {
		if description != "" {
			description += "\n"
		}
		description += action
	}
	return Brand(title, description, ColorAccent, fields...)
}
