package registry

import (
	dg "github.com/bwmarrin/discordgo"
)

const (
	maxCommandNameLength        = 32
	maxCommandDescriptionLength = 100
	maxOptionsPerCommand        = 25
	maxChoicesPerOption         = 25
	maxOptionNameLength         = 32
	maxOptionDescLength         = 100
	maxChoiceNameLength         = 100
	maxChoiceValueLength        = 100
)

type clampResult struct {
	Command     *dg.ApplicationCommand
	WasModified bool
	Errors      []string
}

// clampDescriptor trims a descriptor to Discord's documented limits so
// a single oversized field doesn't reject the whole bulk overwrite.
func clampDescriptor(cmd *dg.ApplicationCommand) clampResult {
	result := clampResult{Command: cmd}

	if len(cmd.Name) > maxCommandNameLength {
		result.Command.Name = cmd.Name[:maxCommandNameLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "command name was truncated")
	}

	if len(cmd.Description) > maxCommandDescriptionLength {
		result.Command.Description = cmd.Description[:maxCommandDescriptionLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "command description was truncated")
	}

	if len(cmd.Options) > maxOptionsPerCommand {
		result.Command.Options = cmd.Options[:maxOptionsPerCommand]
		result.WasModified = true
		result.Errors = append(result.Errors, "excess options were removed")
	}

	for i, opt := range result.Command.Options {
		if len(opt.Name) > maxOptionNameLength {
			result.Command.Options[i].Name = opt.Name[:maxOptionNameLength]
			result.WasModified = true
			result.Errors = append(result.Errors, "option name was truncated")
		}

		if len(opt.Description) > maxOptionDescLength {
			result.Command.Options[i].Description = opt.Description[:maxOptionDescLength]
			result.WasModified = true
			result.Errors = append(result.Errors, "option description was truncated")
		}

		if len(opt.Choices) > maxChoicesPerOption {
			result.Command.Options[i].Choices = opt.Choices[:maxChoicesPerOption]
			result.WasModified = true
			result.Errors = append(result.Errors, "excess choices were removed")
		}

		for j, choice := range opt.Choices {
			if len(choice.Name) > maxChoiceNameLength {
				result.Command.Options[i].Choices[j].Name = choice.Name[:maxChoiceNameLength]
				result.WasModified = true
				result.Errors = append(result.Errors, "choice name was truncated")
			}

			if strVal, ok := choice.Value.(string); ok {
				if len(strVal) > maxChoiceValueLength {
					result.Command.Options[i].Choices[j].Value = strVal[:maxChoiceValueLength]
					result.WasModified = true
					result.Errors = append(result.Errors, "choice value was truncated")
				}
			}
		}
	}

	return result
}
