package settings

import (
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
)

func kindOf(t *testing.T, err error) dispatch.Kind {
	t.Helper()
	f := dispatch.Classify(err)
	return f.Kind
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, validatePrefix("!"))
	assert.NoError(t, validatePrefix("??"))
	assert.NoError(t, validatePrefix("bot."))

	assert.Equal(t, dispatch.KindMissingArgument, kindOf(t, validatePrefix("")))
	assert.Equal(t, dispatch.KindBadArgument, kindOf(t, validatePrefix("toolong")))
	assert.Equal(t, dispatch.KindBadArgument, kindOf(t, validatePrefix("! ")))
}

func TestSubcommandRouting(t *testing.T) {
	options := map[string]*dg.ApplicationCommandInteractionDataOption{
		"prefix": {
			Name: "prefix",
			Type: dg.ApplicationCommandOptionSubCommand,
			Options: []*dg.ApplicationCommandInteractionDataOption{
				{Name: "value", Type: dg.ApplicationCommandOptionString, Value: "?"},
			},
		},
	}

	name, opt := subcommand(options)
	assert.Equal(t, "prefix", name)
	require.NotNil(t, opt)

	value, ok := subOption(opt, "value")
	require.True(t, ok)
	assert.Equal(t, "?", value.StringValue())

	_, ok = subOption(opt, "missing")
	assert.False(t, ok)
}

func TestSubcommandNoneInvoked(t *testing.T) {
	name, opt := subcommand(nil)
	assert.Empty(t, name)
	assert.Nil(t, opt)
}
