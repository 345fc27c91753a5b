package utils

import (
	"testing"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "1 second"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2 * time.Hour, "2 hours"},
		{2*time.Hour + 5*time.Minute, "2 hours and 5 minutes"},
		{25 * time.Hour, "1 day and 1 hour"},
		{49*time.Hour + 30*time.Minute, "2 days, 1 hour, and 30 minutes"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.in), "input %s", c.in)
	}
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:R>", FormatTimestamp(at, TimestampRelative))
	assert.Equal(t, "<t:1700000000:d>", FormatTimestamp(at, TimestampDate))
}

func TestFormatMentions(t *testing.T) {
	assert.Equal(t, "<@42>", FormatUserMention("42"))
	assert.Equal(t, "<#99>", FormatChannelMention("99"))
}

func commandInteraction(name string, opts ...*dg.ApplicationCommandInteractionDataOption) *dg.InteractionCreate {
	return &dg.InteractionCreate{Interaction: &dg.Interaction{
		Type: dg.InteractionApplicationCommand,
		Data: dg.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func TestMapOptions(t *testing.T) {
	i := commandInteraction("order-menu",
		&dg.ApplicationCommandInteractionDataOption{Name: "service", Type: dg.ApplicationCommandOptionString, Value: "transit"},
		&dg.ApplicationCommandInteractionDataOption{Name: "count", Type: dg.ApplicationCommandOptionInteger, Value: float64(2)},
	)

	om := MapOptions(i)
	require.Len(t, om, 2)
	assert.Equal(t, "transit", om["service"].Value)
	assert.Equal(t, float64(2), om["count"].Value)
}

func TestFormatInteraction(t *testing.T) {
	i := commandInteraction("order-menu",
		&dg.ApplicationCommandInteractionDataOption{Name: "service", Type: dg.ApplicationCommandOptionString, Value: "transit"},
	)
	assert.Equal(t, "/order-menu service:transit", FormatInteraction(i))

	bare := commandInteraction("ping")
	assert.Equal(t, "/ping", FormatInteraction(bare))
}

func TestInvokingUser(t *testing.T) {
	member := &dg.Interaction{Member: &dg.Member{User: &dg.User{ID: "m1"}}}
	assert.Equal(t, "m1", InvokingUser(member).ID)

	dm := &dg.Interaction{User: &dg.User{ID: "d1"}}
	assert.Equal(t, "d1", InvokingUser(dm).ID)
}

func TestGenerateIDUnique(t *testing.T) {
	assert.NotEqual(t, GenerateID(), GenerateID())
	assert.Len(t, GenerateID(), 20)
}
