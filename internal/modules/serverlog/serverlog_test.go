package serverlog

import (
	"strings"
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldValue(e *dg.MessageEmbed, name string) string {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func TestMemberJoinedEmbed(t *testing.T) {
	e := memberJoinedEmbed(&dg.User{ID: "81384788765712384", Username: "alice"}, 42)

	assert.Equal(t, "Member Joined", e.Title)
	assert.Contains(t, e.Description, "<@81384788765712384>")
	assert.Equal(t, "81384788765712384", fieldValue(e, "User ID"))
	assert.Equal(t, "42", fieldValue(e, "Member Count"))
	assert.Contains(t, fieldValue(e, "Account Created"), "<t:")
}

func TestMemberLeftEmbed(t *testing.T) {
	e := memberLeftEmbed(&dg.User{ID: "u1", Username: "alice"}, []string{"r1", "r2"}, 41)

	assert.Equal(t, "Member Left", e.Title)
	assert.Contains(t, e.Description, "alice")
	assert.Equal(t, "<@&r1> <@&r2>", fieldValue(e, "Roles"))
	assert.Equal(t, "41", fieldValue(e, "Member Count"))
}

func TestMemberLeftEmbedNoRoles(t *testing.T) {
	e := memberLeftEmbed(&dg.User{ID: "u1", Username: "alice"}, nil, 41)
	assert.Equal(t, "None", fieldValue(e, "Roles"))
}

func TestMessageDeletedEmbedCached(t *testing.T) {
	msg := &dg.Message{
		Author:      &dg.User{ID: "u1", Username: "alice"},
		Content:     "secret plans",
		Attachments: []*dg.MessageAttachment{{Filename: "plans.pdf"}},
		Embeds:      []*dg.MessageEmbed{{Title: "x"}},
	}

	e := messageDeletedEmbed("m1", "ch1", msg)

	assert.Equal(t, "Message Deleted", e.Title)
	assert.Equal(t, "<#ch1>", fieldValue(e, "Channel"))
	assert.Equal(t, "<@u1>", fieldValue(e, "Author"))
	assert.Equal(t, "secret plans", fieldValue(e, "Content"))
	assert.Equal(t, "plans.pdf", fieldValue(e, "Attachments"))
	assert.Equal(t, "1", fieldValue(e, "Embeds"))
	require.NotNil(t, e.Footer)
	assert.Contains(t, e.Footer.Text, "Message ID: m1")
	assert.Contains(t, e.Footer.Text, "User ID: u1")
}

func TestMessageDeletedEmbedUncached(t *testing.T) {
	e := messageDeletedEmbed("m1", "ch1", nil)

	assert.Equal(t, "<#ch1>", fieldValue(e, "Channel"))
	assert.Contains(t, fieldValue(e, "Content"), "not cached")
	require.NotNil(t, e.Footer)
	assert.Equal(t, "Message ID: m1", e.Footer.Text)
}

func TestMessageDeletedEmbedTruncatesContent(t *testing.T) {
	msg := &dg.Message{
		Author:  &dg.User{ID: "u1"},
		Content: strings.Repeat("a", 2000),
	}

	e := messageDeletedEmbed("m1", "ch1", msg)

	content := fieldValue(e, "Content")
	assert.Len(t, content, maxLoggedContent)
	assert.True(t, strings.HasSuffix(content, "..."))
}
