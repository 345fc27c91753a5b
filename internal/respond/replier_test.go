package respond

import (
	"io"
	"log/slog"
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	responses []*dg.InteractionResponse
	followups []*dg.WebhookParams

	respondErr  error
	followupErr error
}

func (f *fakeSession) InteractionRespond(i *dg.Interaction, r *dg.InteractionResponse, opts ...dg.RequestOption) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(i *dg.Interaction, wait bool, p *dg.WebhookParams, opts ...dg.RequestOption) (*dg.Message, error) {
	if f.followupErr != nil {
		return nil, f.followupErr
	}
	f.followups = append(f.followups, p)
	return &dg.Message{ID: "m1"}, nil
}

func newTestReplier(f *fakeSession) *Replier {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(f, l, &dg.Interaction{ID: "i1"})
}

func TestReplierFirstSendUsesPrimary(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Send(Message{Content: "hello"}))

	require.Len(t, f.responses, 1)
	assert.Empty(t, f.followups)
	assert.Equal(t, dg.InteractionResponseChannelMessageWithSource, f.responses[0].Type)
	assert.Equal(t, "hello", f.responses[0].Data.Content)
	assert.True(t, r.Acked())
}

func TestReplierSecondSendUsesFollowup(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Send(Message{Content: "first"}))
	require.NoError(t, r.Send(Message{Content: "second"}))

	require.Len(t, f.responses, 1)
	require.Len(t, f.followups, 1)
	assert.Equal(t, "second", f.followups[0].Content)
}

func TestReplierDeferSpendsPrimary(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Defer(true))
	require.NoError(t, r.Send(Message{Content: "late"}))

	require.Len(t, f.responses, 1)
	assert.Equal(t, dg.InteractionResponseDeferredChannelMessageWithSource, f.responses[0].Type)
	require.Len(t, f.followups, 1)
	assert.Equal(t, "late", f.followups[0].Content)
}

func TestReplierDoubleDeferRejected(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Defer(false))
	assert.ErrorIs(t, r.Defer(false), ErrAlreadyAcked)
	require.Len(t, f.responses, 1)
}

func TestReplierEphemeralFlag(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Send(Message{Content: "secret", Ephemeral: true}))
	require.NoError(t, r.Send(Message{Content: "secret2", Ephemeral: true}))

	assert.Equal(t, dg.MessageFlagsEphemeral, f.responses[0].Data.Flags)
	assert.Equal(t, dg.MessageFlagsEphemeral, f.followups[0].Flags)
}

func TestReplierModalOnlyBeforeAck(t *testing.T) {
	f := &fakeSession{}
	r := newTestReplier(f)

	require.NoError(t, r.Modal(&dg.InteractionResponseData{CustomID: "form"}))
	assert.True(t, r.Acked())

	assert.ErrorIs(t, r.Modal(&dg.InteractionResponseData{CustomID: "form"}), ErrAlreadyAcked)
}
