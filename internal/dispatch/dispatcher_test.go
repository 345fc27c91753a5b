package dispatch

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	cd "github.com/udrive-hq/chauffeur/internal/cooldown"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
)

// fakeStore records audit rows and serves a scripted guild.
type fakeStore struct {
	mu          sync.Mutex
	guild       *db.Guild
	guildCalls  int
	invocations []db.Invocation
}

func (f *fakeStore) GetGuild(ctx context.Context, id string) (*db.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guildCalls++
	if f.guild == nil {
		return nil, sql.ErrNoRows
	}
	return f.guild, nil
}

func (f *fakeStore) RecordInvocation(ctx context.Context, inv db.Invocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invocations = append(f.invocations, inv)
	return nil
}

type fakeSession struct {
	responses []*dg.InteractionResponse
	followups []*dg.WebhookParams
	channel   []*dg.MessageEmbed
}

func (f *fakeSession) InteractionRespond(i *dg.Interaction, r *dg.InteractionResponse, opts ...dg.RequestOption) error {
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(i *dg.Interaction, wait bool, p *dg.WebhookParams, opts ...dg.RequestOption) (*dg.Message, error) {
	f.followups = append(f.followups, p)
	return &dg.Message{ID: "m1"}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, e *dg.MessageEmbed, opts ...dg.RequestOption) (*dg.Message, error) {
	f.channel = append(f.channel, e)
	return &dg.Message{ID: "m2"}, nil
}

// stubCommand lets tests script a handler body.
type stubCommand struct {
	name   string
	run    func(ctx context.Context, deps handlers.Deps) error
	checks []handlers.Check
	ttl    time.Duration
}

func (c *stubCommand) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{Name: c.name, Description: "stub"}
}

func (c *stubCommand) Handle(ctx context.Context, deps handlers.Deps) error {
	if c.run == nil {
		return nil
	}
	return c.run(ctx, deps)
}

func (c *stubCommand) Checks() []handlers.Check { return c.checks }
func (c *stubCommand) Cooldown() time.Duration  { return c.ttl }

type stubPrefix struct {
	name    string
	aliases []string
	run     func(ctx context.Context, deps handlers.PrefixDeps) error
}

func (c *stubPrefix) Name() string      { return c.name }
func (c *stubPrefix) Aliases() []string { return c.aliases }
func (c *stubPrefix) Usage() string     { return c.name }

func (c *stubPrefix) Handle(ctx context.Context, deps handlers.PrefixDeps) error {
	if c.run == nil {
		return nil
	}
	return c.run(ctx, deps)
}

func newTestDispatcher(t *testing.T, reg *registry.Registry) (*Dispatcher, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, nil))

	gate, err := cd.New("", l)
	require.NoError(t, err)

	conf := &cf.Config{Prefix: "!"}
	return New(context.Background(), reg, nil, gate, conf, l), &logs
}

func commandInteraction(name string) *dg.InteractionCreate {
	return &dg.InteractionCreate{Interaction: &dg.Interaction{
		ID:      "i1",
		Type:    dg.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &dg.Member{User: &dg.User{ID: "u1", Username: "alice"}},
		Data:    dg.ApplicationCommandInteractionData{ID: "c1", Name: name},
	}}
}

func dispatchCommand(d *Dispatcher, f *fakeSession, i *dg.InteractionCreate) {
	d.dispatchInteraction(nil, f, i)
}

func TestErrorBeforePrimaryUsesPrimaryPath(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "boom",
		run: func(ctx context.Context, deps handlers.Deps) error {
			return errors.New("kaput")
		},
	}))

	d, logs := newTestDispatcher(t, reg)
	f := &fakeSession{}
	dispatchCommand(d, f, commandInteraction("boom"))

	require.Len(t, f.responses, 1)
	assert.Empty(t, f.followups)
	assert.Equal(t, dg.InteractionResponseChannelMessageWithSource, f.responses[0].Type)
	require.Len(t, f.responses[0].Data.Embeds, 1)
	assert.Equal(t, "An Error Occurred", f.responses[0].Data.Embeds[0].Title)

	assert.Contains(t, logs.String(), "kind=generic_failure")
	assert.Contains(t, logs.String(), "cause=kaput")
}

func TestErrorAfterPrimaryUsesFollowupPath(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "late-boom",
		run: func(ctx context.Context, deps handlers.Deps) error {
			if err := deps.Replier.Send(rp.Message{Content: "working on it"}); err != nil {
				return err
			}
			return errors.New("kaput after reply")
		},
	}))

	d, logs := newTestDispatcher(t, reg)
	f := &fakeSession{}
	dispatchCommand(d, f, commandInteraction("late-boom"))

	// Exactly one primary response; the failure notice rides a follow-up.
	require.Len(t, f.responses, 1)
	assert.Equal(t, "working on it", f.responses[0].Data.Content)
	require.Len(t, f.followups, 1)
	require.Len(t, f.followups[0].Embeds, 1)
	assert.Equal(t, "An Error Occurred", f.followups[0].Embeds[0].Title)

	assert.Contains(t, logs.String(), "kind=generic_failure")
}

func TestUnknownInteractionCommandReported(t *testing.T) {
	d, logs := newTestDispatcher(t, registry.New())
	f := &fakeSession{}
	dispatchCommand(d, f, commandInteraction("ghost"))

	require.Len(t, f.responses, 1)
	require.Len(t, f.responses[0].Data.Embeds, 1)
	assert.Equal(t, "Command Not Found", f.responses[0].Data.Embeds[0].Title)
	assert.Contains(t, logs.String(), "kind=unknown_command")
	assert.Contains(t, logs.String(), "command=ghost")
}

func TestGuardShortCircuitsHandler(t *testing.T) {
	reached := false
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "locked",
		checks: []handlers.Check{
			func(ctx context.Context, deps handlers.Deps) error {
				return Fail(KindPermissionDenied, "You can't do that.")
			},
		},
		run: func(ctx context.Context, deps handlers.Deps) error {
			reached = true
			return nil
		},
	}))

	d, logs := newTestDispatcher(t, reg)
	f := &fakeSession{}
	dispatchCommand(d, f, commandInteraction("locked"))

	assert.False(t, reached, "handler body must not run after a denied check")
	require.Len(t, f.responses, 1)
	assert.Equal(t, "Permission Denied", f.responses[0].Data.Embeds[0].Title)
	assert.Contains(t, logs.String(), "kind=permission_denied")
}

func TestCooldownSecondInvocationDenied(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{name: "slow", ttl: time.Minute}))

	d, logs := newTestDispatcher(t, reg)

	first := &fakeSession{}
	dispatchCommand(d, first, commandInteraction("slow"))
	assert.Empty(t, first.responses, "clean run replies nothing by itself")

	second := &fakeSession{}
	dispatchCommand(d, second, commandInteraction("slow"))
	require.Len(t, second.responses, 1)
	assert.Equal(t, "Command on Cooldown", second.responses[0].Data.Embeds[0].Title)
	assert.Contains(t, logs.String(), "kind=cooldown_active")
}

func TestPanicInHandlerIsContained(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "crash",
		run: func(ctx context.Context, deps handlers.Deps) error {
			panic("boom")
		},
	}))

	d, logs := newTestDispatcher(t, reg)
	f := &fakeSession{}

	require.NotPanics(t, func() {
		dispatchCommand(d, f, commandInteraction("crash"))
	})

	assert.Contains(t, logs.String(), "panic recovered")
	// The user still hears about it.
	require.Len(t, f.responses, 1)
	assert.Equal(t, "An Error Occurred", f.responses[0].Data.Embeds[0].Title)
}

func TestUnknownPrefixCommandScenario(t *testing.T) {
	d, logs := newTestDispatcher(t, registry.New())
	f := &fakeSession{}

	d.dispatchMessage(nil, f, &dg.MessageCreate{Message: &dg.Message{
		ID:        "m1",
		ChannelID: "ch1",
		Content:   "!bogus",
		Author:    &dg.User{ID: "u1", Username: "alice"},
	}})

	require.Len(t, f.channel, 1)
	assert.Equal(t, "Command Not Found", f.channel[0].Title)
	assert.Contains(t, f.channel[0].Description, "bogus")
	assert.Contains(t, logs.String(), "kind=unknown_command")
	assert.Contains(t, logs.String(), "command=bogus")
}

func TestBotMessagesIgnored(t *testing.T) {
	d, _ := newTestDispatcher(t, registry.New())
	f := &fakeSession{}

	d.dispatchMessage(nil, f, &dg.MessageCreate{Message: &dg.Message{
		ID:        "m1",
		ChannelID: "ch1",
		Content:   "!ping",
		Author:    &dg.User{ID: "b1", Username: "robo", Bot: true},
	}})

	assert.Empty(t, f.channel)
}

func TestPrefixCommandRuns(t *testing.T) {
	ran := false
	reg := registry.New()
	require.NoError(t, reg.AddPrefix(&stubPrefix{
		name:    "echo",
		aliases: []string{"e"},
		run: func(ctx context.Context, deps handlers.PrefixDeps) error {
			ran = true
			assert.Equal(t, []string{"hello", "big world"}, deps.Args)
			return nil
		},
	}))

	d, _ := newTestDispatcher(t, reg)
	f := &fakeSession{}

	d.dispatchMessage(nil, f, &dg.MessageCreate{Message: &dg.Message{
		ID:        "m1",
		ChannelID: "ch1",
		Content:   `!e hello "big world"`,
		Author:    &dg.User{ID: "u1", Username: "alice"},
	}})

	assert.True(t, ran)
	assert.Empty(t, f.channel, "a clean run produces no funnel reply")
}

func TestParseInvocation(t *testing.T) {
	cases := []struct {
		content string
		prefix  string
		name    string
		args    []string
		ok      bool
	}{
		{"!ping", "!", "ping", []string{}, true},
		{"!PING", "!", "ping", []string{}, true},
		{"!order standard \"main st\"", "!", "order", []string{"standard", "main st"}, true},
		{"?ping", "!", "", nil, false},
		{"hello there", "!", "", nil, false},
		{"!", "!", "", nil, false},
		{"!   ", "!", "", nil, false},
		{`!say "unbalanced`, "!", "say", []string{`"unbalanced`}, true},
	}

	for _, c := range cases {
		name, args, ok := ParseInvocation(c.content, c.prefix)
		assert.Equal(t, c.ok, ok, c.content)
		if !c.ok {
			continue
		}
		assert.Equal(t, c.name, name, c.content)
		assert.Equal(t, c.args, args, c.content)
	}
}

func TestDrainCompletesWhenIdle(t *testing.T) {
	d, _ := newTestDispatcher(t, registry.New())
	assert.True(t, d.Drain(time.Second))
}

func TestStopDrainsBeforeCancel(t *testing.T) {
	started := make(chan struct{})
	ctxErr := make(chan error, 1)
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "linger",
		run: func(ctx context.Context, deps handlers.Deps) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			ctxErr <- ctx.Err()
			return nil
		},
	}))

	d, _ := newTestDispatcher(t, reg)
	done := make(chan struct{})
	go func() {
		dispatchCommand(d, &fakeSession{}, commandInteraction("linger"))
		close(done)
	}()

	<-started
	assert.True(t, d.Stop(time.Second))
	<-done
	assert.NoError(t, <-ctxErr, "in-flight handlers keep a live context while draining")
	assert.Error(t, d.ctx.Err(), "handler context is cancelled once the drain completes")
}

func TestStopTimeoutCancelsStragglers(t *testing.T) {
	started := make(chan struct{})
	reg := registry.New()
	require.NoError(t, reg.AddCommand(&stubCommand{
		name: "stuck",
		run: func(ctx context.Context, deps handlers.Deps) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	d, _ := newTestDispatcher(t, reg)
	done := make(chan struct{})
	go func() {
		dispatchCommand(d, &fakeSession{}, commandInteraction("stuck"))
		close(done)
	}()

	<-started
	assert.False(t, d.Stop(20*time.Millisecond))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never released after cancellation")
	}
}

func TestGuildPrefixOverrideCached(t *testing.T) {
	ran := 0
	reg := registry.New()
	require.NoError(t, reg.AddPrefix(&stubPrefix{
		name: "hi",
		run: func(ctx context.Context, deps handlers.PrefixDeps) error {
			ran++
			return nil
		},
	}))

	d, _ := newTestDispatcher(t, reg)
	fs := &fakeStore{guild: &db.Guild{ID: "g1", Settings: db.GuildSettings{Prefix: "?"}}}
	d.store = fs

	msg := func(content string) *dg.MessageCreate {
		return &dg.MessageCreate{Message: &dg.Message{
			ID:        "m1",
			ChannelID: "ch1",
			GuildID:   "g1",
			Content:   content,
			Author:    &dg.User{ID: "u1", Username: "alice"},
		}}
	}

	f := &fakeSession{}
	d.dispatchMessage(nil, f, msg("?hi"))
	d.dispatchMessage(nil, f, msg("?hi"))
	assert.Equal(t, 2, ran)
	assert.Equal(t, 1, fs.guildCalls, "second message rides the cache")

	// The default prefix no longer triggers in this guild.
	d.dispatchMessage(nil, f, msg("!hi"))
	assert.Equal(t, 2, ran)
}

func TestFailureAuditCarriesGuild(t *testing.T) {
	d, logs := newTestDispatcher(t, registry.New())
	fs := &fakeStore{}
	d.store = fs

	dispatchCommand(d, &fakeSession{}, commandInteraction("ghost"))

	require.Len(t, fs.invocations, 1)
	assert.Equal(t, "g1", fs.invocations[0].GuildID)
	assert.Equal(t, "u1", fs.invocations[0].UserID)
	assert.Equal(t, "unknown_command", fs.invocations[0].Outcome)
	assert.Contains(t, logs.String(), "guild=g1")

	f := &fakeSession{}
	d.dispatchMessage(nil, f, &dg.MessageCreate{Message: &dg.Message{
		ID:        "m2",
		ChannelID: "ch1",
		GuildID:   "g1",
		Content:   "!bogus",
		Author:    &dg.User{ID: "u1", Username: "alice"},
	}})

	require.Len(t, fs.invocations, 2)
	assert.Equal(t, "g1", fs.invocations[1].GuildID)
	assert.Equal(t, "prefix", fs.invocations[1].Source)
}
