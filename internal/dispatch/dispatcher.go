// Package dispatch routes incoming gateway events to registered
// handlers and funnels every failure through a single classification
// and reporting path.
package dispatch

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	shellwords "github.com/mattn/go-shellwords"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	cd "github.com/udrive-hq/chauffeur/internal/cooldown"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/handlers"
	"github.com/udrive-hq/chauffeur/internal/registry"
	rp "github.com/udrive-hq/chauffeur/internal/respond"
	"github.com/udrive-hq/chauffeur/internal/utils"
)

// MessageSender is the slice of *discordgo.Session the prefix-path
// funnel needs to deliver its reply.
type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *dg.MessageEmbed, opts ...dg.RequestOption) (*dg.Message, error)
}

// Store is the slice of the database layer the dispatcher needs for
// prefix overrides and the audit log.
type Store interface {
	GetGuild(ctx context.Context, id string) (*db.Guild, error)
	RecordInvocation(ctx context.Context, inv db.Invocation) error
}

// prefixCacheTTL bounds how stale a cached guild prefix may get. A
// changed prefix takes effect within this window.
const prefixCacheTTL = time.Minute

type prefixEntry struct {
	value   string
	expires time.Time
}

type Dispatcher struct {
	reg       *registry.Registry
	db        *db.Store
	store     Store
	cooldowns *cd.Gate
	conf      *cf.Config
	l         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	prefixMu sync.RWMutex
	prefixes map[string]prefixEntry
}

func New(ctx context.Context, reg *registry.Registry, store *db.Store, cooldowns *cd.Gate, conf *cf.Config, l *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		reg:       reg,
		db:        store,
		cooldowns: cooldowns,
		conf:      conf,
		l:         l,
		prefixes:  make(map[string]prefixEntry),
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	if store != nil {
		d.store = store
	}
	return d
}

// Drain blocks until in-flight handlers finish or the timeout passes.
// It reports whether the drain completed cleanly.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop drains in-flight handlers and only then cancels their context,
// so handlers keep a live context for the whole drain window. Handlers
// still running when the timeout passes are cancelled.
func (d *Dispatcher) Stop(timeout time.Duration) bool {
	ok := d.Drain(timeout)
	d.cancel()
	return ok
}

// HandleInteraction is registered on the session for InteractionCreate
// events. discordgo already runs each event handler on its own
// goroutine, so the work happens inline.
func (d *Dispatcher) HandleInteraction(s *dg.Session, i *dg.InteractionCreate) {
	d.dispatchInteraction(s, s, i)
}

func (d *Dispatcher) dispatchInteraction(s *dg.Session, rs rp.Session, i *dg.InteractionCreate) {
	d.wg.Add(1)
	defer d.wg.Done()

	r := rp.New(rs, d.l, i.Interaction)

	defer func() {
		if rec := recover(); rec != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			d.l.Error("panic recovered in interaction handler", "recovered", rec, "stack", string(stack))
			d.ReportInteraction(r, i.GuildID, interactionName(i), utils.InvokingUser(i.Interaction),
				Fail(KindInternal, "An unexpected error occurred. Please try again later."))
		}
	}()

	deps := handlers.Deps{
		Session:     s,
		Replier:     r,
		Store:       d.db,
		Cooldowns:   d.cooldowns,
		Logger:      d.l,
		Config:      d.conf,
		Interaction: i,
	}

	switch i.Type {
	case dg.InteractionApplicationCommand:
		d.handleCommand(r, deps, i)
	case dg.InteractionApplicationCommandAutocomplete:
		d.handleAutocomplete(r, deps, i)
	case dg.InteractionMessageComponent:
		d.handleComponent(r, deps, i)
	case dg.InteractionModalSubmit:
		d.handleModal(r, deps, i)
	}
}

func (d *Dispatcher) handleCommand(r *rp.Replier, deps handlers.Deps, i *dg.InteractionCreate) {
	data := i.ApplicationCommandData()
	user := utils.InvokingUser(i.Interaction)

	cmd, ok := d.reg.Command(data.Name)
	if !ok {
		d.ReportInteraction(r, i.GuildID, data.Name, user, Failf(KindUnknownCommand, "Command `%s` is not registered.", data.Name))
		return
	}

	deps.Options = utils.MapOptions(i)

	d.l.Info("command issued", "user", user.Username, "called", utils.FormatInteraction(i), "guild", i.GuildID)

	if err := d.runChecks(cmd, deps); err != nil {
		d.ReportInteraction(r, i.GuildID, data.Name, user, err)
		return
	}

	if err := d.takeCooldown(cmd, data.Name, user.ID); err != nil {
		d.ReportInteraction(r, i.GuildID, data.Name, user, err)
		return
	}

	if err := cmd.Handle(d.ctx, deps); err != nil {
		d.ReportInteraction(r, i.GuildID, data.Name, user, err)
		return
	}

	d.audit(i.GuildID, user.ID, data.Name, "slash", "ok")
}

func (d *Dispatcher) handleAutocomplete(r *rp.Replier, deps handlers.Deps, i *dg.InteractionCreate) {
	data := i.ApplicationCommandData()

	cmd, ok := d.reg.Command(data.Name)
	if !ok {
		return
	}
	ac, ok := cmd.(handlers.Autocompleter)
	if !ok {
		return
	}

	deps.Options = utils.MapOptions(i)

	choices, err := ac.Autocomplete(d.ctx, deps)
	if err != nil {
		// No user-visible surface for autocomplete failures.
		d.l.Error("autocomplete failed", "command", data.Name, "error", err)
		return
	}

	if err := r.Choices(choices); err != nil {
		d.l.Error("error sending autocomplete choices", "command", data.Name, "error", err)
	}
}

func (d *Dispatcher) handleComponent(r *rp.Replier, deps handlers.Deps, i *dg.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	user := utils.InvokingUser(i.Interaction)

	h, ok := d.reg.Component(customID)
	if !ok {
		d.ReportInteraction(r, i.GuildID, customID, user, Fail(KindCheckFailed, "This control is no longer active."))
		return
	}

	if err := h.Component(d.ctx, deps); err != nil {
		d.ReportInteraction(r, i.GuildID, customID, user, err)
		return
	}

	d.audit(i.GuildID, user.ID, customID, "component", "ok")
}

func (d *Dispatcher) handleModal(r *rp.Replier, deps handlers.Deps, i *dg.InteractionCreate) {
	customID := i.ModalSubmitData().CustomID
	user := utils.InvokingUser(i.Interaction)

	h, ok := d.reg.Modal(customID)
	if !ok {
		d.ReportInteraction(r, i.GuildID, customID, user, Fail(KindCheckFailed, "This form is no longer active."))
		return
	}

	if err := h.Modal(d.ctx, deps); err != nil {
		d.ReportInteraction(r, i.GuildID, customID, user, err)
		return
	}

	d.audit(i.GuildID, user.ID, customID, "modal", "ok")
}

// HandleMessage is registered on the session for MessageCreate events
// and serves the legacy prefix command path.
func (d *Dispatcher) HandleMessage(s *dg.Session, m *dg.MessageCreate) {
	d.dispatchMessage(s, s, m)
}

func (d *Dispatcher) dispatchMessage(s *dg.Session, ms MessageSender, m *dg.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	prefix := d.prefixFor(m.GuildID)
	name, args, ok := ParseInvocation(m.Content, prefix)
	if !ok {
		return
	}

	d.wg.Add(1)
	defer d.wg.Done()

	defer func() {
		if rec := recover(); rec != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			d.l.Error("panic recovered in prefix handler", "command", name, "recovered", rec, "stack", string(stack))
			d.ReportMessage(ms, m.GuildID, m.ChannelID, name, m.Author,
				Fail(KindInternal, "An unexpected error occurred. Please try again later."))
		}
	}()

	cmd, ok := d.reg.Prefix(name)
	if !ok {
		d.ReportMessage(ms, m.GuildID, m.ChannelID, name, m.Author, Failf(KindUnknownCommand, "Command `%s%s` was not found.", prefix, name))
		return
	}

	d.l.Info("prefix command issued", "user", m.Author.Username, "command", name, "guild", m.GuildID)

	deps := handlers.PrefixDeps{
		Session:   s,
		Store:     d.db,
		Cooldowns: d.cooldowns,
		Logger:    d.l,
		Config:    d.conf,
		Message:   m,
		Args:      args,
	}

	if err := d.runPrefixChecks(cmd, deps); err != nil {
		d.ReportMessage(ms, m.GuildID, m.ChannelID, name, m.Author, err)
		return
	}

	if err := d.takeCooldown(cmd, "msg:"+cmd.Name(), m.Author.ID); err != nil {
		d.ReportMessage(ms, m.GuildID, m.ChannelID, name, m.Author, err)
		return
	}

	if err := cmd.Handle(d.ctx, deps); err != nil {
		d.ReportMessage(ms, m.GuildID, m.ChannelID, name, m.Author, err)
		return
	}

	d.audit(m.GuildID, m.Author.ID, cmd.Name(), "prefix", "ok")
}

// ParseInvocation splits a raw message into a command name and its
// arguments. Arguments honor shell-style quoting, so `!order "main st"`
// yields a single argument.
func ParseInvocation(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}

	rest := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if rest == "" {
		return "", nil, false
	}

	fields, err := shellwords.Parse(rest)
	if err != nil || len(fields) == 0 {
		// Unbalanced quotes; fall back to whitespace splitting.
		fields = strings.Fields(rest)
	}
	if len(fields) == 0 {
		return "", nil, false
	}

	return strings.ToLower(fields[0]), fields[1:], true
}

// prefixFor resolves the guild's prefix through a short-lived cache so
// ordinary chatter doesn't turn into a database lookup per message.
func (d *Dispatcher) prefixFor(guildID string) string {
	if d.store == nil || guildID == "" {
		return d.conf.Prefix
	}

	d.prefixMu.RLock()
	entry, ok := d.prefixes[guildID]
	d.prefixMu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.value
	}

	ctx, cancel := context.WithTimeout(d.ctx, 2*time.Second)
	defer cancel()

	prefix := d.conf.Prefix
	if g, err := d.store.GetGuild(ctx, guildID); err == nil && g.Settings.Prefix != "" {
		prefix = g.Settings.Prefix
	}

	d.prefixMu.Lock()
	d.prefixes[guildID] = prefixEntry{value: prefix, expires: time.Now().Add(prefixCacheTTL)}
	d.prefixMu.Unlock()

	return prefix
}

func (d *Dispatcher) runChecks(cmd handlers.Command, deps handlers.Deps) error {
	g, ok := cmd.(handlers.Guarded)
	if !ok {
		return nil
	}
	for _, check := range g.Checks() {
		if err := check(d.ctx, deps); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) runPrefixChecks(cmd handlers.PrefixCommand, deps handlers.PrefixDeps) error {
	g, ok := cmd.(handlers.GuardedPrefix)
	if !ok {
		return nil
	}
	for _, check := range g.PrefixChecks() {
		if err := check(d.ctx, deps); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) takeCooldown(cmd any, key, userID string) error {
	t, ok := cmd.(handlers.Throttled)
	if !ok {
		return nil
	}

	remaining, allowed := d.cooldowns.Take(d.ctx, key, userID, t.Cooldown())
	if allowed {
		return nil
	}
	return &Failure{
		Kind:    KindCooldown,
		Message: "This command is on cooldown.",
		Retry:   remaining,
	}
}

func (d *Dispatcher) audit(guildID, userID, command, source, outcome string) {
	if d.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.store.RecordInvocation(ctx, db.Invocation{
		GuildID: guildID,
		UserID:  userID,
		Command: command,
		Source:  source,
		Outcome: outcome,
	}); err != nil {
		d.l.Warn("error recording invocation", "error", err, "command", command)
	}
}

func interactionName(i *dg.InteractionCreate) string {
	switch i.Type {
	case dg.InteractionApplicationCommand, dg.InteractionApplicationCommandAutocomplete:
		return i.ApplicationCommandData().Name
	case dg.InteractionMessageComponent:
		return i.MessageComponentData().CustomID
	case dg.InteractionModalSubmit:
		return i.ModalSubmitData().CustomID
	default:
		return ""
	}
}
