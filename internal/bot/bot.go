// Package bot owns the client lifecycle: construct, connect, publish
// the command catalog, serve until cancelled, drain, disconnect.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
	cf "github.com/udrive-hq/chauffeur/internal/config"
	cd "github.com/udrive-hq/chauffeur/internal/cooldown"
	db "github.com/udrive-hq/chauffeur/internal/database"
	"github.com/udrive-hq/chauffeur/internal/dispatch"
	"github.com/udrive-hq/chauffeur/internal/modules/demo"
	"github.com/udrive-hq/chauffeur/internal/modules/orders"
	"github.com/udrive-hq/chauffeur/internal/modules/ping"
	"github.com/udrive-hq/chauffeur/internal/modules/serverlog"
	"github.com/udrive-hq/chauffeur/internal/modules/settings"
	"github.com/udrive-hq/chauffeur/internal/modules/support"
	"github.com/udrive-hq/chauffeur/internal/modules/welcome"
	"github.com/udrive-hq/chauffeur/internal/registry"
)

type State int32

const (
	StateStopped State = iota
	StateConnecting
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "stopped"
	}
}

// drainTimeout bounds how long shutdown waits for in-flight handlers
// before abandoning them.
const drainTimeout = 10 * time.Second

type Bot struct {
	conf      *cf.Config
	l         *slog.Logger
	s         *dg.Session
	store     *db.Store
	cooldowns *cd.Gate
	reg       *registry.Registry
	d         *dispatch.Dispatcher

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
}

func New(conf *cf.Config, l *slog.Logger) (*Bot, error) {
	b := &Bot{conf: conf, l: l}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if conf.DatabaseURL != "" {
		store, err := db.Open(l, conf.DatabaseURL)
		if err != nil {
			return nil, errutil.With(err)
		}
		b.store = store
	} else {
		l.Warn("no DATABASE_URL set, running without persistent storage")
	}

	cooldowns, err := cd.New(conf.CacheURL, l)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.cooldowns = cooldowns

	session, err := dg.New("Bot " + conf.Token)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.s = session
	b.s.Identify.Intents = dg.Intent(conf.Intents)
	// Cached messages give deletion logs their content.
	b.s.State.MaxMessageCount = 1000

	b.reg = registry.New()
	if err := b.reg.Load(
		ping.Module{},
		demo.Module{},
		orders.Module{},
		settings.Module{},
		&welcome.Module{Conf: conf, Store: b.store, Logger: l},
		&support.Module{Conf: conf, Store: b.store, Logger: l},
		&serverlog.Module{Logger: l},
	); err != nil {
		return nil, errutil.With(err)
	}

	b.d = dispatch.New(b.ctx, b.reg, b.store, b.cooldowns, conf, l)

	b.s.AddHandler(b.onReady)
	b.s.AddHandler(b.onGuildCreate)
	b.s.AddHandler(b.d.HandleInteraction)
	b.s.AddHandler(b.d.HandleMessage)
	for _, listener := range b.reg.Listeners() {
		b.s.AddHandler(listener)
	}

	return b, nil
}

func (b *Bot) State() State {
	return State(b.state.Load())
}

func (b *Bot) setState(s State) {
	b.state.Store(int32(s))
	b.l.Info("lifecycle state changed", "state", s.String())
}

// Run connects and serves until ctx is cancelled. A failed connect is
// fatal; a failed catalog publish is logged and the process keeps
// serving already-known commands.
func (b *Bot) Run(ctx context.Context) error {
	b.setState(StateConnecting)

	if err := b.s.Open(); err != nil {
		b.setState(StateStopped)
		return errutil.With(err)
	}

	if err := b.reg.SyncOnStartup(b.conf.SyncCommands, b.s, b.l, b.conf.AppID, b.conf.DevGuildID); err != nil {
		b.l.Error("error publishing command catalog", "error", err)
	}

	b.setState(StateReady)

	<-ctx.Done()
	b.shutdown()
	return nil
}

func (b *Bot) shutdown() {
	b.setState(StateShuttingDown)

	// In-flight handlers keep a live context for the drain window;
	// forced cancellation comes only after it closes.
	if b.d.Stop(drainTimeout) {
		b.l.Info("in-flight handlers drained")
	} else {
		b.l.Warn("drain timed out, abandoning in-flight handlers", "timeout", drainTimeout)
	}
	b.cancel()

	if err := b.s.Close(); err != nil {
		b.l.Error("error closing gateway session", "error", err)
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			b.l.Error("error closing database", "error", err)
		}
	}
	if err := b.cooldowns.Close(); err != nil {
		b.l.Error("error closing cooldown gate", "error", err)
	}

	b.setState(StateStopped)
}

func (b *Bot) onReady(s *dg.Session, r *dg.Ready) {
	b.l.Info("connected to gateway",
		"bot", fmt.Sprintf("%s#%s", r.User.Username, r.User.Discriminator),
		"guilds", len(s.State.Guilds),
	)

	if err := s.UpdateGameStatus(0, b.conf.Prefix+"help"); err != nil {
		b.l.Warn("error setting presence", "error", err)
	}
}

func (b *Bot) onGuildCreate(s *dg.Session, g *dg.GuildCreate) {
	b.l.Info("guild available", "id", g.ID, "name", g.Name)

	if b.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()

	if err := b.store.PutGuild(ctx, db.Guild{ID: g.ID, Name: g.Name}); err != nil {
		b.l.Error("error storing guild", "error", err, "guild", g.ID)
	}
}
