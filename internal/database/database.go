package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/graxinc/errutil"
)

type Store struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

func Open(l *slog.Logger, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	cache := sq.NewStmtCache(db)
	store := Store{l: l, db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(cache)}

	if err := store.migrate(databaseURL); err != nil {
		return nil, errutil.With(err)
	}

	return &store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return errutil.With(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	s.l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

func (s *Store) PutGuild(ctx context.Context, g Guild) error {
	settings, err := json.Marshal(g.Settings)
	if err != nil {
		return errutil.With(err)
	}

	q := s.builder.
		Insert("guilds").
		SetMap(map[string]any{
			"id":       g.ID,
			"name":     g.Name,
			"settings": settings,
			"created":  time.Now().UTC(),
		}).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated = now()`)
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Store) GetGuild(ctx context.Context, id string) (*Guild, error) {
	var g Guild
	var settingsRaw []byte

	q := s.builder.
		Select("id", "name", "settings", "created", "updated").
		From("guilds").
		Where(sq.Eq{"id": id})

	if err := q.QueryRowContext(ctx).Scan(
		&g.ID,
		&g.Name,
		&settingsRaw,
		&g.Created,
		&g.Updated,
	); err != nil {
		return nil, errutil.Wrap(err)
	}

	if err := json.Unmarshal(settingsRaw, &g.Settings); err != nil {
		return nil, errutil.With(err)
	}

	return &g, nil
}

func (s *Store) UpdateGuildSettings(ctx context.Context, id string, settings GuildSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return errutil.With(err)
	}

	q := s.builder.
		Update("guilds").
		SetMap(map[string]any{
			"settings": raw,
			"updated":  time.Now().UTC(),
		}).
		Where(sq.Eq{"id": id})
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Store) CreateTicket(ctx context.Context, t Ticket) error {
	details, err := json.Marshal(t.Details)
	if err != nil {
		return errutil.With(err)
	}

	q := s.builder.
		Insert("tickets").
		SetMap(map[string]any{
			"id":         t.ID,
			"guild_id":   t.GuildID,
			"channel_id": t.ChannelID,
			"user_id":    t.UserID,
			"service":    t.Service,
			"details":    details,
			"status":     string(t.Status),
			"created":    time.Now().UTC(),
		})
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Store) CloseTicket(ctx context.Context, id string) error {
	q := s.builder.
		Update("tickets").
		SetMap(map[string]any{
			"status":  string(TicketClosed),
			"updated": time.Now().UTC(),
		}).
		Where(sq.Eq{"id": id})
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Store) GetTicketByChannel(ctx context.Context, channelID string) (*Ticket, error) {
	var t Ticket
	var detailsRaw []byte
	var status string

	q := s.builder.
		Select("id", "guild_id", "channel_id", "user_id", "service", "details", "status", "created", "updated").
		From("tickets").
		Where(sq.Eq{"channel_id": channelID})

	if err := q.QueryRowContext(ctx).Scan(
		&t.ID,
		&t.GuildID,
		&t.ChannelID,
		&t.UserID,
		&t.Service,
		&detailsRaw,
		&status,
		&t.Created,
		&t.Updated,
	); err != nil {
		return nil, errutil.Wrap(err)
	}

	if err := json.Unmarshal(detailsRaw, &t.Details); err != nil {
		return nil, errutil.With(err)
	}
	t.Status = TicketStatus(status)

	return &t, nil
}

// GetOpenTicketByUser finds the user's open ticket for a service, if
// any. sql.ErrNoRows surfaces when there is none.
func (s *Store) GetOpenTicketByUser(ctx context.Context, guildID, userID, service string) (*Ticket, error) {
	var t Ticket
	var detailsRaw []byte
	var status string

	q := s.builder.
		Select("id", "guild_id", "channel_id", "user_id", "service", "details", "status", "created", "updated").
		From("tickets").
		Where(sq.Eq{"guild_id": guildID, "user_id": userID, "service": service, "status": string(TicketOpen)}).
		OrderBy("created DESC").
		Limit(1)

	if err := q.QueryRowContext(ctx).Scan(
		&t.ID,
		&t.GuildID,
		&t.ChannelID,
		&t.UserID,
		&t.Service,
		&detailsRaw,
		&status,
		&t.Created,
		&t.Updated,
	); err != nil {
		return nil, errutil.Wrap(err)
	}

	if err := json.Unmarshal(detailsRaw, &t.Details); err != nil {
		return nil, errutil.With(err)
	}
	t.Status = TicketStatus(status)

	return &t, nil
}

func (s *Store) CountOpenTickets(ctx context.Context, guildID, userID string) (int, error) {
	var count int

	q := s.builder.
		Select("COUNT(*)").
		From("tickets").
		Where(sq.Eq{"guild_id": guildID, "user_id": userID, "status": string(TicketOpen)})

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}

func (s *Store) RecordInvocation(ctx context.Context, inv Invocation) error {
	q := s.builder.
		Insert("invocations").
		SetMap(map[string]any{
			"guild_id": inv.GuildID,
			"user_id":  inv.UserID,
			"command":  inv.Command,
			"source":   inv.Source,
			"outcome":  inv.Outcome,
			"created":  time.Now().UTC(),
		})
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Store) CountInvocations(ctx context.Context, guildID string) (int, error) {
	var count int

	where := sq.Eq{}
	if guildID != "" {
		where["guild_id"] = guildID
	}

	q := s.builder.
		Select("COUNT(*)").
		From("invocations").
		Where(where)

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}
