package registry

import (
	"log/slog"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
)

// Publisher is the slice of *discordgo.Session needed to push the
// command catalog to the platform.
type Publisher interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*dg.ApplicationCommand, opts ...dg.RequestOption) ([]*dg.ApplicationCommand, error)
}

// SyncOnStartup publishes the catalog when enabled and is a logged
// no-op otherwise. Called exactly once per startup.
func (r *Registry) SyncOnStartup(enabled bool, p Publisher, l *slog.Logger, appID, guildID string) error {
	if !enabled {
		l.Info("command sync disabled, skipping catalog publish")
		return nil
	}
	return r.Publish(p, l, appID, guildID)
}

// Publish overwrites the platform's command catalog with the current
// descriptor set. A non-empty guildID scopes the publish to a single
// development guild, which propagates immediately; an empty one
// publishes globally.
func (r *Registry) Publish(p Publisher, l *slog.Logger, appID, guildID string) error {
	start := time.Now()

	descriptors := r.Descriptors()
	for i, cmd := range descriptors {
		result := clampDescriptor(cmd)
		if result.WasModified {
			descriptors[i] = result.Command
			l.Warn("command descriptor clamped to platform limits",
				"command", cmd.Name, "errors", result.Errors)
		}
	}

	if _, err := p.ApplicationCommandBulkOverwrite(appID, guildID, descriptors); err != nil {
		return errutil.With(err)
	}

	scope := "global"
	if guildID != "" {
		scope = "guild " + guildID
	}
	l.Info("command catalog published", "count", len(descriptors), "scope", scope, "duration", time.Since(start))

	return nil
}
