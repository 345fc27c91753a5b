package database

import (
	"time"
)

type GuildSettings struct {
	Prefix           string `json:"prefix,omitempty"`
	WelcomeChannelID string `json:"welcome_channel_id,omitempty"`
	StaffRoleID      string `json:"staff_role_id,omitempty"`
}

type Guild struct {
	ID       string
	Name     string
	Settings GuildSettings
	Created  time.Time
	Updated  time.Time
}

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

type Ticket struct {
	ID        string
	GuildID   string
	ChannelID string
	UserID    string
	Service   string
	Details   map[string]string
	Status    TicketStatus
	Created   time.Time
	Updated   time.Time
}

// Invocation is one row of the command audit log. Outcome holds the
// failure classification, or "ok" for a clean run.
type Invocation struct {
	GuildID string
	UserID  string
	Command string
	Source  string
	Outcome string
	Created time.Time
}
