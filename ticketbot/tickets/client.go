package tickets

import (
	"context"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

// Actor identifies the caller of a lifecycle operation. Role membership and
// admin status come from the interaction payload; the manager never calls
// back into the chat platform to resolve them.
type Actor struct {
	UserID  string
	RoleIDs []string
	IsAdmin bool
	IsBot   bool
}

// ChannelClient is the slice of the chat platform the lifecycle manager
// needs. Channel creation is a correctness dependency of create; everything
// else is cosmetic and may fail without failing the operation.
type ChannelClient interface {
	// CreateTicketChannel creates the backing channel, visible to the owner
	// and the staff roles only, and returns its id.
	CreateTicketChannel(ctx context.Context, guildID, name, ownerID string, staffRoles []string, parentID string) (string, error)
	RenameChannel(ctx context.Context, channelID, name string) error
	DeleteChannel(ctx context.Context, channelID string) error
	// MakeReadOnly revokes write access for the owner and the default role
	// while keeping the channel readable. Used only by archive.
	MakeReadOnly(ctx context.Context, guildID, channelID, ownerID string, staffRoles []string) error
}

// Event names a lifecycle transition for notification and audit purposes.
type Event string

const (
	EventCreated        Event = "created"
	EventClaimed        Event = "claimed"
	EventUnclaimed      Event = "unclaimed"
	EventTransferred    Event = "transferred"
	EventClosed         Event = "closed"
	EventCloseScheduled Event = "close_scheduled"
	EventCloseCancelled Event = "close_cancelled"
	EventReopened       Event = "reopened"
	EventArchived       Event = "archived"
	EventMerged         Event = "merged"
	EventPrioritySet    Event = "priority_set"
	EventRated          Event = "rated"
)

// Notifier fans a lifecycle event out to the ticket channel, the log
// channel/webhook, watcher DMs and the audit log. All delivery is
// best-effort; the manager fires and forgets.
type Notifier interface {
	TicketEvent(ctx context.Context, ticket *models.Ticket, event Event, actorID, detail string)
	// OfferRating prompts the ticket owner to rate a just-closed ticket.
	OfferRating(ctx context.Context, ticket *models.Ticket)
}
