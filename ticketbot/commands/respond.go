package commands

import (
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot/config"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

func replyError(e *handler.CommandEvent, message string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.ErrorColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

func replySuccess(e *handler.CommandEvent, message string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.SuccessColor,
		}},
	})
}

func replyInfo(e *handler.CommandEvent, message string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: message,
			Color:       config.InfoColor,
		}},
	})
}

// failureMessage converts a lifecycle failure into a short, specific user
// message. Raw errors never reach the user.
func failureMessage(err error) string {
	var claimed *tickets.AlreadyClaimedError
	if errors.As(err, &claimed) {
		return claimed.Error()
	}

	switch {
	case errors.Is(err, tickets.ErrNotFound):
		return "This channel has no ticket associated with it."
	case errors.Is(err, tickets.ErrPermissionDenied):
		return "You do not have permission to do that."
	case errors.Is(err, tickets.ErrBlacklisted):
		return "You are not allowed to open tickets on this server."
	case errors.Is(err, tickets.ErrTicketAlreadyOpen):
		return "You already have an open ticket."
	case errors.Is(err, tickets.ErrLimitExceeded):
		return "You have reached the limit for this action."
	case errors.Is(err, tickets.ErrNoScheduledClose):
		return "There is no scheduled close pending on this ticket."
	case errors.Is(err, tickets.ErrAlreadyRated):
		return "This ticket has already been rated."
	case errors.Is(err, tickets.ErrTagExists):
		return "That tag is already on this ticket."
	case errors.Is(err, tickets.ErrTagMissing):
		return "That tag is not on this ticket."
	case errors.Is(err, tickets.ErrWatcherExists):
		return "That user is already watching this ticket."
	case errors.Is(err, tickets.ErrWatcherMissing):
		return "That user is not watching this ticket."
	case errors.Is(err, tickets.ErrBotWatcher):
		return "Bots cannot watch tickets."
	case errors.Is(err, tickets.ErrMergeTargetClosed):
		return "Cannot merge into a closed ticket."
	case errors.Is(err, tickets.ErrInvalidPriority):
		return "Priority must be between 1 (low) and 4 (urgent)."
	case errors.Is(err, tickets.ErrInvalidRating):
		return "Rating must be between 1 and 5 stars."
	case errors.Is(err, tickets.ErrInvalidCloseDelay):
		return "Close delay must be between 1 and 60 minutes."
	case errors.Is(err, tickets.ErrInvalidTransition):
		return "The ticket's current status does not allow that."
	default:
		return "Something went wrong, please try again."
	}
}

func replyOutcome(e *handler.CommandEvent, err error, success string) error {
	if err == nil {
		return replySuccess(e, success)
	}
	return replyError(e, failureMessage(err))
}

// updateOutcome is the deferred-response counterpart of replyOutcome.
func updateOutcome(e *handler.CommandEvent, err error, success string) error {
	embed := discord.Embed{Description: success, Color: config.SuccessColor}
	if err != nil {
		embed = discord.Embed{Description: failureMessage(err), Color: config.ErrorColor}
	}
	_, uerr := e.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: &[]discord.Embed{embed},
	})
	return uerr
}

// actorFromEvent builds the caller identity from the interaction payload.
func actorFromEvent(e *handler.CommandEvent) tickets.Actor {
	actor := tickets.Actor{
		UserID: e.User().ID.String(),
		IsBot:  e.User().Bot,
	}
	if member := e.Member(); member != nil {
		for _, roleID := range member.RoleIDs {
			actor.RoleIDs = append(actor.RoleIDs, roleID.String())
		}
		actor.IsAdmin = member.Permissions.Has(discord.PermissionAdministrator)
	}
	return actor
}
