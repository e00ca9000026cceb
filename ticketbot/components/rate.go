package components

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

// RateButtonHandler handles the star buttons attached to the rating prompt
// sent when a ticket closes. Custom IDs look like /rate/<channelID>/<stars>.
func RateButtonHandler(b *ticketbot.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		parts := strings.Split(e.Data.CustomID(), "/")
		if len(parts) < 4 {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Invalid rating interaction.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		channelID := parts[2]
		stars, err := strconv.Atoi(parts[3])
		if err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: "❌ Invalid rating value.",
				Flags:   discord.MessageFlagEphemeral,
			})
		}

		actor := tickets.Actor{UserID: e.User().ID.String()}
		if member := e.Member(); member != nil {
			for _, roleID := range member.RoleIDs {
				actor.RoleIDs = append(actor.RoleIDs, roleID.String())
			}
			actor.IsAdmin = member.Permissions.Has(discord.PermissionAdministrator)
		}

		if err := b.Manager.Rate(ctx, channelID, actor, stars); err != nil {
			return e.CreateMessage(discord.MessageCreate{
				Content: fmt.Sprintf("❌ %s", rateFailureMessage(err)),
				Flags:   discord.MessageFlagEphemeral,
			})
		}
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("💙 Thanks! You rated this ticket %d/5.", stars),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
}

func rateFailureMessage(err error) string {
	switch {
	case errors.Is(err, tickets.ErrAlreadyRated):
		return "This ticket has already been rated."
	case errors.Is(err, tickets.ErrPermissionDenied):
		return "Only the ticket owner can rate it."
	case errors.Is(err, tickets.ErrInvalidRating):
		return "Ratings go from 1 to 5 stars."
	case errors.Is(err, tickets.ErrNotFound):
		return "This ticket no longer exists."
	default:
		return "Something went wrong, please try again."
	}
}
