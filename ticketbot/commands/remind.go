package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

const maxReminderDelayMinutes = 7 * 24 * 60

var Remind = discord.SlashCommandCreate{
	Name:        "remind",
	Description: "⏰ Get pinged about this ticket later",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "minutes",
			Description: "How many minutes from now (up to one week)",
			Required:    true,
			MinValue:    intPtr(1),
			MaxValue:    intPtr(maxReminderDelayMinutes),
		},
		discord.ApplicationCommandOptionString{
			Name:        "note",
			Description: "What to remind you about",
			Required:    false,
		},
	},
}

func RemindHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Get(ctx, e.Channel().ID().String())
		if err != nil {
			return replyOutcome(e, err, "")
		}
		if !ticket.Active() {
			return replyError(e, "Reminders can only be set on open tickets.")
		}

		data := e.SlashCommandInteractionData()
		minutes := data.Int("minutes")
		dueAt := time.Now().Add(time.Duration(minutes) * time.Minute)

		reminder := &models.Reminder{
			GuildID:   ticket.GuildID,
			ChannelID: ticket.ChannelID,
			TicketID:  ticket.ID,
			UserID:    e.User().ID.String(),
			Message:   data.String("note"),
			RemindAt:  dueAt,
			CreatedAt: time.Now(),
		}
		if err := b.ReminderRepo.Create(ctx, reminder); err != nil {
			return replyError(e, "Failed to save the reminder, please try again.")
		}
		return replySuccess(e, fmt.Sprintf("I'll ping you <t:%d:R>.", dueAt.Unix()))
	}
}
