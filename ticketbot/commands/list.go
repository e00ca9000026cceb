package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/config"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
)

var Tickets = discord.SlashCommandCreate{
	Name:        "tickets",
	Description: "📋 List this server's open tickets",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionBool{
			Name:        "all",
			Description: "Include closed and archived tickets",
			Required:    false,
		},
	},
}

var SLAStatus = discord.SlashCommandCreate{
	Name:        "slastatus",
	Description: "⏱️ Show this ticket's SLA status",
}

func TicketsHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}
		guildID := e.GuildID().String()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var (
			list []*models.Ticket
			err  error
		)
		if all, _ := e.SlashCommandInteractionData().OptBool("all"); all {
			list, err = b.TicketRepo.ListByGuild(ctx, guildID, 200, 0)
		} else {
			list, err = b.TicketRepo.GetOpenByGuild(ctx, guildID)
		}
		if err != nil {
			return replyError(e, "Failed to load tickets, please try again.")
		}
		if len(list) == 0 {
			return replyInfo(e, "No tickets found. 🎉")
		}

		totalPages := int(math.Ceil(float64(len(list)) / float64(config.TicketsPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * config.TicketsPerPage
				end := min(start+config.TicketsPerPage, len(list))

				var sb strings.Builder
				for _, ticket := range list[start:end] {
					fmt.Fprintf(&sb, "%s **#%04d** <#%s> — <@%s>",
						statusEmoji(ticket.Status), ticket.TicketNumber, ticket.ChannelID, ticket.OwnerID)
					if ticket.ClaimedBy != "" {
						fmt.Fprintf(&sb, " · handled by <@%s>", ticket.ClaimedBy)
					}
					if ticket.SLABreached || ticket.ResolutionBreached {
						sb.WriteString(" ⚠️")
					}
					sb.WriteString("\n")
				}

				embed.
					SetTitle("🎫 Tickets").
					SetDescription(sb.String()).
					SetColor(config.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d · %d tickets", page+1, totalPages, len(list)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func statusEmoji(status models.TicketStatus) string {
	switch status {
	case models.TicketStatusOpen:
		return "🟢"
	case models.TicketStatusClaimed:
		return "🟡"
	case models.TicketStatusClosed:
		return "🔴"
	default:
		return "📦"
	}
}

func SLAStatusHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Get(ctx, e.Channel().ID().String())
		if err != nil {
			return replyOutcome(e, err, "")
		}
		cfg, err := b.GuildConfigs.GetOrCreate(ctx, ticket.GuildID)
		if err != nil {
			return replyError(e, "Failed to load the server configuration.")
		}

		var category *models.Category
		if ticket.CategoryID != nil {
			category, _ = b.CategoryRepo.GetByID(ctx, *ticket.CategoryID)
		}

		status := sla.GetStatus(ticket, cfg, category, time.Now())
		embed := discord.NewEmbedBuilder().
			SetTitle(fmt.Sprintf("⏱️ SLA — Ticket #%04d", ticket.TicketNumber)).
			SetColor(phaseColor(status.FirstResponse, status.Resolution)).
			AddField("First response",
				fmt.Sprintf("%s %s (due <t:%d:R>)", phaseEmoji(status.FirstResponse), status.FirstResponse, status.FirstResponseDeadline.Unix()), false).
			AddField("Resolution",
				fmt.Sprintf("%s %s (due <t:%d:R>)", phaseEmoji(status.Resolution), status.Resolution, status.ResolutionDeadline.Unix()), false).
			Build()

		return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
	}
}

func phaseEmoji(phase sla.Phase) string {
	switch phase {
	case sla.PhaseMet:
		return "✅"
	case sla.PhaseWarning:
		return "⚠️"
	case sla.PhaseBreached:
		return "❌"
	default:
		return "⏳"
	}
}

func phaseColor(phases ...sla.Phase) int {
	color := config.SuccessColor
	for _, phase := range phases {
		switch phase {
		case sla.PhaseBreached:
			return config.ErrorColor
		case sla.PhaseWarning:
			color = config.WarningColor
		}
	}
	return color
}
