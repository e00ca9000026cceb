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

var TicketAdmin = discord.SlashCommandCreate{
	Name:        "ticketadmin",
	Description: "⚙️ Configure the ticket system",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set",
			Description: "General settings",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionChannel{
					Name:        "log_channel",
					Description: "Channel that receives ticket event logs",
					Required:    false,
				},
				discord.ApplicationCommandOptionChannel{
					Name:        "ticket_category",
					Description: "Category new ticket channels are created under",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "max_tickets",
					Description: "Active tickets allowed per user (1-10)",
					Required:    false,
					MinValue:    intPtr(1),
					MaxValue:    intPtr(10),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "autoclose_hours",
					Description: "Close tickets inactive for this many hours (0 disables)",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "staffrole",
			Description: "Add or remove a staff role",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "The staff role",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "remove",
					Description: "Remove instead of add",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "sla",
			Description: "SLA settings",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "enabled",
					Description: "Enable SLA tracking",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "first_response_mins",
					Description: "First-response target in minutes",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "resolution_hours",
					Description: "Resolution target in hours",
					Required:    false,
				},
				discord.ApplicationCommandOptionRole{
					Name:        "escalation_role",
					Description: "Role pinged when a ticket breaches",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "hours",
			Description: "Business-hours settings",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "enabled",
					Description: "Enable business hours",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "start",
					Description: "Opening time, HH:MM",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "end",
					Description: "Closing time, HH:MM",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "timezone",
					Description: "IANA timezone, e.g. Europe/Istanbul",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "assign",
			Description: "Auto-assignment settings",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionBool{
					Name:        "enabled",
					Description: "Enable auto-assignment",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "mode",
					Description: "Selection policy",
					Required:    false,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Round robin", Value: string(models.AssignModeRoundRobin)},
						{Name: "Load based", Value: string(models.AssignModeLoadBased)},
						{Name: "Rating based", Value: string(models.AssignModeRatingBased)},
						{Name: "Random", Value: string(models.AssignModeRandom)},
					},
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "blacklist",
			Description: "Bar or unbar a user from opening tickets",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "remove",
					Description: "Unbar instead of bar",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the user is barred",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "category",
			Description: "Add a ticket category",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Category name",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "emoji",
					Description: "Display emoji",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "first_response_mins",
					Description: "Category SLA first-response override",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "resolution_hours",
					Description: "Category SLA resolution override",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "assignprefs",
			Description: "Tune auto-assignment for a staff member",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "staff",
					Description: "The staff member",
					Required:    true,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "assignable",
					Description: "Whether this member receives auto-assigned tickets",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "max_load",
					Description: "Most tickets assignable at once (0 = unlimited)",
					Required:    false,
					MinValue:    intPtr(0),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "weight",
					Description: "Tie-break weight, higher wins",
					Required:    false,
					MinValue:    intPtr(0),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "trigger",
			Description: "Add a keyword auto-response",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "keyword",
					Description: "Keyword that fires the response",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "response",
					Description: "Reply sent when the keyword appears",
					Required:    true,
				},
			},
		},
	},
}

func TicketAdminHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}
		guildID := e.GuildID().String()

		if !actorFromEvent(e).IsAdmin {
			return replyError(e, "Only administrators can configure the ticket system.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		cfg, err := b.GuildConfigs.GetOrCreate(ctx, guildID)
		if err != nil {
			return replyError(e, "Failed to load the server configuration.")
		}

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "set":
			return adminSet(ctx, b, e, cfg, data)
		case "staffrole":
			return adminStaffRole(ctx, b, e, cfg, data)
		case "sla":
			return adminSLA(ctx, b, e, cfg, data)
		case "hours":
			return adminHours(ctx, b, e, cfg, data)
		case "assign":
			return adminAssign(ctx, b, e, cfg, data)
		case "blacklist":
			return adminBlacklist(ctx, b, e, guildID, data)
		case "category":
			return adminCategory(ctx, b, e, guildID, data)
		case "assignprefs":
			return adminAssignPrefs(ctx, b, e, guildID, data)
		case "trigger":
			return adminTrigger(ctx, b, e, guildID, data)
		}
		return nil
	}
}

func adminSet(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, cfg *models.GuildConfig, data discord.SlashCommandInteractionData) error {
	if channel, ok := data.OptChannel("log_channel"); ok {
		cfg.LogChannelID = channel.ID.String()
	}
	if channel, ok := data.OptChannel("ticket_category"); ok {
		cfg.TicketCategoryID = channel.ID.String()
	}
	if maxTickets, ok := data.OptInt("max_tickets"); ok {
		cfg.MaxTicketsPerUser = maxTickets
	}
	if autoClose, ok := data.OptInt("autoclose_hours"); ok {
		cfg.AutoCloseHours = autoClose
	}
	if err := b.GuildConfigs.Update(ctx, cfg); err != nil {
		return replyError(e, "Failed to save the configuration.")
	}
	return replySuccess(e, "Ticket settings updated.")
}

func adminStaffRole(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, cfg *models.GuildConfig, data discord.SlashCommandInteractionData) error {
	roleID := data.Role("role").ID.String()
	remove, _ := data.OptBool("remove")

	if remove {
		kept := cfg.StaffRoles[:0]
		for _, existing := range cfg.StaffRoles {
			if existing != roleID {
				kept = append(kept, existing)
			}
		}
		cfg.StaffRoles = kept
	} else {
		exists := false
		for _, existing := range cfg.StaffRoles {
			if existing == roleID {
				exists = true
				break
			}
		}
		if !exists {
			cfg.StaffRoles = append(cfg.StaffRoles, roleID)
		}
	}

	if err := b.GuildConfigs.Update(ctx, cfg); err != nil {
		return replyError(e, "Failed to save the configuration.")
	}
	return replySuccess(e, fmt.Sprintf("Staff roles updated (%d configured).", len(cfg.StaffRoles)))
}

func adminSLA(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, cfg *models.GuildConfig, data discord.SlashCommandInteractionData) error {
	cfg.SLAEnabled = data.Bool("enabled")
	if mins, ok := data.OptInt("first_response_mins"); ok && mins > 0 {
		cfg.SLAFirstResponseMins = mins
	}
	if hours, ok := data.OptInt("resolution_hours"); ok && hours > 0 {
		cfg.SLAResolutionHours = hours
	}
	if role, ok := data.OptRole("escalation_role"); ok {
		cfg.SLAEscalationRole = role.ID.String()
	}
	if err := b.GuildConfigs.Update(ctx, cfg); err != nil {
		return replyError(e, "Failed to save the configuration.")
	}
	return replySuccess(e, "SLA settings updated.")
}

func adminHours(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, cfg *models.GuildConfig, data discord.SlashCommandInteractionData) error {
	cfg.BusinessHoursEnabled = data.Bool("enabled")
	if start, ok := data.OptString("start"); ok {
		if _, err := time.Parse("15:04", start); err != nil {
			return replyError(e, "Opening time must look like `09:00`.")
		}
		cfg.BusinessHoursStart = start
	}
	if end, ok := data.OptString("end"); ok {
		if _, err := time.Parse("15:04", end); err != nil {
			return replyError(e, "Closing time must look like `18:00`.")
		}
		cfg.BusinessHoursEnd = end
	}
	if tz, ok := data.OptString("timezone"); ok {
		if _, err := time.LoadLocation(tz); err != nil {
			return replyError(e, fmt.Sprintf("Unknown timezone `%s`.", tz))
		}
		cfg.Timezone = tz
	}
	if err := b.GuildConfigs.Update(ctx, cfg); err != nil {
		return replyError(e, "Failed to save the configuration.")
	}
	return replySuccess(e, "Business hours updated.")
}

func adminAssign(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, cfg *models.GuildConfig, data discord.SlashCommandInteractionData) error {
	cfg.AutoAssignEnabled = data.Bool("enabled")
	if mode, ok := data.OptString("mode"); ok {
		cfg.AutoAssignMode = models.AssignMode(mode)
	}
	if err := b.GuildConfigs.Update(ctx, cfg); err != nil {
		return replyError(e, "Failed to save the configuration.")
	}
	return replySuccess(e, "Auto-assignment settings updated.")
}

func adminBlacklist(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID string, data discord.SlashCommandInteractionData) error {
	user := data.User("user")
	remove, _ := data.OptBool("remove")

	if remove {
		removed, err := b.BlacklistRepo.Remove(ctx, guildID, user.ID.String())
		if err != nil {
			return replyError(e, "Failed to update the blacklist.")
		}
		if !removed {
			return replyError(e, "That user is not blacklisted.")
		}
		return replySuccess(e, fmt.Sprintf("<@%s> can open tickets again.", user.ID))
	}

	entry := &models.BlacklistEntry{
		GuildID:   guildID,
		UserID:    user.ID.String(),
		Reason:    data.String("reason"),
		AddedBy:   e.User().ID.String(),
		CreatedAt: time.Now(),
	}
	if err := b.BlacklistRepo.Add(ctx, entry); err != nil {
		return replyError(e, "Failed to update the blacklist.")
	}
	return replySuccess(e, fmt.Sprintf("<@%s> can no longer open tickets.", user.ID))
}

func adminCategory(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID string, data discord.SlashCommandInteractionData) error {
	category := &models.Category{
		GuildID:   guildID,
		Name:      data.String("name"),
		Emoji:     data.String("emoji"),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if mins, ok := data.OptInt("first_response_mins"); ok {
		category.SLAFirstResponseMins = mins
	}
	if hours, ok := data.OptInt("resolution_hours"); ok {
		category.SLAResolutionHours = hours
	}
	if err := b.CategoryRepo.Create(ctx, category); err != nil {
		return replyError(e, "Failed to create the category.")
	}
	return replySuccess(e, fmt.Sprintf("Category **%s** created.", category.Name))
}

func adminAssignPrefs(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID string, data discord.SlashCommandInteractionData) error {
	staff := data.User("staff")
	enabled := data.Bool("assignable")
	maxLoad, _ := data.OptInt("max_load")
	weight, _ := data.OptInt("weight")

	if err := b.StaffRepo.SetAssignPrefs(ctx, guildID, staff.ID.String(), enabled, maxLoad, weight); err != nil {
		return replyError(e, "Failed to save the assignment preferences.")
	}
	return replySuccess(e, fmt.Sprintf("Assignment preferences for <@%s> updated.", staff.ID))
}

func adminTrigger(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID string, data discord.SlashCommandInteractionData) error {
	trigger := &models.Trigger{
		GuildID:   guildID,
		Keyword:   data.String("keyword"),
		Response:  data.String("response"),
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	if err := b.TriggerRepo.Create(ctx, trigger); err != nil {
		return replyError(e, "Failed to create the trigger.")
	}
	return replySuccess(e, fmt.Sprintf("Auto-response for `%s` created.", trigger.Keyword))
}
