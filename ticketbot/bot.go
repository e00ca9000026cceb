package ticketbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/ticketeer-bot/ticketeer/ticketbot/ai"
	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/kb"
	"github.com/ticketeer-bot/ticketeer/ticketbot/notify"
	"github.com/ticketeer-bot/ticketeer/ticketbot/scheduler"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
	"github.com/ticketeer-bot/ticketeer/ticketbot/transcripts"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

// Bot aggregates the client, repositories and domain services. Everything is
// wired once in main and shared read-only afterwards.
type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	TicketRepo    repositories.TicketRepository
	GuildConfigs  repositories.GuildConfigRepository
	StaffRepo     repositories.StaffRepository
	CategoryRepo  repositories.CategoryRepository
	ReminderRepo  repositories.ReminderRepository
	AuditRepo     repositories.AuditRepository
	KBRepo        repositories.KBRepository
	TriggerRepo   repositories.TriggerRepository
	BlacklistRepo repositories.BlacklistRepository
	StatsRepo     repositories.StatsRepository

	Engine    *assignment.Engine
	Tracker   *sla.Tracker
	Manager   *tickets.Manager
	Scheduler *scheduler.Scheduler
	Notifier  *notify.Notifier
	Channels  *notify.Channels
	KBSearch  *kb.Search
	Suggester *ai.Suggester
	Archiver  *transcripts.Archiver
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMessages,
			gateway.IntentMessageContent,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Ticketeer is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithListeningActivity("/ticket"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
