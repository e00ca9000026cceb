package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/ai"
	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/commands"
	"github.com/ticketeer-bot/ticketeer/ticketbot/components"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/handlers"
	"github.com/ticketeer-bot/ticketeer/ticketbot/kb"
	"github.com/ticketeer-bot/ticketeer/ticketbot/logger"
	"github.com/ticketeer-bot/ticketeer/ticketbot/notify"
	"github.com/ticketeer-bot/ticketeer/ticketbot/scheduler"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
	"github.com/ticketeer-bot/ticketeer/ticketbot/transcripts"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := ticketbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting Ticketeer",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := ticketbot.New(*cfg, version, commit)
	b.DB = db

	bunDB := db.BunDB()
	b.TicketRepo = repositories.NewTicketRepository(bunDB)
	b.GuildConfigs = repositories.NewGuildConfigRepository(bunDB)
	b.StaffRepo = repositories.NewStaffRepository(bunDB)
	b.CategoryRepo = repositories.NewCategoryRepository(bunDB)
	b.ReminderRepo = repositories.NewReminderRepository(bunDB)
	b.AuditRepo = repositories.NewAuditRepository(bunDB)
	b.KBRepo = repositories.NewKBRepository(bunDB)
	b.TriggerRepo = repositories.NewTriggerRepository(bunDB)
	b.BlacklistRepo = repositories.NewBlacklistRepository(bunDB)
	b.StatsRepo = repositories.NewStatsRepository(bunDB)

	h := handler.New()
	guard := handlers.NewSpamGuard()

	h.Command("/ticket", handlers.WrapWithLogging("ticket", commands.TicketHandler(b, guard)))
	h.Autocomplete("/ticket", commands.TicketCategoryAutocomplete(b))
	h.Command("/claim", handlers.WrapWithLogging("claim", commands.ClaimHandler(b)))
	h.Command("/unclaim", handlers.WrapWithLogging("unclaim", commands.UnclaimHandler(b)))
	h.Command("/close", handlers.WrapWithLogging("close", commands.CloseHandler(b)))
	h.Command("/cancelclose", handlers.WrapWithLogging("cancelclose", commands.CancelCloseHandler(b)))
	h.Command("/reopen", handlers.WrapWithLogging("reopen", commands.ReopenHandler(b)))
	h.Command("/archive", handlers.WrapWithLogging("archive", commands.ArchiveHandler(b)))
	h.Command("/transfer", handlers.WrapWithLogging("transfer", commands.TransferHandler(b)))
	h.Command("/merge", handlers.WrapWithLogging("merge", commands.MergeHandler(b)))
	h.Command("/priority", handlers.WrapWithLogging("priority", commands.PriorityHandler(b)))
	h.Command("/tag", handlers.WrapWithLogging("tag", commands.TagHandler(b)))
	h.Command("/watch", handlers.WrapWithLogging("watch", commands.WatchHandler(b)))
	h.Command("/rate", handlers.WrapWithLogging("rate", commands.RateHandler(b)))
	h.Command("/tickets", handlers.WrapWithLogging("tickets", commands.TicketsHandler(b)))
	h.Command("/slastatus", handlers.WrapWithLogging("slastatus", commands.SLAStatusHandler(b)))
	h.Command("/kb", handlers.WrapWithLogging("kb", commands.KBHandler(b)))
	h.Command("/suggest", handlers.WrapWithLogging("suggest", commands.SuggestHandler(b)))
	h.Command("/remind", handlers.WrapWithLogging("remind", commands.RemindHandler(b)))
	h.Command("/transcript", handlers.WrapWithLogging("transcript", commands.TranscriptHandler(b)))
	h.Command("/ticketadmin", handlers.WrapWithLogging("ticketadmin", commands.TicketAdminHandler(b)))
	h.Component("/rate/", handlers.WrapComponentWithLogging("rate", components.RateButtonHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady), handlers.MessageListener(b)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
		)
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	b.Notifier = notify.New(b.Client, b.GuildConfigs, b.AuditRepo)
	b.Channels = notify.NewChannels(b.Client)
	b.Engine = assignment.NewEngine(b.StaffRepo, time.Now().UnixNano())
	b.Tracker = sla.NewTracker(b.TicketRepo, b.GuildConfigs, b.CategoryRepo, b.Notifier)
	b.Manager = tickets.NewManager(
		b.TicketRepo, b.GuildConfigs, b.StaffRepo, b.BlacklistRepo, b.ReminderRepo,
		b.Engine, b.Tracker, b.Channels, b.Notifier,
	)
	b.Scheduler = scheduler.New(
		b.TicketRepo, b.GuildConfigs, b.ReminderRepo, b.StatsRepo,
		b.Manager, b.Tracker, b.Engine, b.Notifier,
	)
	b.KBSearch = kb.NewSearch(b.KBRepo)

	if cfg.AI.APIKey != "" {
		b.Suggester = ai.NewSuggester(cfg.AI.APIKey)
	}
	if cfg.Storage.Bucket != "" {
		archiver, err := transcripts.NewArchiver(b.Client, cfg.Storage)
		if err != nil {
			slog.Error("Failed to initialize transcript storage", slog.Any("error", err))
			os.Exit(-1)
		}
		b.Archiver = archiver
	}

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
		os.Exit(-1)
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	b.Scheduler.Start(schedCtx)

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s

	slog.Info("Shutting down bot...")
	b.Scheduler.Stop()
}
