package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

const defaultBatchSize = 500

// Migrator imports data from the previous bot's MongoDB database into
// Postgres. Tickets are imported as historical records; live state such as
// SLA deadlines is not reconstructed.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int
	collNames map[string]string
	stats     MigrationStats
}

func NewMigrator(pgDB *bun.DB, client *mongo.Client, dbName string) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		mongoDB:   client.Database(dbName),
		batchSize: defaultBatchSize,
		collNames: map[string]string{
			"configs":   "configs",
			"tickets":   "tickets",
			"blacklist": "blacklist",
			"articles":  "articles",
		},
		stats: MigrationStats{
			Tables:    make(map[string]*TableStats),
			StartTime: time.Now(),
		},
	}
}

// SetBatchSize overrides the default insert batch size.
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// SetCollectionName overrides a source collection name, for installs that
// renamed them.
func (m *Migrator) SetCollectionName(kind, name string) {
	if kind != "" && name != "" {
		m.collNames[kind] = name
	}
}

// MigrateAll runs every import step. Configs go first so tickets land in
// guilds that already have settings rows.
func (m *Migrator) MigrateAll(ctx context.Context) error {
	steps := []struct {
		name    string
		migrate func(context.Context) error
	}{
		{"configs", m.MigrateGuildConfigs},
		{"tickets", m.MigrateTickets},
		{"blacklist", m.MigrateBlacklist},
		{"articles", m.MigrateArticles},
	}

	for _, step := range steps {
		slog.Info("Starting migration step", slog.String("step", step.name))
		if err := step.migrate(ctx); err != nil {
			return fmt.Errorf("migration failed at step %s: %w", step.name, err)
		}
		slog.Info("Completed migration step", slog.String("step", step.name))
	}

	m.stats.EndTime = time.Now()
	m.logFinalStats()
	return nil
}

func (m *Migrator) MigrateGuildConfigs(ctx context.Context) error {
	stats := m.tableStats("guild_configs")

	cur, err := m.coll("configs").Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query configs: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.GuildConfig
	for cur.Next(ctx) {
		var mc MongoGuildConfig
		if err := cur.Decode(&mc); err != nil {
			stats.Skipped++
			continue
		}
		stats.Read++
		batch = append(batch, convertGuildConfig(mc))
		if len(batch) >= m.batchSize {
			if err := m.insertConfigs(ctx, batch, stats); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return m.insertConfigs(ctx, batch, stats)
	}
	return nil
}

func (m *Migrator) insertConfigs(ctx context.Context, batch []*models.GuildConfig, stats *TableStats) error {
	res, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (guild_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert guild configs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		stats.Inserted += int(n)
	}
	return nil
}

func (m *Migrator) MigrateTickets(ctx context.Context) error {
	stats := m.tableStats("tickets")

	cur, err := m.coll("tickets").Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query tickets: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.Ticket
	for cur.Next(ctx) {
		var mt MongoTicket
		if err := cur.Decode(&mt); err != nil {
			stats.Skipped++
			continue
		}
		if mt.Guild == "" || mt.Channel == "" || mt.Opener == "" {
			stats.Skipped++
			continue
		}
		stats.Read++
		batch = append(batch, convertTicket(mt))
		if len(batch) >= m.batchSize {
			if err := m.insertTickets(ctx, batch, stats); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return m.insertTickets(ctx, batch, stats)
	}
	return nil
}

func (m *Migrator) insertTickets(ctx context.Context, batch []*models.Ticket, stats *TableStats) error {
	res, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (channel_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert tickets: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		stats.Inserted += int(n)
	}
	return nil
}

func (m *Migrator) MigrateBlacklist(ctx context.Context) error {
	stats := m.tableStats("blacklist")

	cur, err := m.coll("blacklist").Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.BlacklistEntry
	for cur.Next(ctx) {
		var mb MongoBlacklistEntry
		if err := cur.Decode(&mb); err != nil {
			stats.Skipped++
			continue
		}
		stats.Read++
		batch = append(batch, convertBlacklistEntry(mb))
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	res, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (guild_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert blacklist entries: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		stats.Inserted += int(n)
	}
	return nil
}

func (m *Migrator) MigrateArticles(ctx context.Context) error {
	stats := m.tableStats("kb_articles")

	cur, err := m.coll("articles").Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query articles: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.KBArticle
	for cur.Next(ctx) {
		var ma MongoArticle
		if err := cur.Decode(&ma); err != nil {
			stats.Skipped++
			continue
		}
		stats.Read++
		batch = append(batch, convertArticle(ma))
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	res, err := m.pgDB.NewInsert().
		Model(&batch).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert articles: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		stats.Inserted += int(n)
	}
	return nil
}

func (m *Migrator) coll(kind string) *mongo.Collection {
	name := m.collNames[kind]
	if name == "" {
		name = kind
	}
	return m.mongoDB.Collection(name)
}

func (m *Migrator) tableStats(table string) *TableStats {
	stats, ok := m.stats.Tables[table]
	if !ok {
		stats = &TableStats{}
		m.stats.Tables[table] = stats
	}
	return stats
}

func (m *Migrator) logFinalStats() {
	for table, stats := range m.stats.Tables {
		slog.Info("Migration table summary",
			slog.String("table", table),
			slog.Int("read", stats.Read),
			slog.Int("inserted", stats.Inserted),
			slog.Int("skipped", stats.Skipped),
		)
	}
	slog.Info("Migration finished",
		slog.Duration("took", m.stats.EndTime.Sub(m.stats.StartTime)))
}
