package migration

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Legacy documents as stored by the previous generation of the bot. Field
// names mirror the old Mongo schema, not the Postgres one.

type MongoTicket struct {
	ID        primitive.ObjectID `bson:"_id"`
	Guild     string             `bson:"guild"`
	Channel   string             `bson:"channel"`
	Number    int32              `bson:"number"`
	Opener    string             `bson:"opener"`
	Subject   string             `bson:"subject"`
	Status    string             `bson:"status"`
	Priority  int32              `bson:"priority"`
	ClaimedBy string             `bson:"claimedBy"`
	Tags      []string           `bson:"tags"`
	Rating    int32              `bson:"rating"`

	CreatedAt   time.Time  `bson:"createdAt"`
	ClaimedAt   *time.Time `bson:"claimedAt"`
	ClosedAt    *time.Time `bson:"closedAt"`
	ClosedBy    string     `bson:"closedBy"`
	CloseReason string     `bson:"closeReason"`
	LastMessage *time.Time `bson:"lastMessage"`
}

type MongoGuildConfig struct {
	ID         primitive.ObjectID `bson:"_id"`
	Guild      string             `bson:"guild"`
	StaffRoles []string           `bson:"staffRoles"`
	Category   string             `bson:"category"`
	LogChannel string             `bson:"logChannel"`
	MaxTickets int32              `bson:"maxTickets"`
	AutoClose  int32              `bson:"autoCloseHours"`
}

type MongoBlacklistEntry struct {
	ID      primitive.ObjectID `bson:"_id"`
	Guild   string             `bson:"guild"`
	User    string             `bson:"user"`
	Reason  string             `bson:"reason"`
	AddedBy string             `bson:"addedBy"`
	AddedAt time.Time          `bson:"addedAt"`
}

type MongoArticle struct {
	ID        primitive.ObjectID `bson:"_id"`
	Guild     string             `bson:"guild"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Keywords  []string           `bson:"keywords"`
	Author    string             `bson:"author"`
	Uses      int32              `bson:"uses"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// TableStats tracks per-table import counters.
type TableStats struct {
	Read     int
	Inserted int
	Skipped  int
}

type MigrationStats struct {
	Tables    map[string]*TableStats
	StartTime time.Time
	EndTime   time.Time
}
