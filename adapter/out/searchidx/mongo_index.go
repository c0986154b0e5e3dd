// Package searchidx implements the secondary search index on MongoDB.
package searchidx

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

const collectionSearchRecords = "search_records"

// MongoIndex implements out.SearchIndex. Documents mirror the
// relational messages; _id is the deterministic message ID, so
// re-indexing the same message replaces rather than duplicates.
type MongoIndex struct {
	collection *mongo.Collection
}

// NewMongoIndex creates a new MongoDB-backed search index.
func NewMongoIndex(db *mongo.Database) *MongoIndex {
	return &MongoIndex{collection: db.Collection(collectionSearchRecords)}
}

// EnsureIndexes creates the text and filter indexes for the collection.
func (m *MongoIndex) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subject", Value: "text"},
				{Key: "body_text", Value: "text"},
				{Key: "from_email", Value: "text"},
			},
		},
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "message_date", Value: -1}}},
		{Keys: bson.D{{Key: "folder", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// searchRecord is the index-side projection of a message.
type searchRecord struct {
	ID        string    `bson:"_id"`
	AccountID int64     `bson:"account_id"`
	Folder    string    `bson:"folder"`
	UID       string    `bson:"uid"`
	Subject   string    `bson:"subject"`
	FromEmail string    `bson:"from_email"`
	FromName  string    `bson:"from_name,omitempty"`
	ToEmails  []string  `bson:"to_emails,omitempty"`
	CcEmails  []string  `bson:"cc_emails,omitempty"`
	BccEmails []string  `bson:"bcc_emails,omitempty"`
	BodyText  string    `bson:"body_text"`
	BodyHTML  string    `bson:"body_html,omitempty"`
	Flags     []string  `bson:"flags,omitempty"`
	Category  *string   `bson:"category,omitempty"`
	Date      time.Time `bson:"message_date"`
	IndexedAt time.Time `bson:"indexed_at"`
}

func toRecord(msg *domain.Message) *searchRecord {
	rec := &searchRecord{
		ID:        msg.ID,
		AccountID: msg.AccountID,
		Folder:    msg.Folder,
		UID:       msg.UID,
		Subject:   msg.Subject,
		FromEmail: msg.From.Address,
		FromName:  msg.From.Name,
		ToEmails:  msg.To,
		CcEmails:  msg.Cc,
		BccEmails: msg.Bcc,
		BodyText:  msg.BodyText,
		BodyHTML:  msg.BodyHTML,
		Flags:     msg.Flags,
		Date:      msg.Date,
		IndexedAt: time.Now().UTC(),
	}
	if msg.Category != nil {
		cat := string(*msg.Category)
		rec.Category = &cat
	}
	return rec
}

func (r *searchRecord) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:        r.ID,
		AccountID: r.AccountID,
		Folder:    r.Folder,
		UID:       r.UID,
		Subject:   r.Subject,
		From:      domain.Contact{Name: r.FromName, Address: r.FromEmail},
		To:        r.ToEmails,
		Cc:        r.CcEmails,
		Bcc:       r.BccEmails,
		BodyText:  r.BodyText,
		BodyHTML:  r.BodyHTML,
		Flags:     r.Flags,
		Date:      r.Date,
	}
	if r.Category != nil {
		cat := domain.Category(*r.Category)
		msg.Category = &cat
	}
	return msg
}

// Index upserts a single message document.
func (m *MongoIndex) Index(ctx context.Context, msg *domain.Message) error {
	rec := toRecord(msg)
	_, err := m.collection.ReplaceOne(ctx,
		bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	return err
}

// BulkIndex upserts documents one by one, tolerating per-document
// failures. A failed document is logged and counted as skipped; the
// batch never aborts because the relational store remains the source
// of truth and a later resync repairs the gap.
func (m *MongoIndex) BulkIndex(ctx context.Context, msgs []*domain.Message) (*out.BulkIndexResult, error) {
	result := &out.BulkIndexResult{}
	for _, msg := range msgs {
		if msg == nil || msg.ID == "" {
			result.Skipped++
			continue
		}
		if err := m.Index(ctx, msg); err != nil {
			logger.WithError(err).Warn("Failed to index message %s, skipping", msg.ID)
			result.Skipped++
			continue
		}
		result.Indexed++
	}
	return result, nil
}

// buildFilter translates a message filter into a Mongo query document.
// The allow-list is always applied; the caller-supplied account filter
// only narrows within it.
func buildFilter(f *domain.MessageFilter) bson.M {
	filter := bson.M{
		"account_id": bson.M{"$in": f.AccountIDs},
	}
	if f.Account != nil {
		filter["account_id"] = bson.M{"$in": f.AccountIDs, "$eq": *f.Account}
	}
	if f.Folder != nil {
		filter["folder"] = *f.Folder
	}
	if f.Category != nil {
		filter["category"] = string(*f.Category)
	}
	if f.Query != "" {
		filter["$text"] = bson.M{"$search": f.Query}
	}
	return filter
}

// Search runs a filtered, paginated query. Ordering is message date
// descending with _id as tiebreaker so pages never overlap.
func (m *MongoIndex) Search(ctx context.Context, f *domain.MessageFilter) ([]*domain.Message, int, error) {
	if len(f.AccountIDs) == 0 {
		return nil, 0, nil
	}

	filter := buildFilter(f)

	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "message_date", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var msgs []*domain.Message
	for cursor.Next(ctx) {
		var rec searchRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, rec.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	return msgs, int(total), nil
}

// DeleteByAccount drops every index document for an account (used by
// the delete/reindex flows alongside the relational delete).
func (m *MongoIndex) DeleteByAccount(ctx context.Context, accountID int64) (int, error) {
	result, err := m.collection.DeleteMany(ctx, bson.M{"account_id": accountID})
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}
