package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewMongo connects to uri, pings the deployment and selects database.
// Every collection operation runs under timeout.
func NewMongo(ctx context.Context, uri, database string, timeout time.Duration) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		// Profile fields are schemaless; decode nested documents as maps so
		// they serialize as plain JSON objects.
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database), timeout: timeout}, nil
}

func (m *Mongo) Collection(name string) Collection {
	return &mongoCollection{col: m.db.Collection(name), timeout: m.timeout}
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the API relies on. The bookings
// index makes InsertUnique safe against concurrent identical requests; when it
// cannot be built (for instance because duplicates already exist) the failure
// is logged and startup continues.
func (m *Mongo) EnsureIndexes(ctx context.Context, log *slog.Logger) error {
	_, err := m.db.Collection(Users).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user_email"),
	})
	if err != nil {
		log.Warn("could not create users index", "error", err)
	}

	_, err = m.db.Collection(Bookings).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "treatment", Value: 1},
			{Key: "patient", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_booking_treatment_patient_date"),
	})
	if err != nil {
		log.Warn("could not create bookings index, duplicate bookings are possible under concurrency", "error", err)
	}

	_, err = m.db.Collection(Bookings).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetName("booking_date"),
	})
	return err
}

type mongoCollection struct {
	col     *mongo.Collection
	timeout time.Duration
}

func (c *mongoCollection) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.timeout)
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, results any, opts ...FindOption) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	fo := buildFindOptions(opts)
	findOpts := options.Find()
	if len(fo.projection) > 0 {
		proj := bson.M{}
		for _, f := range fo.projection {
			proj[f] = 1
		}
		findOpts.SetProjection(proj)
	}

	cursor, err := c.col.Find(ctx, filter, findOpts)
	if err != nil {
		return fmt.Errorf("find in %s: %w", c.col.Name(), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		return fmt.Errorf("decode %s: %w", c.col.Name(), err)
	}
	return nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, result any) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	err := c.col.FindOne(ctx, filter).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find one in %s: %w", c.col.Name(), err)
	}
	return nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc any) (*InsertReceipt, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	res, err := c.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert into %s: %w", c.col.Name(), err)
	}
	return &InsertReceipt{Acknowledged: true, InsertedID: res.InsertedID}, nil
}

// InsertUnique upserts with $setOnInsert so the existence check and the write
// are a single server-side operation. Two concurrent upserts can still race to
// insert; the unique index turns the loser into a duplicate key error, which
// is answered with the winner's document.
func (c *mongoCollection) InsertUnique(ctx context.Context, key bson.M, doc any, existing any) (*InsertReceipt, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	res, err := c.col.UpdateOne(ctx, key, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("conditional insert into %s: %w", c.col.Name(), err)
	}
	if err == nil && res.UpsertedID != nil {
		return &InsertReceipt{Acknowledged: true, InsertedID: res.UpsertedID}, nil
	}

	if err := c.col.FindOne(ctx, key).Decode(existing); err != nil {
		return nil, fmt.Errorf("read existing from %s: %w", c.col.Name(), err)
	}
	return nil, ErrDuplicate
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (*UpdateReceipt, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	res, err := c.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return nil, fmt.Errorf("update in %s: %w", c.col.Name(), err)
	}
	return &UpdateReceipt{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (*DeleteReceipt, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	res, err := c.col.DeleteOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", c.col.Name(), err)
	}
	return &DeleteReceipt{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}
