package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection used when none is given.
const DefaultMongoCollection = "subscriptions"

// MongoStore keeps one document per user. Every write is a single
// FindOneAndUpdate, so per-user atomicity comes from the server.
type MongoStore struct {
	coll     *mongo.Collection
	defaults Defaults
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database, collection string, defaults Defaults) *MongoStore {
	if db == nil {
		panic("subscription: mongo database is required")
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoStore{
		coll:     db.Collection(collection),
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type mongoRecord struct {
	UserID             int64      `bson:"user_id"`
	CustomerID         string     `bson:"gateway_customer_id"`
	SubscriptionID     *string    `bson:"gateway_subscription_id"`
	Tier               string     `bson:"tier"`
	Status             string     `bson:"status"`
	CurrentPeriodStart *time.Time `bson:"current_period_start"`
	CurrentPeriodEnd   *time.Time `bson:"current_period_end"`
	TrialUsed          bool       `bson:"trial_used"`
	CanceledAt         *time.Time `bson:"canceled_at"`
	Email              string     `bson:"email"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func (m mongoRecord) record() *Record {
	rec := &Record{
		UserID:             m.UserID,
		CustomerID:         m.CustomerID,
		Tier:               m.Tier,
		Status:             Status(m.Status),
		CurrentPeriodStart: utc(m.CurrentPeriodStart),
		CurrentPeriodEnd:   utc(m.CurrentPeriodEnd),
		TrialUsed:          m.TrialUsed,
		CanceledAt:         utc(m.CanceledAt),
		Email:              m.Email,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
	if m.SubscriptionID != nil {
		rec.SubscriptionID = *m.SubscriptionID
	}
	return rec
}

// EnsureIndexes creates the unique user index and the lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: colCustomerID, Value: 1}}},
		{Keys: bson.D{{Key: colSubscriptionID, Value: 1}}},
		{Keys: bson.D{{Key: colStatus, Value: 1}}},
		{Keys: bson.D{{Key: colTier, Value: 1}}},
		{Keys: bson.D{{Key: colEmail, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo store ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, userID int64) (*Record, error) {
	var doc mongoRecord
	if err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		return nil, s.wrap("get", err)
	}
	return doc.record(), nil
}

func (s *MongoStore) Upsert(ctx context.Context, userID int64, p Patch) (*Record, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}

	update := s.upsertDocument(userID, p)
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoRecord
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on insert; the loser retries as a plain update.
		err = s.coll.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, s.wrap("upsert", err)
	}
	return doc.record(), nil
}

// upsertDocument puts patched fields in $set and defaults in $setOnInsert.
// trial_used is only ever $set to true.
func (s *MongoStore) upsertDocument(userID int64, p Patch) bson.M {
	now := s.now()
	def := s.defaults.record(userID)
	set := bson.M{"updated_at": now}
	onInsert := bson.M{"created_at": now}

	put := func(valid bool, key string, val, fallback any) {
		if valid {
			set[key] = val
		} else {
			onInsert[key] = fallback
		}
	}
	put(p.CustomerID.Valid, colCustomerID, p.CustomerID.Val, def.CustomerID)
	put(p.SubscriptionID.Valid, colSubscriptionID, nullString(p.SubscriptionID.Val), nil)
	put(p.Tier.Valid, colTier, p.Tier.Val, def.Tier)
	put(p.Status.Valid, colStatus, string(p.Status.Val), string(def.Status))
	put(p.CurrentPeriodStart.Valid, colCurrentPeriodStart, p.CurrentPeriodStart.Val, nil)
	put(p.CurrentPeriodEnd.Valid, colCurrentPeriodEnd, p.CurrentPeriodEnd.Val, nil)
	put(p.TrialUsed.Valid && p.TrialUsed.Val, colTrialUsed, true, false)
	put(p.CanceledAt.Valid, colCanceledAt, p.CanceledAt.Val, nil)
	put(p.Email.Valid, colEmail, p.Email.Val, "")

	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

func (s *MongoStore) CreateIfAbsent(ctx context.Context, userID int64, p Patch) (*Record, bool, error) {
	if err := validUserID(userID); err != nil {
		return nil, false, err
	}

	now := s.now()
	row := s.defaults.record(userID)
	p.applyTo(&row)
	doc := bson.M{
		colCustomerID:         row.CustomerID,
		colSubscriptionID:     nullString(row.SubscriptionID),
		colTier:               row.Tier,
		colStatus:             string(row.Status),
		colCurrentPeriodStart: row.CurrentPeriodStart,
		colCurrentPeriodEnd:   row.CurrentPeriodEnd,
		colTrialUsed:          row.TrialUsed,
		colCanceledAt:         row.CanceledAt,
		colEmail:              row.Email,
		"created_at":          now,
		"updated_at":          now,
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, s.wrap("create", err)
	}
	created := err == nil && res.UpsertedCount == 1

	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

func (s *MongoStore) FindByCustomerID(ctx context.Context, customerID string) (int64, error) {
	return s.findUser(ctx, colCustomerID, customerID)
}

func (s *MongoStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (int64, error) {
	return s.findUser(ctx, colSubscriptionID, subscriptionID)
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (int64, error) {
	return s.findUser(ctx, colEmail, email)
}

func (s *MongoStore) findUser(ctx context.Context, field, id string) (int64, error) {
	if id == "" {
		return 0, ErrRecordNotFound
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "user_id", Value: -1}}).
		SetProjection(bson.M{"user_id": 1})

	var doc struct {
		UserID int64 `bson:"user_id"`
	}
	if err := s.coll.FindOne(ctx, bson.M{field: id}, opts).Decode(&doc); err != nil {
		return 0, s.wrap("find by "+field, err)
	}
	return doc.UserID, nil
}

func (s *MongoStore) ResetTrial(ctx context.Context, userID int64) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{colTrialUsed: false, "updated_at": s.now()}},
	)
	if err != nil {
		return s.wrap("reset trial", err)
	}
	if res.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

func (s *MongoStore) wrap(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrRecordNotFound
	}
	return fmt.Errorf("mongo store %s: %w", op, err)
}
