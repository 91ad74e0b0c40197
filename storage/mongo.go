package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/malusev998/currency"
)

const (
	DefaultMongoDatabase   = "currency"
	DefaultMongoCollection = "currency"
)

type (
	mongoStorage struct {
		ctx        context.Context
		client     *mongo.Client
		collection *mongo.Collection
	}

	mongoCurrency struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		Currency  string             `bson:"currency"`
		Provider  string             `bson:"provider"`
		Rate      float64            `bson:"rate"`
		CreatedAt time.Time          `bson:"createdAt"`
	}
)

func NewMongoStorage(c MongoDBConfig) (currency.Storage, error) {
	ctx := c.context()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.ConnectionString))
	if err != nil {
		return nil, err
	}

	database := c.Database
	if database == "" {
		database = DefaultMongoDatabase
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultMongoCollection
	}

	storage := mongoStorage{
		ctx:        ctx,
		client:     client,
		collection: client.Database(database).Collection(collection),
	}

	if c.Migrate {
		if err := storage.Migrate(); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}

	return storage, nil
}

// NewMongoStorageWithCollection does not own the client, Close is a no-op.
func NewMongoStorageWithCollection(ctx context.Context, collection *mongo.Collection) currency.Storage {
	if ctx == nil {
		ctx = context.Background()
	}

	return mongoStorage{
		ctx:        ctx,
		collection: collection,
	}
}

func (m mongoStorage) Get(from, to string, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.GetByDateAndProvider(from, to, currency.EmptyProvider, time.Time{}, time.Time{}, page, perPage)
}

func (m mongoStorage) GetByProvider(from, to string, provider currency.Provider, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.GetByDateAndProvider(from, to, provider, time.Time{}, time.Time{}, page, perPage)
}

func (m mongoStorage) GetByDate(from, to string, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	return m.GetByDateAndProvider(from, to, currency.EmptyProvider, start, end, page, perPage)
}

func (m mongoStorage) GetByDateAndProvider(from, to string, provider currency.Provider, start, end time.Time, page, perPage int64) ([]currency.CurrencyWithID, error) {
	filter := bson.M{"currency": joinPair(from, to)}

	createdAt := bson.M{}
	if !start.IsZero() {
		createdAt["$gte"] = start
	}

	if !end.IsZero() {
		createdAt["$lte"] = end
	}

	if len(createdAt) > 0 {
		filter["createdAt"] = createdAt
	}

	if provider != currency.EmptyProvider {
		filter["provider"] = provider.String()
	}

	skip, limit := pagination(page, perPage)
	cursor, err := m.collection.Find(m.ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit))

	if err != nil {
		return nil, err
	}

	var documents []mongoCurrency
	if err := cursor.All(m.ctx, &documents); err != nil {
		return nil, err
	}

	currencies := make([]currency.CurrencyWithID, 0, len(documents))

	for _, document := range documents {
		from, to, err := splitPair(document.Currency)
		if err != nil {
			return nil, err
		}

		currencies = append(currencies, currency.CurrencyWithID{
			Currency: currency.Currency{
				From:      from,
				To:        to,
				Provider:  currency.Provider(document.Provider),
				Rate:      document.Rate,
				CreatedAt: document.CreatedAt,
			},
			ID: document.ID,
		})
	}

	return currencies, nil
}

func (m mongoStorage) Store(currencies []currency.Currency) ([]currency.CurrencyWithID, error) {
	if len(currencies) == 0 {
		return []currency.CurrencyWithID{}, nil
	}

	documents := make([]interface{}, 0, len(currencies))
	prepared := make([]currency.Currency, 0, len(currencies))

	for _, c := range currencies {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}

		prepared = append(prepared, c)
		documents = append(documents, mongoCurrency{
			Currency:  joinPair(c.From, c.To),
			Provider:  c.Provider.String(),
			Rate:      c.Rate,
			CreatedAt: c.CreatedAt,
		})
	}

	result, err := m.collection.InsertMany(m.ctx, documents)
	if err != nil {
		return nil, err
	}

	stored := make([]currency.CurrencyWithID, 0, len(currencies))
	for i, id := range result.InsertedIDs {
		stored = append(stored, currency.CurrencyWithID{
			Currency: prepared[i],
			ID:       id,
		})
	}

	return stored, nil
}

func (m mongoStorage) GetStorageProviderName() string {
	return string(MongoDB)
}

func (m mongoStorage) Migrate() error {
	_, err := m.collection.Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "currency", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	})

	return err
}

func (m mongoStorage) Drop() error {
	return m.collection.Drop(m.ctx)
}

func (m mongoStorage) Close() error {
	if m.client == nil {
		return nil
	}

	return m.client.Disconnect(m.ctx)
}
