package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moviefinder/internal/domain"
)

type searchCounterDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SearchTerm string             `bson:"searchTerm"`
	Count      int64              `bson:"count"`
	MovieID    *int64             `bson:"movie_id"`
	Title      *string            `bson:"title"`
	PosterURL  *string            `bson:"poster_url"`
	CreatedAt  int64              `bson:"createdAt"`
}

// SearchCounterRepository keeps one document per search term. The unique
// index on searchTerm plus an upserting $inc makes Hit a single atomic write.
type SearchCounterRepository struct {
	collection *mongo.Collection
}

func NewSearchCounterRepository(client *mongo.Client, dbName, collectionName string) *SearchCounterRepository {
	if collectionName == "" {
		collectionName = DefaultSearchCollection
	}
	return &SearchCounterRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *SearchCounterRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "searchTerm", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *SearchCounterRepository) Hit(ctx context.Context, term string, sample domain.MovieSnapshot) (domain.SearchCounter, error) {
	if term == "" {
		return domain.SearchCounter{}, domain.ErrInvalidTerm
	}
	filter := bson.M{"searchTerm": term}
	update := buildHitUpdate(sample, nowMillis())
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc searchCounterDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two first hits raced on the upsert; the loser now sees the winner's
		// document and increments it.
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return domain.SearchCounter{}, err
	}
	return counterFromDoc(doc), nil
}

// buildHitUpdate increments count and writes the snapshot only on insert.
func buildHitUpdate(sample domain.MovieSnapshot, createdAt int64) bson.M {
	return bson.M{
		"$inc": bson.M{"count": int64(1)},
		"$setOnInsert": bson.M{
			"movie_id":   optionalInt64(int64(sample.MovieID)),
			"title":      optionalString(sample.Title),
			"poster_url": optionalString(sample.PosterURL),
			"createdAt":  createdAt,
		},
	}
}

func (r *SearchCounterRepository) Get(ctx context.Context, term string) (domain.SearchCounter, error) {
	var doc searchCounterDoc
	if err := r.collection.FindOne(ctx, bson.M{"searchTerm": term}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.SearchCounter{}, domain.ErrNotFound
		}
		return domain.SearchCounter{}, err
	}
	return counterFromDoc(doc), nil
}

func (r *SearchCounterRepository) Top(ctx context.Context, limit int) ([]domain.SearchCounter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []searchCounterDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	counters := make([]domain.SearchCounter, 0, len(docs))
	for _, doc := range docs {
		counters = append(counters, counterFromDoc(doc))
	}
	return counters, nil
}

func counterFromDoc(doc searchCounterDoc) domain.SearchCounter {
	counter := domain.SearchCounter{
		SearchTerm: doc.SearchTerm,
		Count:      doc.Count,
		Sample: domain.MovieSnapshot{
			Title:     derefString(doc.Title),
			PosterURL: derefString(doc.PosterURL),
		},
		CreatedAt: time.UnixMilli(doc.CreatedAt).UTC(),
	}
	if !doc.ID.IsZero() {
		counter.ID = doc.ID.Hex()
	}
	if doc.MovieID != nil {
		counter.Sample.MovieID = domain.MovieID(*doc.MovieID)
	}
	return counter
}
