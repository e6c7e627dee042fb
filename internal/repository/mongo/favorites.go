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

type favoriteDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	MovieID    int64              `bson:"movie_id"`
	Title      string             `bson:"title"`
	PosterURL  *string            `bson:"poster_url"`
	IsFavorite *int               `bson:"is_favorite"`
	CreatedAt  int64              `bson:"createdAt"`
}

// FavoriteRepository keeps one document per movie id. Toggle is one
// pipeline update, so two concurrent toggles are two flips.
type FavoriteRepository struct {
	collection *mongo.Collection
}

func NewFavoriteRepository(client *mongo.Client, dbName, collectionName string) *FavoriteRepository {
	if collectionName == "" {
		collectionName = DefaultFavoritesCollection
	}
	return &FavoriteRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *FavoriteRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "movie_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_favorite", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *FavoriteRepository) Get(ctx context.Context, movieID domain.MovieID) (domain.Favorite, error) {
	var doc favoriteDoc
	if err := r.collection.FindOne(ctx, bson.M{"movie_id": int64(movieID)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Favorite{}, domain.ErrNotFound
		}
		return domain.Favorite{}, err
	}
	return favoriteFromDoc(doc), nil
}

func (r *FavoriteRepository) Toggle(ctx context.Context, snapshot domain.MovieSnapshot) (domain.Favorite, error) {
	filter := bson.M{"movie_id": int64(snapshot.MovieID)}
	update := buildTogglePipeline(snapshot, nowMillis())
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc favoriteDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return domain.Favorite{}, err
	}
	return favoriteFromDoc(doc), nil
}

// buildTogglePipeline flips is_favorite (missing counts as 0) and fills the
// snapshot fields only for a new document, detected by a missing createdAt.
// Snapshot values go through $literal so titles starting with "$" are stored
// as text instead of being read as field paths.
func buildTogglePipeline(snapshot domain.MovieSnapshot, createdAt int64) mongo.Pipeline {
	isNew := bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$createdAt"}}, "missing"}}}
	onInsert := func(field string, value any) bson.D {
		return bson.D{{Key: "$cond", Value: bson.A{isNew, literal(value), "$" + field}}}
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "is_favorite", Value: bson.D{{Key: "$subtract", Value: bson.A{
				1,
				bson.D{{Key: "$ifNull", Value: bson.A{"$is_favorite", 0}}},
			}}}},
			{Key: "title", Value: onInsert("title", snapshot.Title)},
			{Key: "poster_url", Value: onInsert("poster_url", optionalString(snapshot.PosterURL))},
			{Key: "createdAt", Value: onInsert("createdAt", createdAt)},
		}}},
	}
}

func literal(value any) bson.D {
	return bson.D{{Key: "$literal", Value: value}}
}

// ListFavorites returns documents with is_favorite == 1, newest first.
func (r *FavoriteRepository) ListFavorites(ctx context.Context) ([]domain.Favorite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_favorite": 1}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []favoriteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]domain.Favorite, 0, len(docs))
	for _, doc := range docs {
		items = append(items, favoriteFromDoc(doc))
	}
	return items, nil
}

func favoriteFromDoc(doc favoriteDoc) domain.Favorite {
	fav := domain.Favorite{
		MovieID:    domain.MovieID(doc.MovieID),
		Title:      doc.Title,
		PosterURL:  derefString(doc.PosterURL),
		IsFavorite: doc.IsFavorite != nil && *doc.IsFavorite == 1,
		CreatedAt:  time.UnixMilli(doc.CreatedAt).UTC(),
	}
	if !doc.ID.IsZero() {
		fav.ID = doc.ID.Hex()
	}
	return fav
}
