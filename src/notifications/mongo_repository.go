package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/theleywin/talentnest-graph/src/models"
)

const notificationsCollection = "notifications"

// MongoRepository keeps notifications in the document store, one document
// per notification keyed by its id.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Repository = (*MongoRepository)(nil)

// ConnectMongo dials uri, checks the server answers and ensures the
// recipient/createdAt index used by every listing.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}

	repo := &MongoRepository{
		client:     client,
		collection: client.Database(database).Collection(notificationsCollection),
	}
	_, err = repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo create index")
	}
	return repo, nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) Insert(ctx context.Context, n models.Notification) error {
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

func (r *MongoRepository) MarkRead(ctx context.Context, recipient, id string, at time.Time) error {
	filter := bson.M{
		"_id":       id,
		"recipient": recipient, // only the owner may update it
		"readAt":    nil,
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"readAt": at}})
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if res.ModifiedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "recipient": recipient})
	if err != nil {
		return errors.Wrap(err, "find notification")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) MarkAllRead(ctx context.Context, recipient string, at time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"recipient": recipient, "readAt": nil},
		bson.M{"$set": bson.M{"readAt": at}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark all notifications read")
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) Delete(ctx context.Context, recipient, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "recipient": recipient})
	if err != nil {
		return errors.Wrap(err, "delete notification")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"recipient": recipient, "readAt": nil})
	if err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}
	return count, nil
}

func (r *MongoRepository) List(ctx context.Context, recipient string, limit, offset int) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{"recipient": recipient}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find notifications")
	}
	defer cursor.Close(ctx)

	out := make([]models.Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	for i := range out {
		if err := out[i].Hydrate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
