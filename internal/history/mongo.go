package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	gamesCollection = "chess_game_history"
	usersCollection = "chess_users"
)

type mongoRepository struct {
	client *mongo.Client
	games  *mongo.Collection
	users  *mongo.Collection
}

// OpenMongo connects to uri and uses database db.
func OpenMongo(ctx context.Context, uri, db string) (Repository, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	database := client.Database(db)
	r := &mongoRepository{
		client: client,
		games:  database.Collection(gamesCollection),
		users:  database.Collection(usersCollection),
	}
	_, err = r.games.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "whiteAccount", Value: 1}, {Key: "endTime", Value: -1}}},
		{Keys: bson.D{{Key: "blackAccount", Value: 1}, {Key: "endTime", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return r, nil
}

func (r *mongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *mongoRepository) InsertGame(ctx context.Context, game *GameRecord) error {
	if game == nil || strings.TrimSpace(game.ID) == "" {
		return ErrInvalidGame
	}
	if _, err := r.games.InsertOne(ctx, game); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateGame
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *mongoRepository) GetRecentGames(ctx context.Context, accountID string, limit int) ([]*GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"whiteAccount": accountID},
		bson.M{"blackAccount": accountID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "endTime", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.games.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find games: %w", err)
	}
	games := make([]*GameRecord, 0, limit)
	if err := cur.All(ctx, &games); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	return games, nil
}

func (r *mongoRepository) GetGame(ctx context.Context, id string) (*GameRecord, error) {
	var g GameRecord
	err := r.games.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	return &g, nil
}

func (r *mongoRepository) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	var p Profile
	err := r.users.FindOne(ctx, bson.M{"_id": accountID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

func (r *mongoRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	if p == nil {
		return nil
	}
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": p.AccountID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
