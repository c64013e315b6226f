package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the lookups the widget runtime relies on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return errors.New("mongo database is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	uniqueID := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetName("uniq_id").SetUnique(true),
	}

	if _, err := db.Collection("chatbots").Indexes().CreateOne(ctx, uniqueID); err != nil {
		return err
	}

	// sessions listed per bot, newest first
	if _, err := db.Collection("sessions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueID,
		{
			Keys:    bson.D{{Key: "chatbot_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_bot_created"),
		},
	}); err != nil {
		return err
	}

	// transcript order
	if _, err := db.Collection("messages").Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueID,
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("by_session_created"),
		},
	}); err != nil {
		return err
	}

	_, err := db.Collection("appointments").Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueID,
		{
			Keys:    bson.D{{Key: "chatbot_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName("by_bot_start"),
		},
	})
	return err
}
