package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
)

const defaultDatabaseName = "kokoro"

var Client *mongo.Client
var DB *mongo.Database

// Connect opens the MongoDB connection holding journal entries.
// The database name comes from the URI path, defaulting to "kokoro".
func Connect(mongoURI string, log *zap.Logger) error {
	// Use longer timeout for Atlas connections
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(databaseName(mongoURI))

	log.Info("connected to MongoDB", zap.String("database", DB.Name()))
	return nil
}

func databaseName(mongoURI string) string {
	cs, err := connstring.Parse(mongoURI)
	if err != nil || cs.Database == "" {
		return defaultDatabaseName
	}
	return cs.Database
}

func Disconnect() error {
	if Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
