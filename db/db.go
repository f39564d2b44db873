package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/civicworks/remedy/config"
	"github.com/civicworks/remedy/logger"
)

// Database wraps the document store holding complaint records. Records live
// in exactly one of two collections: the active collection while a
// complaint is pending or approved, and the resolved collection afterward.
type Database struct {
	client   *mongo.Client
	active   *mongo.Collection
	resolved *mongo.Collection
}

// NewDatabase connects to the document store and verifies the connection
// with a ping before returning.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	connectTimeout, err := cfg.GetConnectTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid connect timeout: %w", err)
	}

	logger.Info("connecting to document store", "name", cfg.Name)

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	database := client.Database(cfg.Name)
	return &Database{
		client:   client,
		active:   database.Collection(cfg.ActiveCollection),
		resolved: database.Collection(cfg.ResolvedCollection),
	}, nil
}

// Close disconnects from the document store
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
