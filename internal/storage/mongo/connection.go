package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client manages the MongoDB connection shared by the collection stores
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger arbor.ILogger
	config *common.MongoConfig
}

// NewClient connects and pings the server so a bad connection string fails at startup
func NewClient(ctx context.Context, logger arbor.ILogger, config *common.MongoConfig) (*Client, error) {
	opts := options.Client().
		ApplyURI(config.ConnectionString).
		SetConnectTimeout(common.ParseDuration(config.ConnectTimeout, 10*time.Second)).
		SetServerSelectionTimeout(common.ParseDuration(config.ServerSelectionTTL, 10*time.Second))

	logger.Debug().Str("database", config.Database).Msg("Connecting to MongoDB")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}

	logger.Info().
		Str("database", config.Database).
		Str("schemas", config.SchemaCollection).
		Str("keymaps", config.KeyMapCollection).
		Msg("MongoDB connection established")

	return &Client{
		client: client,
		db:     client.Database(config.Database),
		logger: logger,
		config: config,
	}, nil
}

// Collection returns a collection of the configured database
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// Close disconnects from the server
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
