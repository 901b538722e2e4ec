package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	defaultMaxPoolSize    = 10
	defaultConnectTimeout = 10 * time.Second
)

// Config selects the deployment and database holding conversations
type Config struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// Client owns the driver connection for the conversation store
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// Connect dials the deployment and waits until a primary answers, so a bad URI
// fails at startup instead of on the first turn
func Connect(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.URI == "" || config.Database == "" {
		return nil, fmt.Errorf("mongo URI and database are required")
	}
	if config.MaxPoolSize == 0 {
		config.MaxPoolSize = defaultMaxPoolSize
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaultConnectTimeout
	}

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetAppName("jurubahasa").
		SetMaxPoolSize(config.MaxPoolSize).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(config.ConnectTimeout)

	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach MongoDB primary: %w", err)
	}

	logger.Info("Conversation store connected", zap.String("database", config.Database))

	return &Client{
		client:   client,
		database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Database returns the conversation database
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Close disconnects; pending operations get until ctx is done
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Conversation store disconnected")
	return nil
}
