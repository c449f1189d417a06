package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const appName = "bag-service"

// MongoSettings configures the session store client. Zero pool sizes and
// timeouts fall back to the driver defaults.
type MongoSettings struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
}

func (s MongoSettings) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(s.URI).SetAppName(appName)
	if s.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(s.MaxPoolSize)
	}
	if s.MinPoolSize > 0 {
		opts.SetMinPoolSize(s.MinPoolSize)
	}
	if s.ConnectTimeout > 0 {
		opts.SetConnectTimeout(s.ConnectTimeout).SetServerSelectionTimeout(s.ConnectTimeout)
	}
	return opts
}

// ConnectMongoDB connects and pings, so a bad URI or an unreachable server
// fails at startup instead of on the first request.
func ConnectMongoDB(ctx context.Context, settings MongoSettings) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, settings.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(settings.Database), nil
}
