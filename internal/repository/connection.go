package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSettings describes the session store connection. Zero pool and timeout
// values fall back to the defaults below.
type MongoSettings struct {
	URI                    string
	Database               string
	AppName                string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

const (
	defaultMaxPoolSize            = 100
	defaultMinPoolSize            = 10
	defaultConnectTimeout         = 10 * time.Second
	defaultServerSelectionTimeout = 5 * time.Second
)

func ConnectMongoDB(ctx context.Context, s MongoSettings) (*mongo.Database, error) {
	if s.Database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}

	client, err := mongo.Connect(ctx, clientOptions(s))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(s.Database), nil
}

func clientOptions(s MongoSettings) *options.ClientOptions {
	maxPool, minPool := s.MaxPoolSize, s.MinPoolSize
	if maxPool == 0 {
		maxPool = defaultMaxPoolSize
	}
	if minPool == 0 {
		minPool = defaultMinPoolSize
	}
	if minPool > maxPool {
		minPool = maxPool
	}

	connectTimeout := s.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	selectionTimeout := s.ServerSelectionTimeout
	if selectionTimeout <= 0 {
		selectionTimeout = defaultServerSelectionTimeout
	}

	opts := options.Client().
		ApplyURI(s.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(selectionTimeout).
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(minPool)
	if s.AppName != "" {
		opts.SetAppName(s.AppName)
	}
	return opts
}
