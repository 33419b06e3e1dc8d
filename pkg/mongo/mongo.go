package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI                string `split_words:"true" required:"true"`
	Database           string `split_words:"true" default:"aesthetiq"`
	ConnectTimeout     int    `split_words:"true" default:"10"`
	SelectionTimeout   int    `split_words:"true" default:"5"`
	MaxPoolSize        uint64 `split_words:"true" default:"20"`
	ItemsCollection    string `split_words:"true" default:"catalog_items"`
	ProfilesCollection string `split_words:"true" default:"user_profiles"`
}

func (c *Config) New(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(time.Duration(c.ConnectTimeout) * time.Second).
		SetServerSelectionTimeout(time.Duration(c.SelectionTimeout) * time.Second).
		SetMaxPoolSize(c.MaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}

func (c *Config) MustNew(ctx context.Context) *mongo.Client {
	client, err := c.New(ctx)
	if err != nil {
		panic(err)
	}

	return client
}
