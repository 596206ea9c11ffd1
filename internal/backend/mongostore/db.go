// Package mongostore is the MongoDB side of the hosted backend: the
// conversations and messages document store with live queries, and the
// credential store behind the accounts service.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is safe for concurrent use and shared by every store
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Client for the named database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second) // fail fast if MongoDB is unreachable

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Connect is lazy; the ping is the actual connection test
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection holds the credential records.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ConversationsCollection holds one document per member pair.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection holds every message, keyed to its conversation.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores query by.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// unique email: duplicate sign-ups fail with a duplicate key error
	_, err := c.UsersCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// the conversation list queries by member, newest first
	_, err = c.ConversationsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}, {Key: "last_updated", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversations index: %w", err)
	}

	// the thread reads one conversation's log in timestamp order
	_, err = c.MessagesCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}

	return nil
}
