package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// DocumentStore keeps conversations and messages. Every timestamp is
// assigned by the server.
type DocumentStore struct {
	client *mongo.Client
	convs  *mongo.Collection
	msgs   *mongo.Collection
}

var (
	_ backend.Documents    = (*DocumentStore)(nil)
	_ backend.AtomicSender = (*DocumentStore)(nil)
)

// NewDocumentStore returns a store over the client's collections.
func NewDocumentStore(c *Client) *DocumentStore {
	return &DocumentStore{
		client: c.client,
		convs:  c.ConversationsCollection(),
		msgs:   c.MessagesCollection(),
	}
}

// GetConversation reads one conversation by id.
func (s *DocumentStore) GetConversation(ctx context.Context, id string) (*data.Conversation, error) {
	var conv data.Conversation
	err := s.convs.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation upserts the conversation. created and last_updated keep
// their stored values and fall back to the server clock, so two clients
// racing to start the same conversation agree on when it began.
func (s *DocumentStore) CreateConversation(ctx context.Context, id string, members []string) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "members", Value: bson.D{{Key: "$literal", Value: members}}},
			{Key: "created", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$created", "$$NOW"}}}},
			{Key: "last_updated", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$last_updated", "$$NOW"}}}},
		}}},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.convs.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, opts); err != nil {
		return fmt.Errorf("create conversation %s: %w", id, err)
	}
	return nil
}

// UpdateSummary overwrites the denormalized last message and stamps
// last_updated.
func (s *DocumentStore) UpdateSummary(ctx context.Context, conversationID, text string) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "last_message", Value: data.LastMessage{Text: text}}}},
		{Key: "$currentDate", Value: bson.D{{Key: "last_updated", Value: true}}},
	}
	res, err := s.convs.UpdateOne(ctx, bson.D{{Key: "_id", Value: conversationID}}, update)
	if err != nil {
		return fmt.Errorf("update summary %s: %w", conversationID, err)
	}
	if res.MatchedCount == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// AppendMessage stores a message. The insert is an upsert on a fresh id so
// the server can stamp the timestamp with $currentDate.
func (s *DocumentStore) AppendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error) {
	id := bson.NewObjectID().Hex()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "conversation_id", Value: conversationID},
			{Key: "text", Value: text},
			{Key: "sender_id", Value: senderID},
		}},
		{Key: "$currentDate", Value: bson.D{{Key: "timestamp", Value: true}}},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.msgs.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, opts); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	var m data.Message
	if err := s.msgs.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m); err != nil {
		return nil, fmt.Errorf("read appended message: %w", err)
	}
	return &m, nil
}

// SendMessage appends the message and updates the summary in one
// transaction. Transactions need a replica set.
func (s *DocumentStore) SendMessage(ctx context.Context, conversationID, senderID, text string) (*data.Message, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		m, err := s.AppendMessage(ctx, conversationID, senderID, text)
		if err != nil {
			return nil, err
		}
		if err := s.UpdateSummary(ctx, conversationID, text); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*data.Message), nil
}

// WatchConversations follows the conversations containing member.
func (s *DocumentStore) WatchConversations(ctx context.Context, member string, fn func(backend.Snapshot[*data.Conversation])) (backend.Stop, error) {
	return watch(ctx, liveQuery[*data.Conversation]{
		coll:   s.convs,
		filter: bson.D{{Key: "members", Value: member}},
		sort:   bson.D{{Key: "_id", Value: 1}},
		match:  bson.D{{Key: "fullDocument.members", Value: member}},
		key:    func(c *data.Conversation) string { return c.ID },
	}, fn)
}

// WatchMessages follows one conversation's log in timestamp order.
func (s *DocumentStore) WatchMessages(ctx context.Context, conversationID string, fn func(backend.Snapshot[*data.Message])) (backend.Stop, error) {
	return watch(ctx, liveQuery[*data.Message]{
		coll:   s.msgs,
		filter: bson.D{{Key: "conversation_id", Value: conversationID}},
		sort:   bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
		match:  bson.D{{Key: "fullDocument.conversation_id", Value: conversationID}},
		key:    func(m *data.Message) string { return m.ID },
	}, fn)
}

// liveQuery is a find query kept current by a change stream.
type liveQuery[T any] struct {
	coll   *mongo.Collection
	filter bson.D
	sort   bson.D
	// match selects the change events that can affect the result
	match bson.D
	key   func(T) string
}

func (q liveQuery[T]) find(ctx context.Context) ([]T, error) {
	cursor, err := q.coll.Find(ctx, q.filter, options.Find().SetSort(q.sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// watch opens the change stream before the first read so no write between
// the two is lost. Each relevant event re-runs the query and delivers the
// delta against the previous result.
func watch[T any](ctx context.Context, q liveQuery[T], fn func(backend.Snapshot[T])) (backend.Stop, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			q.match,
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := q.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open change stream on %s: %w", q.coll.Name(), err)
	}

	go func() {
		defer cs.Close(context.Background())

		var prev []T
		emit := func() {
			next, err := q.find(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("collection", q.coll.Name()).Msg("live query read")
				}
				return
			}
			fn(backend.Diff(prev, next, q.key))
			prev = next
		}

		emit()
		for cs.Next(ctx) {
			emit()
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("collection", q.coll.Name()).Msg("change stream closed")
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
