package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/PaulBabatuyi/pairchat/internal/backend"
	"github.com/PaulBabatuyi/pairchat/internal/backend/accounts"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// user maps to the users collection.
type user struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (u *user) account() *data.Account {
	return &data.Account{
		ID:           u.ID.Hex(),
		Email:        u.Email,
		PasswordHash: u.Password,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// UsersStore is the credential store of the accounts service.
type UsersStore struct {
	coll *mongo.Collection
}

var _ accounts.Credentials = (*UsersStore)(nil)

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a credential with an already hashed password. The unique
// email index turns a second sign-up into backend.ErrDuplicateAccount.
func (u *UsersStore) CreateUser(ctx context.Context, email, hashedPassword string) (*data.Account, error) {
	now := time.Now().UTC()
	doc := &user{
		Email:     normalize.Email(email),
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, backend.ErrDuplicateAccount
		}
		return nil, err
	}

	// the driver generates _id; it becomes the account id in session tokens
	doc.ID = result.InsertedID.(bson.ObjectID)
	return doc.account(), nil
}

// GetUserByEmail finds a credential by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*data.Account, error) {
	return u.findOne(ctx, bson.D{{Key: "email", Value: normalize.Email(email)}})
}

// GetUserByID finds a credential by its hex id. A malformed id is treated as
// not found.
func (u *UsersStore) GetUserByID(ctx context.Context, id string) (*data.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, backend.ErrNotFound
	}
	return u.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (u *UsersStore) findOne(ctx context.Context, filter bson.D) (*data.Account, error) {
	var doc user
	err := u.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.account(), nil
}
