// Package data holds the records exchanged with the hosted backend.
package data

import "time"

// Profile is a user's display and presence record. It lives in the
// key-value store under the account id and is separate from the credential.
type Profile struct {
	ID       string `json:"uid" redis:"uid"`
	Name     string `json:"name,omitempty" redis:"name"`
	FullName string `json:"fullName,omitempty" redis:"fullName"`
	Email    string `json:"email,omitempty" redis:"email"`
	Online   bool   `json:"online" redis:"online"`
	// LastSeen is epoch milliseconds.
	LastSeen int64 `json:"lastSeen" redis:"lastSeen"`
}

// LastSeenTime converts LastSeen to a time.Time (zero when never set).
func (p *Profile) LastSeenTime() time.Time {
	if p.LastSeen == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.LastSeen)
}

// LastMessage is the denormalized copy of a conversation's newest message.
type LastMessage struct {
	Text string `bson:"text" json:"text"`
}

// Conversation maps to the conversations collection. ID is derived from the
// member pair (see identity.ConversationID).
type Conversation struct {
	ID          string       `bson:"_id" json:"id"`
	Members     []string     `bson:"members" json:"members"`
	LastMessage *LastMessage `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	// LastUpdated and Created are assigned by the backend; zero means the
	// write has not been acknowledged yet.
	LastUpdated time.Time `bson:"last_updated,omitempty" json:"lastUpdated"`
	Created     time.Time `bson:"created,omitempty" json:"created"`
}

// Message maps to the messages collection. A message belongs to exactly one
// conversation.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	Text           string    `bson:"text" json:"text"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	Timestamp      time.Time `bson:"timestamp,omitempty" json:"timestamp"`
}

// Pending reports whether the backend has not assigned a timestamp yet.
func (m *Message) Pending() bool { return m.Timestamp.IsZero() }

// Before is the order of a conversation's log: timestamp ascending, pending
// messages after timestamped ones, ties broken by id.
func (m *Message) Before(o *Message) bool {
	switch {
	case m.Pending() != o.Pending():
		return !m.Pending()
	case !m.Timestamp.Equal(o.Timestamp):
		return m.Timestamp.Before(o.Timestamp)
	default:
		return m.ID < o.ID
	}
}

// Account is the credential record kept by the accounts service.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
