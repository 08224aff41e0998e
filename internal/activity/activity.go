// ABOUTME: Activity schema shared by the gateway core and remote skills.
// ABOUTME: Defines activity types, end-of-conversation codes, and constructors.

package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity type constants for the small set of turn payloads the core routes.
const (
	TypeMessage            = "message"
	TypeEndOfConversation  = "endOfConversation"
	TypeConversationUpdate = "conversationUpdate"
	TypeEvent              = "event"
	TypeTrace              = "trace"
)

// End-of-conversation codes carried on the Code field.
const (
	CodeCompletedSuccessfully = "completedSuccessfully"
	CodeUserCancelled         = "userCancelled"
	CodeRootSkillError        = "rootSkillError"
)

// Account identifies one party in a conversation (a user, the gateway, or a skill).
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Activity is one turn's payload. The core treats it as transient: nothing
// here is persisted beyond the turn being processed.
type Activity struct {
	Type           string          `json:"type"`
	ID             string          `json:"id,omitempty"`
	Text           string          `json:"text,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	Code           string          `json:"code,omitempty"` // only meaningful on endOfConversation
	ConversationID string          `json:"conversation_id"`
	ChannelID      string          `json:"channel_id,omitempty"`
	ServiceURL     string          `json:"service_url,omitempty"` // callback base the receiver replies to
	From           Account         `json:"from,omitempty"`
	Recipient      Account         `json:"recipient,omitempty"`
	MembersAdded   []Account       `json:"members_added,omitempty"` // only on conversationUpdate
	Timestamp      time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates a message activity addressed to the given conversation.
func NewMessage(conversationID, text string) *Activity {
	return &Activity{
		Type:           TypeMessage,
		ID:             uuid.New().String(),
		Text:           text,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

// NewEndOfConversation creates a termination activity with the given code.
func NewEndOfConversation(conversationID, code string) *Activity {
	return &Activity{
		Type:           TypeEndOfConversation,
		ID:             uuid.New().String(),
		Code:           code,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

// NewTrace creates a trace activity carrying diagnostic detail. Traces are
// for operator-facing surfaces only and must never be delivered to end users.
func NewTrace(conversationID, label string, detail any) *Activity {
	value, _ := json.Marshal(detail)
	return &Activity{
		Type:           TypeTrace,
		ID:             uuid.New().String(),
		Text:           label,
		Value:          value,
		ConversationID: conversationID,
		Timestamp:      time.Now().UTC(),
	}
}

// IsTermination reports whether the activity ends a delegation.
func (a *Activity) IsTermination() bool {
	return a.Type == TypeEndOfConversation
}

// Clone returns a shallow copy so callers can rewrite addressing fields
// (conversation id, service URL) without mutating the inbound activity.
func (a *Activity) Clone() *Activity {
	c := *a
	return &c
}
