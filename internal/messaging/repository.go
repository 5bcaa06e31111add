package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not part of this conversation")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrEmptyMessage         = errors.New("message is empty")
)

type Repository interface {
	// GetOrCreate returns the conversation of the pair, creating it with zero
	// unread counters if none exists. a and b must already be ordered.
	GetOrCreate(ctx context.Context, a, b Participant, appointmentID *uuid.UUID) (*Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// ListForUser returns the user's conversations, most recent activity first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Conversation, error)

	// AppendMessage stores m, bumps the receiver's unread counter by one and
	// updates the last message preview, atomically.
	AppendMessage(ctx context.Context, m Message) (*Message, error)
	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
	// MarkRead zeroes reader's unread counter.
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error
}
