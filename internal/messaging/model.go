package messaging

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Conversation is keyed by an unordered pair of participants. The pair is
// stored with A < B so both orders map to the same row.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantA  uuid.UUID  `json:"participant_a"`
	ParticipantB  uuid.UUID  `json:"participant_b"`
	NameA         string     `json:"name_a"`
	NameB         string     `json:"name_b"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadA       int        `json:"unread_a"`
	UnreadB       int        `json:"unread_b"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (c Conversation) Has(id uuid.UUID) bool {
	return id == c.ParticipantA || id == c.ParticipantB
}

// Other returns the participant that is not id.
func (c Conversation) Other(id uuid.UUID) Participant {
	if id == c.ParticipantA {
		return Participant{ID: c.ParticipantB, Name: c.NameB}
	}
	return Participant{ID: c.ParticipantA, Name: c.NameA}
}

func (c Conversation) UnreadFor(id uuid.UUID) int {
	switch id {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderName     string     `json:"sender_name"`
	ReceiverID     uuid.UUID  `json:"receiver_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	Content        string     `json:"content"`
	SentAt         time.Time  `json:"sent_at"`
	Read           bool       `json:"is_read"`
}

// orderPair sorts two participants by id bytes, the same order Postgres
// uses for the uuid type.
func orderPair(x, y Participant) (Participant, Participant) {
	if bytes.Compare(x.ID[:], y.ID[:]) > 0 {
		return y, x
	}
	return x, y
}
