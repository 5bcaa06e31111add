package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultHistory = 100
	MaxContentLen  = 2000
)

type Service struct {
	repo   Repository
	broker Broker
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, broker Broker, logger *slog.Logger) *Service {
	if broker == nil {
		broker = NewHub(logger)
	}
	return &Service{repo: repo, broker: broker, logger: logger, now: time.Now}
}

func topic(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

// StartConversation returns the existing conversation between me and other,
// in either order, or creates one.
func (s *Service) StartConversation(ctx context.Context, me, other Participant, appointmentID *uuid.UUID) (*Conversation, error) {
	if me.ID == other.ID {
		return nil, ErrSelfConversation
	}
	a, b := orderPair(me, other)
	c, err := s.repo.GetOrCreate(ctx, a, b, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return c, nil
}

func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Get loads a conversation userID takes part in.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Conversation, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Has(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// Send appends a message from sender to the other participant and pushes it
// to live subscribers.
func (s *Service) Send(ctx context.Context, conversationID uuid.UUID, sender Participant, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxContentLen {
		return nil, fmt.Errorf("message longer than %d bytes", MaxContentLen)
	}

	c, err := s.Get(ctx, conversationID, sender.ID)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.AppendMessage(ctx, Message{
		ID:             uuid.New(),
		ConversationID: c.ID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		ReceiverID:     c.Other(sender.ID).ID,
		AppointmentID:  c.AppointmentID,
		Content:        content,
		SentAt:         s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	payload, err := json.Marshal(stored)
	if err == nil {
		err = s.broker.Publish(ctx, topic(c.ID), payload)
	}
	if err != nil {
		// stored; readers pick it up from history
		s.logger.Warn("publish message", "conversation_id", c.ID, "message_id", stored.ID, "err", err)
	}
	return stored, nil
}

func (s *Service) Messages(ctx context.Context, conversationID, userID uuid.UUID, limit int) ([]Message, error) {
	if _, err := s.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultHistory {
		limit = DefaultHistory
	}
	return s.repo.ListMessages(ctx, conversationID, limit)
}

func (s *Service) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error {
	if _, err := s.Get(ctx, conversationID, readerID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, conversationID, readerID)
}

// Subscription delivers a conversation's messages in order: recent history
// first, then live messages, without duplicates.
type Subscription struct {
	events chan Message
	cancel context.CancelFunc
	once   sync.Once
}

func (s *Subscription) Events() <-chan Message { return s.events }

// Close stops delivery; Events is closed shortly after.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Subscribe opens a live feed for userID. The broker subscription is made
// before history is read, so nothing sent in between is lost.
func (s *Service) Subscribe(ctx context.Context, conversationID, userID uuid.UUID) (*Subscription, error) {
	if _, err := s.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	live, stop, err := s.broker.Subscribe(subCtx, topic(conversationID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	history, err := s.repo.ListMessages(subCtx, conversationID, DefaultHistory)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("load history: %w", err)
	}

	sub := &Subscription{events: make(chan Message, 16), cancel: cancel}

	go func() {
		defer close(sub.events)
		defer stop()

		emit := func(m Message) bool {
			select {
			case sub.events <- m:
				return true
			case <-subCtx.Done():
				return false
			}
		}

		seen := make(map[uuid.UUID]struct{}, len(history))
		for _, m := range history {
			seen[m.ID] = struct{}{}
			if !emit(m) {
				return
			}
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case raw, ok := <-live:
				if !ok {
					return
				}
				var m Message
				if err := json.Unmarshal(raw, &m); err != nil {
					s.logger.Warn("drop malformed message", "conversation_id", conversationID, "err", err)
					continue
				}
				if _, dup := seen[m.ID]; dup {
					continue
				}
				if !emit(m) {
					return
				}
			}
		}
	}()

	return sub, nil
}
