package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/emerald-details/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const conversationColumns = `id, participant_a, participant_b, name_a, name_b, appointment_id,
	last_message, last_message_at, unread_a, unread_b, created_at`

const messageColumns = `id, conversation_id, sender_id, sender_name, receiver_id, appointment_id, content, sent_at, is_read`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID,
		&c.ParticipantA,
		&c.ParticipantB,
		&c.NameA,
		&c.NameB,
		&c.AppointmentID,
		&c.LastMessage,
		&c.LastMessageAt,
		&c.UnreadA,
		&c.UnreadB,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.SenderName,
		&m.ReceiverID,
		&m.AppointmentID,
		&m.Content,
		&m.SentAt,
		&m.Read,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgRepository) GetOrCreate(ctx context.Context, a, b Participant, appointmentID *uuid.UUID) (*Conversation, error) {
	// the no-op update makes RETURNING yield the existing row on conflict
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, name_a, name_b, appointment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (participant_a, participant_b)
		DO UPDATE SET participant_a = EXCLUDED.participant_a
		RETURNING `+conversationColumns,
		uuid.New(), a.ID, b.ID, a.Name, b.Name, appointmentID)
	return scanConversation(row)
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
}

func (r *PgRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) AppendMessage(ctx context.Context, m Message) (*Message, error) {
	var stored *Message
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, sender_name, receiver_id, appointment_id, content, sent_at, is_read)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
			RETURNING `+messageColumns,
			m.ID, m.ConversationID, m.SenderID, m.SenderName, m.ReceiverID, m.AppointmentID, m.Content, m.SentAt)
		var err error
		if stored, err = scanMessage(row); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE conversations
			SET last_message = $2,
			    last_message_at = $3,
			    unread_a = unread_a + CASE WHEN participant_a = $4 THEN 1 ELSE 0 END,
			    unread_b = unread_b + CASE WHEN participant_b = $4 THEN 1 ELSE 0 END
			WHERE id = $1
		`, m.ConversationID, m.Content, m.SentAt, m.ReceiverID)
		if err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *PgRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1
			ORDER BY sent_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC, id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END
		WHERE id = $1
	`, conversationID, readerID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}
