package messaging

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/emerald-details/internal/logging"
)

type memRepo struct {
	mu       sync.Mutex
	convs    map[uuid.UUID]*Conversation
	messages map[uuid.UUID][]Message
}

func newMemRepo() *memRepo {
	return &memRepo{convs: map[uuid.UUID]*Conversation{}, messages: map[uuid.UUID][]Message{}}
}

func (r *memRepo) GetOrCreate(_ context.Context, a, b Participant, appointmentID *uuid.UUID) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.ParticipantA == a.ID && c.ParticipantB == b.ID {
			cp := *c
			return &cp, nil
		}
	}
	c := &Conversation{
		ID:            uuid.New(),
		ParticipantA:  a.ID,
		ParticipantB:  b.ID,
		NameA:         a.Name,
		NameB:         b.Name,
		AppointmentID: appointmentID,
		CreatedAt:     time.Now(),
	}
	r.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conversation
	for _, c := range r.convs {
		if c.Has(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) AppendMessage(_ context.Context, m Message) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[m.ConversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	r.messages[c.ID] = append(r.messages[c.ID], m)
	c.LastMessage = &m.Content
	c.LastMessageAt = &m.SentAt
	switch m.ReceiverID {
	case c.ParticipantA:
		c.UnreadA++
	case c.ParticipantB:
		c.UnreadB++
	}
	return &m, nil
}

func (r *memRepo) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := append([]Message(nil), r.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *memRepo) MarkRead(_ context.Context, conversationID, readerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	switch readerID {
	case c.ParticipantA:
		c.UnreadA = 0
	case c.ParticipantB:
		c.UnreadB = 0
	}
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo, NewHub(logging.Discard()), logging.Discard())
	var (
		mu   sync.Mutex
		tick = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return svc, repo
}

var (
	alice = Participant{ID: uuid.New(), Name: "Alice"}
	bob   = Participant{ID: uuid.New(), Name: "Bob"}
)

func TestStartConversation_SamePairSameID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)
	again, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)
	reversed, err := svc.StartConversation(ctx, bob, alice, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ID, reversed.ID)
	assert.Zero(t, first.UnreadA)
	assert.Zero(t, first.UnreadB)

	_, err = svc.StartConversation(ctx, alice, alice, nil)
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestSend_IncrementsOnlyReceiver(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, c.ID, alice, "on my way")
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnreadFor(bob.ID))
	assert.Equal(t, 0, got.UnreadFor(alice.ID))
	assert.Equal(t, "on my way", *got.LastMessage)

	_, err = svc.Send(ctx, c.ID, bob, "thanks")
	require.NoError(t, err)
	got, _ = svc.Get(ctx, c.ID, bob.ID)
	assert.Equal(t, 3, got.UnreadFor(bob.ID))
	assert.Equal(t, 1, got.UnreadFor(alice.ID))

	require.NoError(t, svc.MarkRead(ctx, c.ID, bob.ID))
	got, _ = svc.Get(ctx, c.ID, bob.ID)
	assert.Equal(t, 0, got.UnreadFor(bob.ID))
	assert.Equal(t, 1, got.UnreadFor(alice.ID))
}

func TestSend_Rejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)

	_, err = svc.Send(ctx, c.ID, alice, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	mallory := Participant{ID: uuid.New(), Name: "Mallory"}
	_, err = svc.Send(ctx, c.ID, mallory, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.Send(ctx, uuid.New(), alice, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func receive(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case m, ok := <-sub.Events():
		require.True(t, ok, "subscription closed early")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestSubscribe_HistoryThenLive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)

	_, err = svc.Send(ctx, c.ID, alice, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, c.ID, bob, "two")
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, "one", receive(t, sub).Content)
	assert.Equal(t, "two", receive(t, sub).Content)

	_, err = svc.Send(ctx, c.ID, alice, "three")
	require.NoError(t, err)
	live := receive(t, sub)
	assert.Equal(t, "three", live.Content)
	assert.Equal(t, alice.ID, live.SenderID)
	assert.Equal(t, bob.ID, live.ReceiverID)
}

func TestSubscribe_CloseEndsStream(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)

	sub, err := svc.Subscribe(ctx, c.ID, alice.ID)
	require.NoError(t, err)
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}

	_, err = svc.Send(ctx, c.ID, bob, "anyone there?")
	require.NoError(t, err)
}

func TestSubscribe_Outsider(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.StartConversation(ctx, alice, bob, nil)
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(logging.Discard())
	ctx := context.Background()

	ch1, stop1, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)
	ch2, stop2, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)
	defer stop2()

	require.NoError(t, hub.Publish(ctx, "t", []byte("x")))
	assert.Equal(t, []byte("x"), <-ch1)
	assert.Equal(t, []byte("x"), <-ch2)

	stop1()
	_, ok := <-ch1
	assert.False(t, ok)
	require.NoError(t, hub.Publish(ctx, "t", []byte("y")))
	assert.Equal(t, []byte("y"), <-ch2)
	require.NoError(t, hub.Publish(ctx, "other", []byte("z")))
}

func TestHub_StalledSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, stopStalled, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)
	defer stopStalled()

	const sent = hubBuffer + 10
	for i := 0; i < sent; i++ {
		require.NoError(t, hub.Publish(ctx, "t", []byte{byte(i)}))
	}
	assert.NoError(t, ctx.Err(), "publishing finished before the deadline")
	assert.GreaterOrEqual(t, hub.Dropped(), uint64(sent-hubBuffer-1))

	// A fresh subscriber on the same topic still gets new messages.
	live, stopLive, err := hub.Subscribe(ctx, "t")
	require.NoError(t, err)
	defer stopLive()
	require.NoError(t, hub.Publish(ctx, "t", []byte("fresh")))
	select {
	case got := <-live:
		assert.Equal(t, []byte("fresh"), got)
	case <-ctx.Done():
		t.Fatal("live subscriber got nothing")
	}
}
