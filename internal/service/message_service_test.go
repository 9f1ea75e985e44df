package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository"
	"github.com/mkrecak/backstage/internal/repository/memory"
)

func newMessageFixture(t *testing.T) (*MessageService, *ConversationService, *fakeBroadcaster, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	convSvc := NewConversationService(store.Conversations())
	msgSvc := NewMessageService(store.Messages(), store.Conversations(), 3*time.Second)
	bc := newFakeBroadcaster()
	msgSvc.SetBroadcaster(bc)
	return msgSvc, convSvc, bc, store
}

func TestSend_BroadcastsExcludingOrigin(t *testing.T) {
	msgSvc, convSvc, bc, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	origin := uuid.New()
	msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "hey"}, origin)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.State != domain.DeliverySent {
		t.Fatalf("new message should be %q, got %q", domain.DeliverySent, msg.State)
	}

	events := bc.recorded()
	if len(events) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(events))
	}
	created, ok := events[0].event.(domain.MessageCreated)
	if !ok {
		t.Fatalf("expected MessageCreated, got %T", events[0].event)
	}
	if created.Message.ID != msg.ID {
		t.Fatalf("broadcast message mismatch")
	}
	if len(events[0].excluded) != 1 || events[0].excluded[0] != origin {
		t.Fatalf("originating session was not excluded: %v", events[0].excluded)
	}
}

func TestSend_NonParticipantSeesNotFound(t *testing.T) {
	msgSvc, convSvc, _, _ := newMessageFixture(t)
	ctx := context.Background()

	conv, err := convSvc.CreateDirect(ctx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	_, err = msgSvc.Send(ctx, uuid.New(), conv.ID, SendMessageInput{Content: "hi"}, uuid.Nil)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSend_ArchivedRejected(t *testing.T) {
	msgSvc, convSvc, _, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	if err := convSvc.Archive(ctx, conv.ID, a); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err = msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "too late"}, uuid.Nil)
	if !errors.Is(err, ErrArchived) {
		t.Fatalf("expected ErrArchived, got %v", err)
	}
}

func TestSend_PersistTimeoutFailsClosed(t *testing.T) {
	store := memory.NewStore()
	convSvc := NewConversationService(store.Conversations())
	slow := &slowMessageRepo{inner: store.Messages()}
	msgSvc := NewMessageService(slow, store.Conversations(), 3*time.Second)
	bc := newFakeBroadcaster()
	msgSvc.SetBroadcaster(bc)

	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	_, err = msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "lost"}, uuid.Nil)
	if !errors.Is(err, ErrPersistTimeout) {
		t.Fatalf("expected ErrPersistTimeout, got %v", err)
	}
	if len(bc.recorded()) != 0 {
		t.Fatalf("timed-out send must not broadcast")
	}
}

func TestMarkRead_IdempotentSingleEvent(t *testing.T) {
	msgSvc, convSvc, bc, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "hello"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := msgSvc.MarkRead(ctx, msg.ID, b, uuid.Nil); err != nil {
			t.Fatalf("mark read #%d: %v", i, err)
		}
	}

	reads := 0
	for _, ev := range bc.recorded() {
		if _, ok := ev.event.(domain.MessageRead); ok {
			reads++
		}
	}
	if reads != 1 {
		t.Fatalf("expected one message.read event, got %d", reads)
	}
}

func TestMarkRead_SenderNoOp(t *testing.T) {
	msgSvc, convSvc, bc, store := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "mine"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := msgSvc.MarkRead(ctx, msg.ID, a, uuid.Nil); err != nil {
		t.Fatalf("sender mark read must be a no-op success, got %v", err)
	}

	stored, err := store.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if stored.ReadByIdentity(a) {
		t.Fatalf("sender must never appear in its own read set")
	}
	for _, ev := range bc.recorded() {
		if _, ok := ev.event.(domain.MessageRead); ok {
			t.Fatalf("sender mark read must not broadcast")
		}
	}
}

func TestMarkRead_ImpliesDelivered(t *testing.T) {
	msgSvc, convSvc, _, store := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "hi"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Read without a preceding delivery ack.
	if err := msgSvc.MarkRead(ctx, msg.ID, b, uuid.Nil); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	stored, err := store.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if stored.State != domain.DeliveryDelivered {
		t.Fatalf("read must imply delivered, state is %q", stored.State)
	}
}

func TestMarkDelivered_EventOnceForwardOnly(t *testing.T) {
	msgSvc, convSvc, bc, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "ack me"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := msgSvc.MarkDelivered(ctx, msg.ID, b); err != nil {
			t.Fatalf("mark delivered #%d: %v", i, err)
		}
	}

	delivered := 0
	for _, ev := range bc.recorded() {
		if _, ok := ev.event.(domain.MessageDelivered); ok {
			delivered++
		}
	}
	if delivered != 1 {
		t.Fatalf("expected one message.delivered event, got %d", delivered)
	}
}

func TestUnreadCount(t *testing.T) {
	msgSvc, convSvc, _, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	var first *domain.Message
	for i := 0; i < 3; i++ {
		msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "msg"}, uuid.Nil)
		if err != nil {
			t.Fatalf("send #%d: %v", i, err)
		}
		if first == nil {
			first = msg
		}
	}

	count, err := msgSvc.UnreadCount(ctx, conv.ID, b)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 unread, got %d", count)
	}

	// Own messages never count as unread for the sender.
	count, err = msgSvc.UnreadCount(ctx, conv.ID, a)
	if err != nil {
		t.Fatalf("unread count for sender: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread for sender, got %d", count)
	}

	if err := msgSvc.MarkRead(ctx, first.ID, b, uuid.Nil); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = msgSvc.UnreadCount(ctx, conv.ID, b)
	if err != nil {
		t.Fatalf("unread count after read: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread after reading one, got %d", count)
	}
}

func TestHistory_CursorAndDirectReadFields(t *testing.T) {
	msgSvc, convSvc, _, _ := newMessageFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := convSvc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		msg, err := msgSvc.Send(ctx, a, conv.ID, SendMessageInput{Content: "n"}, uuid.Nil)
		if err != nil {
			t.Fatalf("send #%d: %v", i, err)
		}
		ids = append(ids, msg.ID)
		time.Sleep(time.Millisecond)
	}
	if err := msgSvc.MarkRead(ctx, ids[0], b, uuid.Nil); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	page, err := msgSvc.History(ctx, conv.ID, b, nil, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Messages) != 3 || !page.HasMore {
		t.Fatalf("expected 3 messages with more, got %d hasMore=%v", len(page.Messages), page.HasMore)
	}
	// Chronological order, newest page first fetch.
	if page.Messages[2].ID != ids[4] {
		t.Fatalf("last message of page should be the newest")
	}

	cursor := page.Messages[0].ID
	older, err := msgSvc.History(ctx, conv.ID, b, &cursor, 3)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(older.Messages) != 2 || older.HasMore {
		t.Fatalf("expected 2 remaining without more, got %d hasMore=%v", len(older.Messages), older.HasMore)
	}
	if !older.Messages[0].Read || older.Messages[0].ReadAt == nil {
		t.Fatalf("direct history should expose scalar read fields")
	}
}

// slowMessageRepo makes Create fail like a store that blew the deadline.
type slowMessageRepo struct {
	inner repository.MessageRepository
}

func (r *slowMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	return context.DeadlineExceeded
}

func (r *slowMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *slowMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	return r.inner.ListByConversation(ctx, conversationID, before, limit)
}

func (r *slowMessageRepo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.inner.MarkDelivered(ctx, id, at)
}

func (r *slowMessageRepo) AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error) {
	return r.inner.AddReadReceipt(ctx, id, receipt)
}

func (r *slowMessageRepo) CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	return r.inner.CountUnread(ctx, conversationID, identity)
}
