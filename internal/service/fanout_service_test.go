package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

type countingPush struct {
	count atomic.Int64
}

func (p *countingPush) Push(_ context.Context, _ uuid.UUID, _ domain.FanOutEvent) error {
	p.count.Add(1)
	return nil
}

func TestFanOut_SplitsOnlineAndOffline(t *testing.T) {
	bc := newFakeBroadcaster()
	push := &countingPush{}
	svc := NewFanoutService(push, 8)
	svc.SetBroadcaster(bc)

	audience := make([]uuid.UUID, 1000)
	for i := range audience {
		audience[i] = uuid.New()
		if i < 300 {
			bc.setOnline(audience[i], true)
		}
	}

	event := domain.FanOutEvent{Kind: "creator.live", Payload: json.RawMessage(`{"creator":"x"}`)}
	if err := svc.FanOut(context.Background(), StaticAudience(audience), event); err != nil {
		t.Fatalf("fanout: %v", err)
	}
	svc.Wait()

	if got := len(bc.recorded()); got != 300 {
		t.Fatalf("expected 300 online deliveries, got %d", got)
	}
	if got := push.count.Load(); got != 700 {
		t.Fatalf("expected 700 push handoffs, got %d", got)
	}
}

func TestFanOut_ReturnsBeforeDeliveryCompletes(t *testing.T) {
	release := make(chan struct{})
	bc := &gatedBroadcaster{release: release}
	svc := NewFanoutService(&countingPush{}, 2)
	svc.SetBroadcaster(bc)

	audience := []uuid.UUID{uuid.New(), uuid.New()}
	done := make(chan error, 1)
	go func() {
		done <- svc.FanOut(context.Background(), StaticAudience(audience), domain.FanOutEvent{Kind: "k"})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("fanout: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("FanOut blocked on delivery")
	}

	close(release)
	svc.Wait()
	if got := bc.delivered.Load(); got != 2 {
		t.Fatalf("expected 2 deliveries after release, got %d", got)
	}
}

func TestFanOut_ResolverErrorSurfaces(t *testing.T) {
	svc := NewFanoutService(&countingPush{}, 2)
	svc.SetBroadcaster(newFakeBroadcaster())

	wantErr := errors.New("audience lookup down")
	resolver := func(context.Context) ([]uuid.UUID, error) { return nil, wantErr }

	if err := svc.FanOut(context.Background(), resolver, domain.FanOutEvent{Kind: "k"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected resolver error, got %v", err)
	}
}

// gatedBroadcaster blocks every delivery until released.
type gatedBroadcaster struct {
	release   chan struct{}
	delivered atomic.Int64
}

func (g *gatedBroadcaster) Broadcast(uuid.UUID, domain.Event, ...uuid.UUID) {}

func (g *gatedBroadcaster) DeliverTo(uuid.UUID, domain.Event) bool {
	<-g.release
	g.delivered.Add(1)
	return true
}

func (g *gatedBroadcaster) IsOnline(uuid.UUID) bool { return true }

func (g *gatedBroadcaster) OnlineOf(ids []uuid.UUID) []uuid.UUID { return ids }
