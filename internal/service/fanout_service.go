package service

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// AudienceResolver yields the set of recipient identities at fan-out time.
type AudienceResolver func(ctx context.Context) ([]uuid.UUID, error)

// StaticAudience resolves to a fixed identity list.
func StaticAudience(identities []uuid.UUID) AudienceResolver {
	return func(context.Context) ([]uuid.UUID, error) {
		return identities, nil
	}
}

// PushSender hands an event to the offline push collaborator. Best effort;
// failures never surface to the triggering operation.
type PushSender interface {
	Push(ctx context.Context, identity uuid.UUID, event domain.FanOutEvent) error
}

// LogPushSender is the default adapter: it only records that an offline
// identity was skipped. Vendor delivery lives outside this core.
type LogPushSender struct{}

func (LogPushSender) Push(_ context.Context, identity uuid.UUID, event domain.FanOutEvent) error {
	log.Printf("fanout: identity %s offline, push handoff for %s", identity, event.Kind)
	return nil
}

// FanoutService delivers events to large, dynamically resolved audiences —
// recipients who need not share a conversation room with the trigger, e.g.
// every follower of a creator going live.
type FanoutService struct {
	broadcaster Broadcaster
	push        PushSender
	workers     int
	wg          sync.WaitGroup
}

func NewFanoutService(push PushSender, workers int) *FanoutService {
	if workers <= 0 {
		workers = 32
	}
	return &FanoutService{push: push, workers: workers}
}

func (s *FanoutService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// FanOut resolves the audience at call time, then returns: delivery runs
// asynchronously so the triggering request never waits on it. Identities
// with a live session get the event on every session; the rest are handed
// to the push collaborator. A failure for one recipient never aborts the
// others.
func (s *FanoutService) FanOut(ctx context.Context, resolver AudienceResolver, event domain.FanOutEvent) error {
	audience, err := resolver(ctx)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.deliver(audience, event)
	return nil
}

func (s *FanoutService) deliver(audience []uuid.UUID, event domain.FanOutEvent) {
	defer s.wg.Done()

	// Detached from the triggering request's context: its deadline must not
	// cancel an already-accepted fan-out.
	ctx := context.Background()

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for _, identity := range audience {
		identity := identity
		g.Go(func() error {
			if s.broadcaster != nil && s.broadcaster.DeliverTo(identity, event) {
				metrics.FanoutDelivered.Inc()
				return nil
			}
			metrics.FanoutOffline.Inc()
			if s.push != nil {
				if err := s.push.Push(ctx, identity, event); err != nil {
					log.Printf("ERROR fanout push to %s: %v", identity, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until all in-flight fan-outs finish. Used on shutdown and in
// tests.
func (s *FanoutService) Wait() {
	s.wg.Wait()
}
