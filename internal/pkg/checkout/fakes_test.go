package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/mail"
)

type fakeGateway struct {
	mu        sync.Mutex
	intents   map[string]*billing.Intent
	seq       int
	keys      []string
	canceled  []string
	getCalls  int
	createErr error
	getDelay  time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*billing.Intent{}}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req billing.IntentRequest) (*billing.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	meta := map[string]string{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	in := &billing.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       billing.IntentRequiresPayment,
		Metadata:     meta,
	}
	g.intents[id] = in
	g.keys = append(g.keys, req.IdempotencyKey)
	cp := *in
	return &cp, nil
}

func (g *fakeGateway) GetIntent(ctx context.Context, id string) (*billing.Intent, error) {
	g.mu.Lock()
	g.getCalls++
	delay := g.getDelay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	cp := *in
	return &cp, nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return errors.New("no such payment_intent")
	}
	in.Status = billing.IntentCanceled
	g.canceled = append(g.canceled, id)
	return nil
}

func (g *fakeGateway) set(id string, mutate func(*billing.Intent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	mutate(g.intents[id])
}

func (g *fakeGateway) pay(id string) {
	g.set(id, func(in *billing.Intent) { in.Status = billing.IntentSucceeded })
}

func (g *fakeGateway) decline(id string) {
	g.set(id, func(in *billing.Intent) {
		in.Status = billing.IntentFailed
		in.FailureMessage = "Your card was declined."
	})
}

func (g *fakeGateway) createdCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *fakeGateway) canceledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.canceled...)
}

func (g *fakeGateway) gets() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getCalls
}

type fakeReceipts struct {
	mu   sync.Mutex
	sent []mail.Receipt
}

func (f *fakeReceipts) SendReceipt(_ context.Context, r mail.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeRecorder) CheckoutOutcome(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[outcome]++
}

func (f *fakeRecorder) count(outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[outcome]
}
