package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/email-tracker/internal/domain"
)

// mockStore is an in-memory Store for tests.
type mockStore struct {
	mu         sync.Mutex
	sent       map[string]*domain.SentEmail
	bounces    []*domain.EmailBounce
	complaints []*domain.EmailComplaint
	delivered  map[int64]time.Time
	failWrites error
}

func newMockStore(emails ...*domain.SentEmail) *mockStore {
	s := &mockStore{sent: make(map[string]*domain.SentEmail), delivered: make(map[int64]time.Time)}
	for _, e := range emails {
		s.sent[e.MessageID] = e
	}
	return s
}

func (s *mockStore) FindTracked(_ context.Context, messageID string, c domain.TrackingCategory) (*domain.SentEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sent[messageID]
	if !ok || !e.Tracks(c) {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *mockStore) CreateBounce(_ context.Context, b *domain.EmailBounce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	b.ID = int64(len(s.bounces) + 1)
	s.bounces = append(s.bounces, b)
	return nil
}

func (s *mockStore) CreateComplaint(_ context.Context, c *domain.EmailComplaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	c.ID = int64(len(s.complaints) + 1)
	s.complaints = append(s.complaints, c)
	return nil
}

func (s *mockStore) MarkDelivered(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.delivered[id] = at
	return nil
}

type recorder struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recorder) Publish(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// claimOnce is a Guard that remembers keys in memory.
type claimOnce struct{ seen map[string]bool }

func (g *claimOnce) Claim(_ context.Context, key string) (bool, error) {
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

func (g *claimOnce) Release(_ context.Context, key string) error {
	delete(g.seen, key)
	return nil
}

func tracked(messageID string) *domain.SentEmail {
	return &domain.SentEmail{
		ID: 7, Provider: domain.ProviderSES, MessageID: messageID, Email: "a@b.com",
		BounceTracking: true, ComplaintTracking: true, DeliveryTracking: true,
	}
}

func ts(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestApply_MissingMessageID(t *testing.T) {
	p := NewProcessor(newMockStore(), &recorder{})
	_, err := p.Apply(context.Background(), domain.EmailEventData{EventType: domain.EventBounced})
	if !errors.Is(err, ErrMissingMessageID) {
		t.Fatalf("Apply() error = %v, want ErrMissingMessageID", err)
	}
}

func TestApply_BounceTrackingDisabled(t *testing.T) {
	sent := tracked("m1")
	sent.BounceTracking = false
	store := newMockStore(sent)
	rec := &recorder{}
	p := NewProcessor(store, rec)

	res, err := p.Apply(context.Background(), domain.EmailEventData{
		MessageID: "m1", EventType: domain.EventBounced, BounceType: domain.BouncePermanent,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Outcome != NotTracked {
		t.Errorf("Outcome = %s, want %s", res.Outcome, NotTracked)
	}
	if len(store.bounces) != 0 {
		t.Errorf("bounces = %d, want 0", len(store.bounces))
	}
	if len(rec.items) != 0 {
		t.Errorf("notifications = %d, want 0", len(rec.items))
	}
}

func TestApply_UnknownMessage(t *testing.T) {
	p := NewProcessor(newMockStore(), &recorder{})
	res, err := p.Apply(context.Background(), domain.EmailEventData{MessageID: "nope", EventType: domain.EventDelivered})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Outcome != NotTracked || res.Message() != "Message not tracked" {
		t.Errorf("Apply() = %+v (%q)", res, res.Message())
	}
}

func TestApply_BouncesAreAppendOnly(t *testing.T) {
	store := newMockStore(tracked("m1"))
	rec := &recorder{}
	p := NewProcessor(store, rec)
	ctx := context.Background()

	for _, bt := range []domain.BounceType{domain.BouncePermanent, domain.BounceTransient} {
		res, err := p.Apply(ctx, domain.EmailEventData{
			MessageID: "m1", Email: "a@b.com", Provider: domain.ProviderSES,
			EventType: domain.EventBounced, BounceType: bt,
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if res.Outcome != Processed {
			t.Fatalf("Outcome = %s, want processed", res.Outcome)
		}
	}

	if len(store.bounces) != 2 {
		t.Fatalf("bounces = %d, want 2", len(store.bounces))
	}
	if store.bounces[0].Type != domain.BouncePermanent || store.bounces[1].Type != domain.BounceTransient {
		t.Errorf("bounce types = %s, %s", store.bounces[0].Type, store.bounces[1].Type)
	}
	if len(rec.items) != 2 || rec.items[0].Type != domain.NotifyBounced {
		t.Errorf("notifications = %+v", rec.items)
	}
}

func TestApply_BounceDefaults(t *testing.T) {
	store := newMockStore(tracked("m1"))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewProcessor(store, &recorder{}, WithClock(func() time.Time { return now }))

	_, err := p.Apply(context.Background(), domain.EmailEventData{MessageID: "m1", EventType: domain.EventRejected})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	b := store.bounces[0]
	if b.Type != domain.BouncePermanent {
		t.Errorf("Type = %s, want Permanent", b.Type)
	}
	if b.Email != "a@b.com" {
		t.Errorf("Email = %q, want fallback to sent email", b.Email)
	}
	if !b.BouncedAt.Equal(now) {
		t.Errorf("BouncedAt = %v, want receipt time", b.BouncedAt)
	}
}

func TestApply_MetadataStorage(t *testing.T) {
	ev := domain.EmailEventData{
		MessageID: "m1", EventType: domain.EventComplained,
		Metadata: map[string]interface{}{"feedback": "abuse"},
	}

	store := newMockStore(tracked("m1"))
	rec := &recorder{}
	p := NewProcessor(store, rec, WithMetadata(false))
	if _, err := p.Apply(context.Background(), ev); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(store.complaints) != 1 {
		t.Fatalf("complaints = %d, want 1", len(store.complaints))
	}
	if store.complaints[0].Type != domain.ComplaintAbuse {
		t.Errorf("Type = %s, want abuse", store.complaints[0].Type)
	}
	// The stored row and the notification share the record; the notification
	// gets metadata attached after the write.
	var got map[string]string
	if err := json.Unmarshal(rec.items[0].Complaint.Metadata, &got); err != nil || got["feedback"] != "abuse" {
		t.Errorf("notification metadata = %s", rec.items[0].Complaint.Metadata)
	}
}

func TestApply_Delivery(t *testing.T) {
	store := newMockStore(tracked("m1"))
	rec := &recorder{}
	p := NewProcessor(store, rec)
	at := ts("2024-01-02T03:04:05Z")

	res, err := p.Apply(context.Background(), domain.EmailEventData{MessageID: "m1", EventType: domain.EventDelivered, Timestamp: at})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Message() != "Delivery processed" {
		t.Errorf("Message() = %q", res.Message())
	}
	if got := store.delivered[7]; !got.Equal(*at) {
		t.Errorf("delivered_at = %v, want %v", got, at)
	}
	if rec.items[0].Type != domain.NotifyDelivered || rec.items[0].SentEmail.DeliveredAt == nil {
		t.Errorf("notification = %+v", rec.items[0])
	}
}

func TestApply_Acknowledged(t *testing.T) {
	store := newMockStore(tracked("m1"))
	p := NewProcessor(store, &recorder{})
	res, err := p.Apply(context.Background(), domain.EmailEventData{MessageID: "m1", EventType: domain.EventOpened})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Outcome != Acknowledged {
		t.Errorf("Outcome = %s, want acknowledged", res.Outcome)
	}
}

func TestApply_PersistenceFailure(t *testing.T) {
	store := newMockStore(tracked("m1"))
	store.failWrites = errors.New("connection reset")
	guard := &claimOnce{seen: map[string]bool{}}
	p := NewProcessor(store, &recorder{}, WithGuard(guard))
	ev := domain.EmailEventData{MessageID: "m1", EventType: domain.EventBounced, Timestamp: ts("2024-01-01T00:00:00Z")}

	_, err := p.Apply(context.Background(), ev)
	var perr *ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("Apply() error = %v, want *ProcessingError", err)
	}
	if len(guard.seen) != 0 {
		t.Error("guard claim not released after failure")
	}

	// A retry after recovery is processed
	store.failWrites = nil
	res, err := p.Apply(context.Background(), ev)
	if err != nil || res.Outcome != Processed {
		t.Errorf("retry Apply() = %+v, %v", res, err)
	}
}

func TestApply_DuplicateWithGuard(t *testing.T) {
	store := newMockStore(tracked("m1"))
	p := NewProcessor(store, &recorder{}, WithGuard(&claimOnce{seen: map[string]bool{}}))
	ev := domain.EmailEventData{MessageID: "m1", EventType: domain.EventBounced, Timestamp: ts("2024-01-01T00:00:00Z")}

	p.Apply(context.Background(), ev)
	res, err := p.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Outcome != Duplicate {
		t.Errorf("Outcome = %s, want duplicate", res.Outcome)
	}
	if len(store.bounces) != 1 {
		t.Errorf("bounces = %d, want 1", len(store.bounces))
	}
}
