package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remindd/internal/eventbus"
	logx "remindd/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	sent  []Alert
	fail  error
	gotIt chan struct{}
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{gotIt: make(chan struct{}, 32)}
}

func (f *fakeAdapter) Send(ctx context.Context, a Alert) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, a)
	select {
	case f.gotIt <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeAdapter) delivered() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Alert, len(f.sent))
	copy(out, f.sent)
	return out
}

func waitSend(t *testing.T, f *fakeAdapter) {
	t.Helper()
	select {
	case <-f.gotIt:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{RatePerSec: 100}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	a := Alert{ReminderID: "r1", Text: "stand up", Vibrate: true, Sound: "chime"}
	if err := s.Notify(a); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitSend(t, ad)

	got := ad.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered %d alerts, want 1", len(got))
	}
	if got[0].ReminderID != "r1" || got[0].Text != "stand up" || !got[0].Vibrate || got[0].Sound != "chime" {
		t.Fatalf("alert mangled: %+v", got[0])
	}
	if got[0].At.IsZero() {
		t.Fatal("At not stamped")
	}
}

func TestNotifyBeforeStartAndAfterStop(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{}, ad, logx.Nop(), nil)

	if err := s.Notify(Alert{ReminderID: "early"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Notify before Start = %v, want ErrStopped", err)
	}

	s.Start(context.Background())
	s.Stop()

	if err := s.Notify(Alert{ReminderID: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Notify after Stop = %v, want ErrStopped", err)
	}
}

func TestDedupWindowSuppressesRepeats(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{RatePerSec: 100, DedupWindow: time.Minute}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	for i := 0; i < 3; i++ {
		if err := s.Notify(Alert{ReminderID: "same", Text: "jittery geofence"}); err != nil {
			t.Fatalf("Notify %d: %v", i, err)
		}
	}
	if err := s.Notify(Alert{ReminderID: "other", Text: "different id"}); err != nil {
		t.Fatalf("Notify other: %v", err)
	}

	waitSend(t, ad)
	waitSend(t, ad)
	time.Sleep(100 * time.Millisecond)

	got := ad.delivered()
	if len(got) != 2 {
		t.Fatalf("delivered %d alerts, want 2 (one per id): %+v", len(got), got)
	}
	ids := map[string]int{}
	for _, a := range got {
		ids[a.ReminderID]++
	}
	if ids["same"] != 1 || ids["other"] != 1 {
		t.Fatalf("unexpected delivery counts: %v", ids)
	}
}

func TestFiredEventOnBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	ad := newFakeAdapter()
	s := New(Config{RatePerSec: 100}, ad, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	if err := s.Notify(Alert{ReminderID: "r9"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case e := <-events:
		if e.Type != eventbus.EventReminderFired {
			t.Fatalf("event type %q", e.Type)
		}
		if id, _ := e.Data.(string); id != "r9" {
			t.Fatalf("event data %v, want r9", e.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fired event on the bus")
	}
}

func TestDeliveryFailureDoesNotPublish(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	ad := newFakeAdapter()
	ad.fail = errors.New("network down")
	s := New(Config{RatePerSec: 100}, ad, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	if err := s.Notify(Alert{ReminderID: "r1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case e := <-events:
		t.Fatalf("failed delivery still published %q", e.Type)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	s := New(Config{Workers: 1, RatePerSec: 100}, ad, logx.Nop(), nil)
	s.Start(context.Background())
	s.Start(context.Background())
	t.Cleanup(s.Stop)

	if err := s.Notify(Alert{ReminderID: "a"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitSend(t, ad)
}
