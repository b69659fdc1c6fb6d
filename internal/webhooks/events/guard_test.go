package events

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeGuardStore struct {
	data map[string]string
}

func newFakeGuardStore() *fakeGuardStore {
	return &fakeGuardStore{data: make(map[string]string)}
}

func (f *fakeGuardStore) Get(_ context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeGuardStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeGuardStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func (f *fakeGuardStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func TestReplayGuardMarksFirstDelivery(t *testing.T) {
	guard, err := NewReplayGuard(newFakeGuardStore(), time.Hour, "webhook:stripe")
	if err != nil {
		t.Fatalf("NewReplayGuard: %v", err)
	}

	already, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if already {
		t.Fatal("expected first delivery to pass")
	}

	already, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("CheckAndMark replay: %v", err)
	}
	if !already {
		t.Fatal("expected replay to be suppressed")
	}
}

func TestReplayGuardDeleteReopensEvent(t *testing.T) {
	guard, err := NewReplayGuard(newFakeGuardStore(), time.Hour, "webhook:paypal")
	if err != nil {
		t.Fatalf("NewReplayGuard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt_2"); err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	already, err := guard.CheckAndMark(context.Background(), "evt_2")
	if err != nil {
		t.Fatalf("CheckAndMark after delete: %v", err)
	}
	if already {
		t.Fatal("expected event to be retryable after delete")
	}
}

func TestReplayGuardRejectsEmptyEventID(t *testing.T) {
	guard, err := NewReplayGuard(newFakeGuardStore(), time.Hour, "webhook:airwallex")
	if err != nil {
		t.Fatalf("NewReplayGuard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
}
